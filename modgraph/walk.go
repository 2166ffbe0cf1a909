package modgraph

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Walker computes the transitive closure of statically-imported dependencies
// for one or more root modules.
//
// Known limitation: when a module has a TransformResult, only its declared
// static-import URLs are followed, so dynamically-imported modules are
// missed; the ImportedModules fallback (used for modules that never went
// through the transform pipeline) would incidentally include them. Styles
// reached only through dynamic imports can therefore be collected
// inconsistently depending on transform state.
type Walker struct {
	Graph GraphQuery
	Log   *slog.Logger // optional; skip diagnostics are logged at debug level
}

// Collect walks every root and returns the shared dependency set. Roots are
// marked visited up front and excluded from the result. A failure while
// walking one root abandons that root's traversal silently and continues
// with the others; partial output is preferred over failing the caller.
func (w *Walker) Collect(ctx context.Context, roots ...*Node) *DependencySet {
	set := NewDependencySet()
	for _, root := range roots {
		if root == nil {
			continue
		}
		set.markVisited(root.ID)
	}
	for _, root := range roots {
		if root == nil {
			continue
		}
		if err := w.walk(ctx, root, set); err != nil {
			set.recordSkip(fmt.Sprintf("traversal abandoned for %s: %v", root.ID, err))
			if w.Log != nil {
				w.Log.Debug("dependency traversal abandoned", "root", root.ID, "error", err)
			}
		}
	}
	return set
}

func (w *Walker) walk(ctx context.Context, node *Node, set *DependencySet) error {
	if node.TransformResult != nil {
		return w.walkDeclaredDeps(ctx, node.TransformResult.Deps, set)
	}

	// No transform result: expand the directly-referenced module set.
	g, gctx := errgroup.WithContext(ctx)
	for _, imported := range node.ImportedModules {
		if imported == nil || !set.addIfNew(imported) {
			continue
		}
		imported := imported
		g.Go(func() error { return w.walk(gctx, imported, set) })
	}
	return g.Wait()
}

// walkDeclaredDeps resolves every declared dependency URL of one node in
// parallel, then recurses into the newly-discovered nodes. Graph lookups
// may trigger an on-demand load in the bundler, so sibling lookups are kept
// in flight simultaneously rather than issued one at a time.
func (w *Walker) walkDeclaredDeps(ctx context.Context, deps []string, set *DependencySet) error {
	resolved := make([]*Node, len(deps))

	g, gctx := errgroup.WithContext(ctx)
	for i, dep := range deps {
		i, dep := i, dep
		g.Go(func() error {
			n, err := w.Graph.ModuleByURL(gctx, dep)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", dep, err)
			}
			if n == nil {
				// A declared URL with no graph node is not an error.
				set.recordSkip("unresolved import: " + dep)
				return nil
			}
			resolved[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, n := range resolved {
		if n == nil || !set.addIfNew(n) {
			continue
		}
		n := n
		g.Go(func() error { return w.walk(gctx, n, set) })
	}
	return g.Wait()
}
