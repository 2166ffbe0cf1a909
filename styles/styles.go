// Package styles resolves the current styles for a set of page entry files
// against the live module graph. It is the dev-server path: production
// styles come from the route manifest instead.
package styles

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/atolldev/atoll/modgraph"
)

// Style is one collected style payload: raw CSS for global styles, or a
// class-name mapping for scoped ("module") styles.
type Style struct {
	CSS     string
	Classes map[string]string
}

func (s Style) Scoped() bool { return s.Classes != nil }

// StyleMap maps module URLs to style payloads. It is rebuilt per render
// and never persisted; keys match the client's hot-reload identifiers.
type StyleMap map[string]Style

// styleExts are the recognized style file extensions.
var styleExts = map[string]struct{}{
	".css":     {},
	".less":    {},
	".sass":    {},
	".scss":    {},
	".styl":    {},
	".stylus":  {},
	".pcss":    {},
	".postcss": {},
}

// IsStyleFile reports whether the resource path (query string ignored)
// has a recognized style extension.
func IsStyleFile(p string) bool {
	_, ok := styleExts[path.Ext(stripQuery(p))]
	return ok
}

// IsScopedModule reports whether the path follows the scoped-style naming
// convention (*.module.<ext>).
func IsScopedModule(p string) bool {
	p = stripQuery(p)
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	return strings.HasSuffix(base, ".module")
}

func stripQuery(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

// ScopedClassMapFunc supplies the class-name mapping for a scoped style
// file, keyed by file path. The mapping is produced by the CSS-modules
// transform and is only available from the render-time environment, never
// by loading the module directly.
type ScopedClassMapFunc func(file string) (map[string]string, bool)

type Collector struct {
	Graph          modgraph.GraphQuery
	Log            *slog.Logger
	ScopedClassMap ScopedClassMapFunc
}

// Collect gathers the styles transitively reachable from the given entry
// files. One dependency set is shared across all files, so a style pulled
// in by several entries appears once. Failures degrade: a file that cannot
// be resolved or a style that cannot be loaded is skipped with a warning,
// never fatal. The only returned error is context cancellation.
func (c *Collector) Collect(ctx context.Context, files []string) (StyleMap, error) {
	roots := make([]*modgraph.Node, 0, len(files))
	for _, file := range files {
		node, err := c.resolveRoot(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.warn("could not resolve page entry", "file", file, "error", err)
			continue
		}
		if node != nil {
			roots = append(roots, node)
		}
	}

	walker := &modgraph.Walker{Graph: c.Graph, Log: c.Log}
	set := walker.Collect(ctx, roots...)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := make(StyleMap)
	for _, node := range set.Nodes() {
		resource := node.URL
		if resource == "" {
			resource = node.ID
		}
		if !IsStyleFile(resource) {
			continue
		}

		if IsScopedModule(resource) {
			c.collectScoped(node, resource, out)
			continue
		}
		c.collectGlobal(ctx, node, resource, out)
	}
	return out, nil
}

// resolveRoot looks the file up in the graph, loading it on demand when it
// is not yet present. Loads are idempotent, so concurrent requests racing
// on the same file are safe.
func (c *Collector) resolveRoot(ctx context.Context, file string) (*modgraph.Node, error) {
	node, err := c.Graph.ModuleByID(ctx, file)
	if err != nil {
		return nil, err
	}
	if node != nil {
		return node, nil
	}
	if _, err := c.Graph.Load(ctx, file); err != nil {
		return nil, err
	}
	return c.Graph.ModuleByID(ctx, file)
}

func (c *Collector) collectScoped(node *modgraph.Node, resource string, out StyleMap) {
	if c.ScopedClassMap == nil {
		c.warn("no scoped class map source configured", "style", resource)
		return
	}
	classes, ok := c.ScopedClassMap(stripQuery(node.ID))
	if !ok {
		c.warn("no class mapping for scoped style", "style", resource)
		return
	}
	out[node.URL] = Style{Classes: classes}
}

func (c *Collector) collectGlobal(ctx context.Context, node *modgraph.Node, resource string, out StyleMap) {
	exports, err := c.Graph.Load(ctx, node.ID)
	if err != nil {
		c.warn("could not load style module", "style", resource, "error", err)
		return
	}
	css, ok := exports.Default()
	if !ok {
		c.warn("style module has no default export", "style", resource)
		return
	}
	out[node.URL] = Style{CSS: css}
}

func (c *Collector) warn(msg string, args ...any) {
	if c.Log != nil {
		c.Log.Warn(msg, args...)
	}
}
