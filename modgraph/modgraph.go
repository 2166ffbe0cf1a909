// Package modgraph models the bundler-maintained module dependency graph
// and computes transitive static-import closures over it. The graph itself
// is owned externally (the Vite dev server in development, fixtures in
// tests); this package only holds transient node references during a
// traversal.
package modgraph

import (
	"context"
	"sort"
	"sync"
)

// ModuleExports is the evaluated value of a loaded module, keyed by export
// name. The default export lives under "default".
type ModuleExports map[string]any

// Default returns the module's default export as a string, if present.
func (e ModuleExports) Default() (string, bool) {
	v, ok := e["default"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// TransformResult carries the statically-analyzed import URLs recorded when
// a module went through the transform pipeline. Dynamic imports may be
// missing from Deps.
type TransformResult struct {
	Deps []string
}

// Node is one resolved module in the graph.
type Node struct {
	ID  string
	URL string

	// ImportedModules is the set of directly referenced modules. It is
	// only consulted when TransformResult is unavailable.
	ImportedModules []*Node

	// TransformResult is nil for modules that were never processed by
	// the transform pipeline.
	TransformResult *TransformResult
}

// GraphQuery is the injected capability for querying the live module graph.
// Lookup methods return (nil, nil) when no module matches; Load triggers a
// build/transform on demand and is idempotent per module identity.
type GraphQuery interface {
	ModuleByID(ctx context.Context, id string) (*Node, error)
	ModuleByURL(ctx context.Context, url string) (*Node, error)
	Load(ctx context.Context, idOrURL string) (ModuleExports, error)
}

// DependencySet is the result of one traversal: every module reachable via
// static-import edges from the roots, exactly once, roots excluded. It is
// safe for concurrent use during the traversal that builds it.
type DependencySet struct {
	mu      sync.Mutex
	visited map[string]struct{}
	nodes   map[string]*Node
	skips   []string
}

func NewDependencySet() *DependencySet {
	return &DependencySet{
		visited: make(map[string]struct{}),
		nodes:   make(map[string]*Node),
	}
}

// markVisited records an id as seen without adding it to the result. Used
// for roots, which are excluded from their own dependency set.
func (s *DependencySet) markVisited(id string) {
	s.mu.Lock()
	s.visited[id] = struct{}{}
	s.mu.Unlock()
}

// addIfNew adds the node to the result set. It reports false when the node
// was already visited, which is the traversal's cycle breaker.
func (s *DependencySet) addIfNew(n *Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.visited[n.ID]; seen {
		return false
	}
	s.visited[n.ID] = struct{}{}
	s.nodes[n.ID] = n
	return true
}

// recordSkip notes a dependency that could not be resolved or loaded.
// Skips are diagnostics only; they never fail a traversal.
func (s *DependencySet) recordSkip(reason string) {
	s.mu.Lock()
	s.skips = append(s.skips, reason)
	s.mu.Unlock()
}

func (s *DependencySet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[id]
	return ok
}

func (s *DependencySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Nodes returns the collected modules sorted by id. Set membership is
// order-independent; sorting just keeps callers and logs deterministic.
func (s *DependencySet) Nodes() []*Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Skips returns the recorded skip diagnostics. Unresolved URLs and genuine
// load errors are intentionally not distinguished here.
func (s *DependencySet) Skips() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.skips...)
}
