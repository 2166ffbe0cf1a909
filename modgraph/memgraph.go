package modgraph

import (
	"context"
	"sync"
)

// LoadFunc builds a module on demand: it returns the resolved node and its
// evaluated exports. Returning a nil node means the module does not exist.
type LoadFunc func(ctx context.Context, idOrURL string) (*Node, ModuleExports, error)

// MemGraph is an in-memory GraphQuery. The dev server uses it as a local
// cache in front of the bundler, and tests use it as a fixture graph.
// Loads are idempotent and keyed by module identity, so concurrent requests
// racing to load the same module are safe.
type MemGraph struct {
	mu      sync.RWMutex
	byID    map[string]*Node
	byURL   map[string]*Node
	exports map[string]ModuleExports
	loading map[string]*sync.Once
	loader  LoadFunc
}

func NewMemGraph() *MemGraph {
	return &MemGraph{
		byID:    make(map[string]*Node),
		byURL:   make(map[string]*Node),
		exports: make(map[string]ModuleExports),
		loading: make(map[string]*sync.Once),
	}
}

// WithLoader sets the on-demand loader used when Load is called for a
// module not yet in the graph.
func (g *MemGraph) WithLoader(fn LoadFunc) *MemGraph {
	g.mu.Lock()
	g.loader = fn
	g.mu.Unlock()
	return g
}

// Put registers a node (and optionally its exports) in the graph,
// replacing any previous entry with the same id.
func (g *MemGraph) Put(n *Node, exports ModuleExports) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byID[n.ID] = n
	if n.URL != "" {
		g.byURL[n.URL] = n
	}
	if exports != nil {
		g.exports[n.ID] = exports
	}
}

// Remove drops a node, e.g. when the watcher sees the file deleted.
func (g *MemGraph) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.byID[id]; ok {
		delete(g.byURL, n.URL)
	}
	delete(g.byID, id)
	delete(g.exports, id)
	delete(g.loading, id)
}

func (g *MemGraph) ModuleByID(_ context.Context, id string) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byID[id], nil
}

func (g *MemGraph) ModuleByURL(_ context.Context, url string) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.byURL[url], nil
}

func (g *MemGraph) Load(ctx context.Context, idOrURL string) (ModuleExports, error) {
	g.mu.RLock()
	if exports, ok := g.exports[idOrURL]; ok {
		g.mu.RUnlock()
		return exports, nil
	}
	if n, ok := g.byURL[idOrURL]; ok {
		if exports, ok := g.exports[n.ID]; ok {
			g.mu.RUnlock()
			return exports, nil
		}
	}
	loader := g.loader
	g.mu.RUnlock()

	if loader == nil {
		return nil, &NotLoadableError{ID: idOrURL}
	}

	once := g.loadOnce(idOrURL)
	var loadErr error
	once.Do(func() {
		n, exports, err := loader(ctx, idOrURL)
		if err != nil {
			loadErr = err
			return
		}
		if n == nil {
			loadErr = &NotLoadableError{ID: idOrURL}
			return
		}
		g.Put(n, exports)
	})
	if loadErr != nil {
		// Allow a later attempt to retry a failed load.
		g.mu.Lock()
		delete(g.loading, idOrURL)
		g.mu.Unlock()
		return nil, loadErr
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if exports, ok := g.exports[idOrURL]; ok {
		return exports, nil
	}
	if n, ok := g.byURL[idOrURL]; ok {
		return g.exports[n.ID], nil
	}
	return nil, nil
}

func (g *MemGraph) loadOnce(id string) *sync.Once {
	g.mu.Lock()
	defer g.mu.Unlock()
	once, ok := g.loading[id]
	if !ok {
		once = &sync.Once{}
		g.loading[id] = once
	}
	return once
}

// NotLoadableError reports that a module could not be loaded, e.g. because
// it is only reachable through an unsupported dynamic path.
type NotLoadableError struct {
	ID string
}

func (e *NotLoadableError) Error() string {
	return "modgraph: module not loadable: " + e.ID
}
