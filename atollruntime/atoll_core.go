// Package atollruntime is the request-time half of Atoll. It owns the
// runtime struct handed to applications, loads the persisted route manifest,
// resolves per-route assets, and glues server rendering to the HTML shell.
package atollruntime

import (
	"sync"

	"github.com/atolldev/atoll/kit/colorlog"
	"github.com/atolldev/atoll/manifest"
	"github.com/atolldev/atoll/modgraph"
	"github.com/atolldev/atoll/styles"
)

var Log = colorlog.New("atoll")

// Atoll is the main runtime struct for an Atoll application.
type Atoll struct {
	Config *Config

	// mu protects mutable state that can be modified during dev rebuilds.
	mu                 sync.RWMutex
	_isDev             bool
	_buildID           string
	_routeManifest     manifest.RouteManifest
	_routeManifestFile string
	_graph             modgraph.GraphQuery
	_scopedClassMap    styles.ScopedClassMapFunc
	_htmlShell         []byte

	// assetCache memoizes per-route asset merges; invalidated whenever the
	// route manifest is replaced.
	assetCache sync.Map
}

// --- Public Getters (thread-safe, acquire lock) ---

func (a *Atoll) GetIsDevMode() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a._isDev
}

func (a *Atoll) GetBuildID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a._buildID
}

func (a *Atoll) GetRouteManifestSnapshot() manifest.RouteManifest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a._routeManifest
}

func (a *Atoll) GetRouteManifestFile() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a._routeManifestFile
}

func (a *Atoll) GetGraph() modgraph.GraphQuery {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a._graph
}

func (a *Atoll) GetHTMLShell() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a._htmlShell
}

// --- Lock Management ---
// Exposed for the build and dev packages to acquire the lock when making
// multiple updates.

func (a *Atoll) Lock()   { a.mu.Lock() }
func (a *Atoll) Unlock() { a.mu.Unlock() }

// --- Unsafe Getters/Setters (caller MUST hold lock) ---

func (a *Atoll) UnsafeGetBuildID() string           { return a._buildID }
func (a *Atoll) UnsafeGetRouteManifestFile() string { return a._routeManifestFile }
func (a *Atoll) UnsafeSetBuildID(id string)         { a._buildID = id }
func (a *Atoll) UnsafeSetRouteManifestFile(f string) {
	a._routeManifestFile = f
}

func (a *Atoll) UnsafeSetRouteManifest(m manifest.RouteManifest) {
	a._routeManifest = m
	a.assetCache.Range(func(k, _ any) bool {
		a.assetCache.Delete(k)
		return true
	})
}

func (a *Atoll) UnsafeSetHTMLShell(doc []byte) { a._htmlShell = doc }

// --- Thread-safe Setters (acquire lock internally) ---

func (a *Atoll) SetIsDev(isDev bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a._isDev = isDev
}

// SetGraph swaps the module graph backend. The dev server points this at the
// bundler's live graph; production never sets one.
func (a *Atoll) SetGraph(g modgraph.GraphQuery) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a._graph = g
}

// SetScopedClassMap installs the render environment's scoped-class lookup,
// consulted by the style collector for *.module.* files.
func (a *Atoll) SetScopedClassMap(fn styles.ScopedClassMapFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a._scopedClassMap = fn
}
