package manifest

import (
	"sort"
	"strings"

	"github.com/atolldev/atoll/kit/viteutil"
)

// BuildOptions configures one route-manifest construction pass.
type BuildOptions struct {
	// Routes maps server-module ids (SSR manifest keys) to route keys.
	// SSR manifest keys with no mapping are ignored; route matching is
	// the router's concern, not this package's.
	Routes map[string]string

	// EntrySrc is the shared client entry's module id; its assets are
	// recorded under EntryKey.
	EntrySrc string
	EntryKey string

	// IslandSuffix restricts processing to island route keys when set
	// (the second build pass). The resulting manifest is only an input
	// to MergeIslands, never persisted on its own.
	IslandSuffix string

	// PublicPathPrefix is prepended to every emitted href, e.g. "/".
	PublicPathPrefix string
}

// Build resolves every SSR-manifest entry to concrete assets using the
// asset manifest. Ordering is derived entirely from the asset manifest's
// declared dependency lists, so the output is deterministic regardless of
// how the inputs were produced: identical manifests yield byte-identical
// output through MarshalStable.
func Build(ssr viteutil.SSRManifest, assets viteutil.AssetManifest, opts BuildOptions) RouteManifest {
	out := make(RouteManifest)

	ssrKeys := make([]string, 0, len(ssr))
	for key := range ssr {
		ssrKeys = append(ssrKeys, key)
	}
	sort.Strings(ssrKeys)

	for _, ssrKey := range ssrKeys {
		routeKey, ok := routeKeyFor(ssrKey, opts)
		if !ok {
			continue
		}
		isIsland := opts.IslandSuffix != "" && strings.HasSuffix(routeKey, opts.IslandSuffix)
		if opts.IslandSuffix != "" && !isIsland {
			continue
		}

		x := &expander{
			assets: assets,
			prefix: opts.PublicPathPrefix,
			async:  isIsland,
			seen:   make(map[string]struct{}),
		}
		for _, assetKey := range ssr[ssrKey] {
			x.addChunk(assetKey, true)
		}
		out[routeKey] = x.list
	}
	return out
}

func routeKeyFor(ssrKey string, opts BuildOptions) (string, bool) {
	if opts.EntrySrc != "" && ssrKey == opts.EntrySrc {
		key := opts.EntryKey
		if opts.IslandSuffix != "" {
			key += opts.IslandSuffix
		}
		return key, true
	}
	key, ok := opts.Routes[ssrKey]
	return key, ok
}

// expander flattens one route's asset-manifest keys into an ordered asset
// list: a chunk's transitive imports come first (as modulepreload links),
// then its CSS, then the chunk's own file, so every resource is declared
// before the resource that needs it.
type expander struct {
	assets viteutil.AssetManifest
	prefix string
	async  bool
	seen   map[string]struct{}
	list   []Asset
}

func (x *expander) addChunk(key string, top bool) {
	if _, done := x.seen["key:"+key]; done {
		return
	}
	x.seen["key:"+key] = struct{}{}

	chunk, ok := x.assets[key]
	if !ok {
		// A dangling reference is tolerated here; the merge step's
		// file copies are where missing outputs become fatal.
		return
	}

	for _, imp := range chunk.Imports {
		x.addChunk(imp, false)
	}
	for _, css := range chunk.CSS {
		x.add(Asset{Type: AssetStyle, Href: x.prefix + css})
	}
	if chunk.File == "" {
		return
	}
	if top {
		x.add(Asset{Type: AssetScript, Href: x.prefix + chunk.File, Module: true, Async: x.async})
	} else {
		x.add(Asset{Type: AssetLink, Href: x.prefix + chunk.File, Module: true, Preload: true})
	}
}

func (x *expander) add(a Asset) {
	if _, done := x.seen["href:"+a.Href]; done {
		return
	}
	x.seen["href:"+a.Href] = struct{}{}
	x.list = append(x.list, a)
}
