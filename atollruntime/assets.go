package atollruntime

import (
	"html/template"
	"strings"

	"github.com/atolldev/atoll/manifest"
)

// AssetsForRoute returns the ordered asset list to inject for one route:
// the shared client entry's assets followed by the route's own, deduplicated
// by href. Results are cached per route key until the manifest is replaced.
func (a *Atoll) AssetsForRoute(routeKey string) []manifest.Asset {
	if cached, ok := a.assetCache.Load(routeKey); ok {
		return cached.([]manifest.Asset)
	}

	m := a.GetRouteManifestSnapshot()

	var merged []manifest.Asset
	seen := make(map[string]struct{})
	appendAssets := func(list []manifest.Asset) {
		for _, asset := range list {
			if _, dup := seen[asset.Href]; dup {
				continue
			}
			seen[asset.Href] = struct{}{}
			merged = append(merged, asset)
		}
	}
	appendAssets(m[manifest.DefaultEntryKey])
	appendAssets(m[routeKey])

	a.assetCache.Store(routeKey, merged)
	return merged
}

// IslandAssetsForRoute returns the assets for a route's island bundle.
// Island scripts are injected alongside the route's plain assets when the
// route hydrates islands.
func (a *Atoll) IslandAssetsForRoute(routeKey string) []manifest.Asset {
	return a.AssetsForRoute(routeKey + manifest.DefaultIslandSuffix)
}

// RouteAssetTags renders a route's merged assets as head markup.
func (a *Atoll) RouteAssetTags(routeKey string) template.HTML {
	return RenderAssetTags(a.AssetsForRoute(routeKey))
}

// RenderAssetTags renders assets in manifest order. Order is significant:
// the manifest lists dependencies before dependents.
func RenderAssetTags(assets []manifest.Asset) template.HTML {
	var sb strings.Builder
	for _, asset := range assets {
		href := template.HTMLEscapeString(asset.Href)
		switch {
		case asset.Type == manifest.AssetScript:
			sb.WriteString(`<script type="module"`)
			if asset.Async {
				sb.WriteString(" async")
			}
			sb.WriteString(` src="`)
			sb.WriteString(href)
			sb.WriteString(`"></script>`)
		case asset.Type == manifest.AssetStyle:
			sb.WriteString(`<link rel="stylesheet" href="`)
			sb.WriteString(href)
			sb.WriteString(`">`)
		case asset.Type == manifest.AssetLink && asset.Preload:
			sb.WriteString(`<link rel="modulepreload" href="`)
			sb.WriteString(href)
			sb.WriteString(`">`)
		}
	}
	return template.HTML(sb.String())
}
