package manifest

import (
	"fmt"
	"path"
	"strings"

	"github.com/atolldev/atoll/kit/fsutil"
)

// MergeOptions configures the island merge.
type MergeOptions struct {
	EntryKey     string
	IslandSuffix string
}

// MergeIslands folds the island-pass manifest into the primary manifest.
//
// Per route key:
//   - plain routes keep only their non-script assets; runtime code for
//     these routes is owned by the shared client entry, and duplicating
//     script injection would double-execute modules.
//   - island routes take scripts from the island manifest (the dedicated
//     island bundle owns island runtime code) and inherit styles from the
//     owning route's primary entry (islands do not re-bundle styles).
//   - the entry-client key takes scripts from the island build, which was
//     produced with the merged island+client input set and therefore
//     supersedes the main build's entry, and styles from the primary.
//
// Scripts already present on the merged entry-client are dropped from
// island routes so the shared entry is never injected twice.
func MergeIslands(primary, island RouteManifest, opts MergeOptions) RouteManifest {
	out := make(RouteManifest, len(primary)+len(island))

	entryScripts := scriptsOf(island[opts.EntryKey+opts.IslandSuffix])
	if len(entryScripts) == 0 {
		entryScripts = scriptsOf(primary[opts.EntryKey])
	}
	entryHrefs := make(map[string]struct{}, len(entryScripts))
	for _, a := range entryScripts {
		entryHrefs[a.Href] = struct{}{}
	}

	for key, assets := range primary {
		if key == opts.EntryKey {
			merged := stylesOf(assets)
			out[key] = append(merged, entryScripts...)
			continue
		}
		out[key] = stylesOf(assets)
	}

	for key, assets := range island {
		if key == opts.EntryKey+opts.IslandSuffix {
			continue // already folded into the entry key above
		}
		ownerKey := strings.TrimSuffix(key, opts.IslandSuffix)

		var merged []Asset
		merged = append(merged, stylesOf(primary[ownerKey])...)
		for _, a := range scriptsOf(assets) {
			if _, dup := entryHrefs[a.Href]; dup {
				continue
			}
			merged = append(merged, a)
		}
		out[key] = merged
	}

	return out
}

func scriptsOf(assets []Asset) []Asset {
	var out []Asset
	for _, a := range assets {
		if a.IsScript() {
			out = append(out, a)
		}
	}
	return out
}

func stylesOf(assets []Asset) []Asset {
	var out []Asset
	for _, a := range assets {
		if !a.IsScript() {
			out = append(out, a)
		}
	}
	return out
}

// SyncStyleFiles guarantees that every style asset referenced by the
// merged manifest exists in outDir before the manifest is persisted.
// Styles emitted by the island pass live in its staging directory and are
// copied over; a style missing from both directories is fatal to the
// build.
func SyncStyleFiles(m RouteManifest, publicPathPrefix, stagingDir, outDir string) error {
	for routeKey, assets := range m {
		for _, a := range assets {
			if !a.IsStyle() {
				continue
			}
			rel := strings.TrimPrefix(a.Href, publicPathPrefix)
			dst := path.Join(outDir, rel)
			if fsutil.Exists(dst) {
				continue
			}
			src := path.Join(stagingDir, rel)
			if err := fsutil.CopyFile(src, dst); err != nil {
				return fmt.Errorf("manifest: style %s referenced by %s is missing from the output directory: %w", a.Href, routeKey, err)
			}
		}
	}
	return nil
}
