// Package atollbuild is the production build pipeline: page discovery,
// island discovery, the two Vite passes, route manifest construction and
// island merge, and artifact persistence.
package atollbuild

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/atolldev/atoll/atollruntime"
	"github.com/atolldev/atoll/kit/colorlog"
	"github.com/atolldev/atoll/kit/fsutil"
	"github.com/atolldev/atoll/kit/viteutil"
	"github.com/atolldev/atoll/manifest"
)

var Log = colorlog.New("atoll build")

// Build performs a full production build and, on success, installs the
// resulting manifest on the runtime struct.
func Build(a *atollruntime.Atoll) error {
	start := time.Now()
	cfg := a.Config

	Log.Info("START building Atoll (PROD)")

	if err := os.RemoveAll(cfg.DistDir); err != nil {
		return fmt.Errorf("clean dist dir: %w", err)
	}

	routes, err := DiscoverPages(cfg.PagesDir)
	if err != nil {
		return fmt.Errorf("discover pages: %w", err)
	}
	if len(routes) == 0 {
		return fmt.Errorf("no pages found under %s", cfg.PagesDir)
	}

	// Island discovery decides which pages need the second build pass.
	islandPages, err := discoverIslandPages(a, routes)
	if err != nil {
		return fmt.Errorf("discover islands: %w", err)
	}

	vite := viteutil.NewCmd(viteutil.CmdOptions{
		PackageManagerBaseCmd: cfg.PackageManagerBaseCmd,
		ConfigFile:            cfg.ViteConfigFile,
	}, Log)

	// Main client pass
	if err := vite.RunBuild(viteutil.BuildOptions{
		OutDir:          cfg.DistDir,
		WithSSRManifest: true,
	}); err != nil {
		return err
	}

	assets, ssr, err := readViteManifests(cfg.DistDir)
	if err != nil {
		return err
	}

	merged := manifest.Build(ssr, assets, manifest.BuildOptions{
		Routes:           routes,
		EntrySrc:         cfg.ClientEntry,
		EntryKey:         manifest.DefaultEntryKey,
		PublicPathPrefix: cfg.PublicPathPrefix,
	})

	if len(islandPages) > 0 {
		merged, err = runIslandPass(a, vite, merged, routes, islandPages)
		if err != nil {
			return fmt.Errorf("island pass: %w", err)
		}
	}

	buildID, manifestFile, err := persistArtifacts(a, merged)
	if err != nil {
		return err
	}

	a.Lock()
	a.UnsafeSetBuildID(buildID)
	a.UnsafeSetRouteManifestFile(manifestFile)
	a.UnsafeSetRouteManifest(merged)
	a.Unlock()

	Log.Info("DONE building Atoll",
		"buildID", buildID,
		"routes found", len(routes),
		"island pages", len(islandPages),
		"duration", time.Since(start),
	)
	return nil
}

// discoverIslandPages scans every page and returns the sorted page sources
// that register at least one island.
func discoverIslandPages(a *atollruntime.Atoll, routes map[string]string) ([]string, error) {
	var islandPages []string
	for src := range routes {
		islands, err := ScanPageIslands(src, a.Config.IslandImportSource, Log)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", src, err)
		}
		if len(islands) > 0 {
			Log.Info("islands found", "page", src, "count", len(islands))
			islandPages = append(islandPages, src)
		}
	}
	sort.Strings(islandPages)
	return islandPages, nil
}

// runIslandPass builds island pages (plus the client entry) a second time
// into a staging directory, folds the resulting manifest into the primary
// one, and copies the island pass's output files into dist.
func runIslandPass(
	a *atollruntime.Atoll,
	vite *viteutil.Cmd,
	primary manifest.RouteManifest,
	routes map[string]string,
	islandPages []string,
) (manifest.RouteManifest, error) {
	cfg := a.Config
	stagingDir := filepath.Join(cfg.DistDir, atollruntime.AtollIslandsStagingDir)

	entries := append(append([]string{}, islandPages...), cfg.ClientEntry)
	if err := vite.RunBuild(viteutil.BuildOptions{
		OutDir:          stagingDir,
		WithSSRManifest: true,
		Entries:         entries,
		Env:             []string{"ATOLL_BUILD_PASS=islands"},
	}); err != nil {
		return nil, err
	}

	islandAssets, islandSSR, err := readViteManifests(stagingDir)
	if err != nil {
		return nil, err
	}

	islandRoutes := make(map[string]string, len(islandPages))
	for _, src := range islandPages {
		islandRoutes[src] = routes[src] + manifest.DefaultIslandSuffix
	}

	islandManifest := manifest.Build(islandSSR, islandAssets, manifest.BuildOptions{
		Routes:           islandRoutes,
		EntrySrc:         cfg.ClientEntry,
		EntryKey:         manifest.DefaultEntryKey,
		IslandSuffix:     manifest.DefaultIslandSuffix,
		PublicPathPrefix: cfg.PublicPathPrefix,
	})

	merged := manifest.MergeIslands(primary, islandManifest, manifest.MergeOptions{
		EntryKey:     manifest.DefaultEntryKey,
		IslandSuffix: manifest.DefaultIslandSuffix,
	})

	if err := syncIslandScripts(merged, cfg.PublicPathPrefix, stagingDir, cfg.DistDir); err != nil {
		return nil, err
	}
	if err := manifest.SyncStyleFiles(merged, cfg.PublicPathPrefix, stagingDir, cfg.DistDir); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		return nil, fmt.Errorf("remove staging dir: %w", err)
	}
	return merged, nil
}

// syncIslandScripts copies script files the merged manifest references out
// of the island staging directory. Scripts already emitted by the main pass
// are left alone.
func syncIslandScripts(m manifest.RouteManifest, publicPathPrefix, stagingDir, outDir string) error {
	for routeKey, assets := range m {
		for _, asset := range assets {
			if !asset.IsScript() {
				continue
			}
			rel := asset.Href[len(publicPathPrefix):]
			dst := filepath.Join(outDir, rel)
			if fsutil.Exists(dst) {
				continue
			}
			src := filepath.Join(stagingDir, rel)
			if !fsutil.Exists(src) {
				continue
			}
			if err := fsutil.CopyFile(src, dst); err != nil {
				return fmt.Errorf("copy island script %s for %s: %w", asset.Href, routeKey, err)
			}
		}
	}
	return nil
}

func readViteManifests(outDir string) (viteutil.AssetManifest, viteutil.SSRManifest, error) {
	assets, err := viteutil.ReadAssetManifest(filepath.Join(outDir, ".vite", "manifest.json"))
	if err != nil {
		return nil, nil, err
	}
	ssr, err := viteutil.ReadSSRManifest(filepath.Join(outDir, ".vite", "ssr-manifest.json"))
	if err != nil {
		return nil, nil, err
	}
	return assets, ssr, nil
}

// persistArtifacts writes the content-hashed route manifest and the build
// meta file, and mirrors the build inputs into the inspection directory for
// debugging.
func persistArtifacts(a *atollruntime.Atoll, m manifest.RouteManifest) (buildID, manifestFile string, err error) {
	cfg := a.Config

	data, err := m.MarshalStable()
	if err != nil {
		return "", "", err
	}
	manifestFile = hashedManifestName(data)
	buildID = buildIDFromContent(data)

	outPath := atollruntime.AtollPaths.RouteManifest(cfg.DistDir, manifestFile)
	if err := fsutil.EnsureDir(filepath.Dir(outPath)); err != nil {
		return "", "", err
	}
	if err := fsutil.WriteFileAtomic(outPath, data); err != nil {
		return "", "", fmt.Errorf("write route manifest: %w", err)
	}

	meta := atollruntime.BuildMeta{BuildID: buildID, RouteManifestFile: manifestFile}
	metaJSON, err := json.MarshalIndent(meta, "", "\t")
	if err != nil {
		return "", "", fmt.Errorf("marshal build meta: %w", err)
	}
	if err := fsutil.WriteFileAtomic(atollruntime.AtollPaths.BuildMetaJSON(cfg.DistDir), metaJSON); err != nil {
		return "", "", fmt.Errorf("write build meta: %w", err)
	}

	inspectDir := filepath.Join(cfg.DistDir, atollruntime.AtollInspectDirname)
	if err := fsutil.EnsureDir(inspectDir); err != nil {
		return "", "", err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(inspectDir, "route-manifest.json"), data); err != nil {
		return "", "", fmt.Errorf("write inspection route manifest: %w", err)
	}
	for _, name := range []string{"manifest.json", "ssr-manifest.json"} {
		src := filepath.Join(cfg.DistDir, ".vite", name)
		if !fsutil.Exists(src) {
			continue
		}
		if err := fsutil.CopyFile(src, filepath.Join(inspectDir, name)); err != nil {
			return "", "", fmt.Errorf("copy %s into inspection dir: %w", name, err)
		}
	}

	return buildID, manifestFile, nil
}
