package atollruntime

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atolldev/atoll/manifest"
	"github.com/atolldev/atoll/modgraph"
)

// BuildMeta is the small JSON file the build pipeline drops next to the
// route manifest so the runtime can find the content-hashed manifest file.
type BuildMeta struct {
	BuildID           string `json:"buildID"`
	RouteManifestFile string `json:"routeManifestFile"`
}

func ReadBuildMeta(path string) (*BuildMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build meta %s: %w", path, err)
	}
	var meta BuildMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse build meta %s: %w", path, err)
	}
	return &meta, nil
}

// Init initializes Atoll. Panics on error in production; logs in dev, where
// the first build may not have happened yet.
func (a *Atoll) Init() {
	isDev := GetIsDev()
	if err := a.initInner(isDev); err != nil {
		wrapped := fmt.Errorf("error initializing Atoll: %w", err)
		if isDev {
			Log.Error(wrapped.Error())
		} else {
			panic(wrapped)
		}
	} else {
		Log.Info("Atoll initialized", "build id", a.GetBuildID())
	}
}

func (a *Atoll) initInner(isDev bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a._isDev = isDev

	shell, err := os.ReadFile(a.Config.HTMLShellFile)
	if err != nil {
		return fmt.Errorf("could not read HTML shell: %w", err)
	}
	a._htmlShell = shell

	if isDev {
		// Assets come from the live bundler graph; no manifest to load.
		if url := GetViteDevURL(); url != "" && a._graph == nil {
			a._graph = modgraph.NewDevGraph(url)
		}
		return nil
	}

	meta, err := ReadBuildMeta(AtollPaths.BuildMetaJSON(a.Config.DistDir))
	if err != nil {
		return fmt.Errorf("could not load build meta: %w", err)
	}
	a._buildID = meta.BuildID
	a._routeManifestFile = meta.RouteManifestFile

	m, err := manifest.ReadFile(AtollPaths.RouteManifest(a.Config.DistDir, meta.RouteManifestFile))
	if err != nil {
		return fmt.Errorf("could not load route manifest: %w", err)
	}
	a._routeManifest = m
	a.assetCache.Range(func(k, _ any) bool {
		a.assetCache.Delete(k)
		return true
	})

	return nil
}
