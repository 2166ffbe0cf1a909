// Package manifest builds the unified per-route asset manifest from the
// bundler's build artifacts, and merges the second-pass island manifest
// into it. The route manifest is the primary build artifact consumed at
// request time to decide which script/link tags accompany a route's HTML.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atolldev/atoll/kit/fsutil"
)

// Conventional route-manifest keys shared by the build pipeline and the
// runtime.
const (
	DefaultEntryKey     = "_entry-client"
	DefaultIslandSuffix = "?island"
)

type AssetType string

const (
	AssetScript AssetType = "script"
	AssetStyle  AssetType = "style"
	AssetLink   AssetType = "link"
)

// Asset describes one resource a route needs injected into its HTML.
type Asset struct {
	Type    AssetType `json:"type"`
	Href    string    `json:"href"`
	Module  bool      `json:"module,omitempty"`
	Async   bool      `json:"async,omitempty"`
	Preload bool      `json:"preload,omitempty"`
}

// IsScript reports whether the asset belongs to the script side of a
// route's asset list: executable modules and their preload hints.
func (a Asset) IsScript() bool {
	return a.Type == AssetScript || (a.Type == AssetLink && a.Preload)
}

func (a Asset) IsStyle() bool {
	return a.Type == AssetStyle
}

// RouteManifest maps route keys (plus the synthetic entry-client key, plus
// island-suffixed keys) to ordered asset lists. Ordering within a list is
// significant: dependencies are listed before their dependents so that the
// eventual HTML declares referenced resources first.
type RouteManifest map[string][]Asset

// Equal reports deep equality, used when diffing manifests across builds.
func (m RouteManifest) Equal(other RouteManifest) bool {
	a, errA := m.MarshalStable()
	b, errB := other.MarshalStable()
	return errA == nil && errB == nil && string(a) == string(b)
}

// MarshalStable renders the manifest as indented JSON with sorted keys.
// Identical inputs always produce byte-identical output; the manifest is
// committed as a build artifact and compared across builds.
func (m RouteManifest) MarshalStable() ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal route manifest: %w", err)
	}
	return out, nil
}

// WriteFile persists the manifest atomically.
func (m RouteManifest) WriteFile(path string) error {
	data, err := m.MarshalStable()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a persisted route manifest.
func ReadFile(path string) (RouteManifest, error) {
	var m RouteManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return m, nil
}
