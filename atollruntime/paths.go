package atollruntime

import "path"

// Directory name constants
const (
	AtollOutDirname        = "atoll_out"
	AtollInspectDirname    = "atoll_inspect"
	AtollIslandsStagingDir = "atoll_islands_staging"
)

// File name constants
const (
	AtollBuildMetaJSONFileName = "atoll_build_meta.json"
)

// Output prefix constants
const (
	AtollRouteManifestPrefix = "route-manifest."
)

// AtollPaths provides path construction helpers for Atoll-specific paths.
var AtollPaths = atollPaths{}

type atollPaths struct{}

func (atollPaths) BuildMetaJSON(distDir string) string {
	return path.Join(distDir, AtollOutDirname, AtollBuildMetaJSONFileName)
}

func (atollPaths) RouteManifest(distDir, fileName string) string {
	return path.Join(distDir, AtollOutDirname, fileName)
}
