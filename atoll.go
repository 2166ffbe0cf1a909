// Package atoll is the public surface of the Atoll islands meta-framework
// runtime. Applications construct an app with New, serve routes through it,
// and drive dev/build through the atoll CLI or the atolldev/atollbuild
// packages directly.
package atoll

import (
	"github.com/atolldev/atoll/atollruntime"
	"github.com/atolldev/atoll/manifest"
	"github.com/atolldev/atoll/modgraph"
	"github.com/atolldev/atoll/styles"
)

// Type aliases for public API
type (
	Atoll         = atollruntime.Atoll
	Config        = atollruntime.Config
	RenderFunc    = atollruntime.RenderFunc
	RenderInput   = atollruntime.RenderInput
	Asset         = manifest.Asset
	RouteManifest = manifest.RouteManifest
	GraphQuery    = modgraph.GraphQuery
	StyleMap      = styles.StyleMap
)

// Re-exported functions
var (
	New          = atollruntime.New
	LoadConfig   = atollruntime.LoadConfig
	GetIsDev     = atollruntime.GetIsDev
	SetModeToDev = atollruntime.SetModeToDev
	MustGetPort  = atollruntime.MustGetAppPort
)
