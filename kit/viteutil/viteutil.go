// Package viteutil reads the JSON artifacts a Vite production build emits
// (the asset manifest and the SSR manifest) and manages Vite child
// processes for the dev server and build pipeline.
package viteutil

import (
	"encoding/json"
	"fmt"
	"os"
)

// Chunk is one entry of Vite's build manifest: the emitted file for a
// source module or generated chunk, plus its own static imports and CSS.
type Chunk struct {
	Src            string   `json:"src"`
	File           string   `json:"file"`
	CSS            []string `json:"css"`
	Assets         []string `json:"assets"`
	IsEntry        bool     `json:"isEntry"`
	Name           string   `json:"name"`
	IsDynamicEntry bool     `json:"isDynamicEntry"`
	Imports        []string `json:"imports"`
	DynamicImports []string `json:"dynamicImports"`
}

// AssetManifest maps module/chunk ids to their emitted output metadata.
type AssetManifest map[string]Chunk

// SSRManifest maps a server-module id to the asset-manifest keys it
// transitively needs on the client.
type SSRManifest map[string][]string

func ReadAssetManifest(path string) (AssetManifest, error) {
	m := make(AssetManifest)
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("viteutil: read asset manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("viteutil: parse asset manifest %s: %w", path, err)
	}
	return m, nil
}

func ReadSSRManifest(path string) (SSRManifest, error) {
	m := make(SSRManifest)
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("viteutil: read ssr manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("viteutil: parse ssr manifest %s: %w", path, err)
	}
	return m, nil
}

// EntryKey returns the manifest key of the entry chunk whose source matches
// entrySrc, or the first entry chunk if entrySrc is empty.
func (m AssetManifest) EntryKey(entrySrc string) (string, bool) {
	for key, chunk := range m {
		if !chunk.IsEntry {
			continue
		}
		if entrySrc == "" || chunk.Src == entrySrc {
			return key, true
		}
	}
	return "", false
}
