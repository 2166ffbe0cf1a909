package modgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// DevGraph queries the bundler dev server's module-graph endpoints over
// HTTP. The dev server exposes these through a small plugin:
//
//	GET {base}/__atoll/graph/module?url=...  -> module info JSON, 404 if absent
//	GET {base}/__atoll/graph/module?id=...   -> same, keyed by id
//	GET {base}/__atoll/graph/load?id=...     -> evaluated module exports JSON
//
// Lookups can trigger on-demand transforms in the bundler and are therefore
// high latency; callers issue sibling lookups concurrently (see Walker).
type DevGraph struct {
	BaseURL string
	Client  *http.Client
}

func NewDevGraph(baseURL string) *DevGraph {
	return &DevGraph{BaseURL: baseURL, Client: &http.Client{}}
}

// moduleInfo is the dev server's wire shape for one graph node. Deps is
// null (not just empty) for modules that never went through the transform
// pipeline.
type moduleInfo struct {
	ID       string       `json:"id"`
	URL      string       `json:"url"`
	Deps     *[]string    `json:"deps"`
	Imported []moduleInfo `json:"importedModules"`
}

func (mi *moduleInfo) toNode() *Node {
	n := &Node{ID: mi.ID, URL: mi.URL}
	if mi.Deps != nil {
		n.TransformResult = &TransformResult{Deps: *mi.Deps}
	}
	for i := range mi.Imported {
		n.ImportedModules = append(n.ImportedModules, mi.Imported[i].toNode())
	}
	return n
}

func (g *DevGraph) ModuleByID(ctx context.Context, id string) (*Node, error) {
	return g.module(ctx, "id", id)
}

func (g *DevGraph) ModuleByURL(ctx context.Context, moduleURL string) (*Node, error) {
	return g.module(ctx, "url", moduleURL)
}

func (g *DevGraph) module(ctx context.Context, param, value string) (*Node, error) {
	var mi moduleInfo
	found, err := g.getJSON(ctx, "/__atoll/graph/module?"+param+"="+url.QueryEscape(value), &mi)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return mi.toNode(), nil
}

func (g *DevGraph) Load(ctx context.Context, idOrURL string) (ModuleExports, error) {
	var exports ModuleExports
	found, err := g.getJSON(ctx, "/__atoll/graph/load?id="+url.QueryEscape(idOrURL), &exports)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotLoadableError{ID: idOrURL}
	}
	return exports, nil
}

// getJSON performs a GET and decodes the response. A 404 is reported as
// found=false rather than an error, matching GraphQuery's nil-for-absent
// contract.
func (g *DevGraph) getJSON(ctx context.Context, path string, dest any) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("modgraph: create request: %w", err)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("modgraph: dev server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("modgraph: dev server returned %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("modgraph: decode dev server response: %w", err)
	}
	return true, nil
}
