package atollruntime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atolldev/atoll/manifest"
)

func testConfig() *Config {
	return &Config{
		PagesDir:      "src/pages",
		ClientEntry:   "src/entry-client.ts",
		HTMLShellFile: "index.html",
	}
}

func TestLoadConfig(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "atoll.config.json")
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	t.Run("Defaults applied", func(t *testing.T) {
		p := writeConfig(t, `{
			"pagesDir": "src/pages",
			"clientEntry": "src/entry-client.ts",
			"htmlShellFile": "index.html"
		}`)
		cfg, err := LoadConfig(p)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.DistDir != "dist" {
			t.Errorf("DistDir default = %q", cfg.DistDir)
		}
		if cfg.IslandImportSource != "atoll/island" {
			t.Errorf("IslandImportSource default = %q", cfg.IslandImportSource)
		}
		if cfg.PublicPathPrefix != "/" {
			t.Errorf("PublicPathPrefix default = %q", cfg.PublicPathPrefix)
		}
		if cfg.RenderTimeoutMS != 10_000 {
			t.Errorf("RenderTimeoutMS default = %d", cfg.RenderTimeoutMS)
		}
	})

	t.Run("Missing required field", func(t *testing.T) {
		p := writeConfig(t, `{"pagesDir": "src/pages"}`)
		if _, err := LoadConfig(p); err == nil {
			t.Fatal("expected an error for a config without clientEntry")
		}
	})

	t.Run("New panics on invalid config", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		New(&Config{})
	})
}

func TestAssetsForRoute(t *testing.T) {
	entryScript := manifest.Asset{Type: manifest.AssetScript, Href: "/assets/entry.js", Module: true}
	routeStyle := manifest.Asset{Type: manifest.AssetStyle, Href: "/assets/foo.css"}

	newRuntime := func() *Atoll {
		a := New(testConfig())
		a.Lock()
		a.UnsafeSetRouteManifest(manifest.RouteManifest{
			manifest.DefaultEntryKey: {entryScript},
			"/foo":                   {routeStyle, entryScript},
		})
		a.Unlock()
		return a
	}

	t.Run("Entry assets precede route assets, deduplicated", func(t *testing.T) {
		got := newRuntime().AssetsForRoute("/foo")
		if len(got) != 2 {
			t.Fatalf("got %d assets, want 2: %v", len(got), got)
		}
		if got[0].Href != entryScript.Href || got[1].Href != routeStyle.Href {
			t.Errorf("asset order = %v", got)
		}
	})

	t.Run("Cache invalidated when manifest is replaced", func(t *testing.T) {
		a := newRuntime()
		a.AssetsForRoute("/foo") // warm the cache

		a.Lock()
		a.UnsafeSetRouteManifest(manifest.RouteManifest{
			"/foo": {routeStyle},
		})
		a.Unlock()

		got := a.AssetsForRoute("/foo")
		if len(got) != 1 || got[0].Href != routeStyle.Href {
			t.Errorf("stale cache served after manifest swap: %v", got)
		}
	})

	t.Run("Tag rendering", func(t *testing.T) {
		html := string(RenderAssetTags([]manifest.Asset{
			entryScript,
			{Type: manifest.AssetLink, Href: "/assets/dep.js", Module: true, Preload: true},
			routeStyle,
			{Type: manifest.AssetScript, Href: "/assets/island.js", Module: true, Async: true},
		}))
		for _, want := range []string{
			`<script type="module" src="/assets/entry.js"></script>`,
			`<link rel="modulepreload" href="/assets/dep.js">`,
			`<link rel="stylesheet" href="/assets/foo.css">`,
			`<script type="module" async src="/assets/island.js"></script>`,
		} {
			if !strings.Contains(html, want) {
				t.Errorf("rendered tags missing %q:\n%s", want, html)
			}
		}
	})
}

func TestServePage(t *testing.T) {
	shell := []byte(`<!doctype html><html><head><title>app</title></head><body><div id="root"></div></body></html>`)

	newRuntime := func() *Atoll {
		a := New(testConfig())
		a.Lock()
		a.UnsafeSetHTMLShell(shell)
		a.UnsafeSetRouteManifest(manifest.RouteManifest{
			"/foo": {{Type: manifest.AssetStyle, Href: "/assets/foo.css"}},
		})
		a.Unlock()
		return a
	}

	t.Run("Success injects assets and markup", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/foo", nil)

		newRuntime().ServePage(rec, req, "/foo", func(ctx context.Context, in *RenderInput) (string, error) {
			return "<main>hello</main>", nil
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `<link rel="stylesheet" href="/assets/foo.css">`) {
			t.Errorf("asset tag missing:\n%s", body)
		}
		if !strings.Contains(body, "<main>hello</main>") {
			t.Errorf("rendered markup missing:\n%s", body)
		}
	})

	t.Run("Timed-out render returns 500 with message and stack", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/foo", nil)

		newRuntime().ServePage(rec, req, "/foo", func(ctx context.Context, in *RenderInput) (string, error) {
			return "", errors.New(RenderTimedOutMsg)
		})

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		var payload struct {
			Error string `json:"error"`
			Stack string `json:"stack"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error payload: %v", err)
		}
		if payload.Error != RenderTimedOutMsg {
			t.Errorf("payload error = %q", payload.Error)
		}
		if payload.Stack == "" {
			t.Error("payload stack empty")
		}
	})

	t.Run("Other render errors return 500 without stack", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/foo", nil)

		newRuntime().ServePage(rec, req, "/foo", func(ctx context.Context, in *RenderInput) (string, error) {
			return "", errors.New("component threw")
		})

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		var payload struct {
			Error string `json:"error"`
			Stack string `json:"stack"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error payload: %v", err)
		}
		if payload.Error != "component threw" || payload.Stack != "" {
			t.Errorf("payload = %+v", payload)
		}
	})
}
