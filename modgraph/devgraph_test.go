package modgraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newDevGraphServer(t *testing.T) *httptest.Server {
	t.Helper()

	modules := map[string]moduleInfo{
		"/page": {
			ID:   "page",
			URL:  "/page",
			Deps: &[]string{"/style.css"},
		},
		"/style.css": {
			ID:  "style.css",
			URL: "/style.css",
		},
	}
	exports := map[string]any{
		"style.css": map[string]any{"default": ".x{color:red}"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/__atoll/graph/module", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("url")
		if key == "" {
			key = "/" + r.URL.Query().Get("id")
		}
		mi, ok := modules[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(mi)
	})
	mux.HandleFunc("/__atoll/graph/load", func(w http.ResponseWriter, r *http.Request) {
		e, ok := exports[r.URL.Query().Get("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(e)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDevGraph(t *testing.T) {
	ctx := context.Background()
	srv := newDevGraphServer(t)
	g := NewDevGraph(srv.URL)

	t.Run("ModuleByURL with transform result", func(t *testing.T) {
		n, err := g.ModuleByURL(ctx, "/page")
		if err != nil {
			t.Fatal(err)
		}
		if n == nil || n.ID != "page" {
			t.Fatalf("node = %+v", n)
		}
		if n.TransformResult == nil || len(n.TransformResult.Deps) != 1 {
			t.Errorf("transform result = %+v", n.TransformResult)
		}
	})

	t.Run("Absent module is nil, not error", func(t *testing.T) {
		n, err := g.ModuleByURL(ctx, "/ghost")
		if err != nil {
			t.Fatalf("expected nil error for 404, got %v", err)
		}
		if n != nil {
			t.Errorf("node = %+v, want nil", n)
		}
	})

	t.Run("Load returns exports", func(t *testing.T) {
		exports, err := g.Load(ctx, "style.css")
		if err != nil {
			t.Fatal(err)
		}
		if got, _ := exports.Default(); got != ".x{color:red}" {
			t.Errorf("default export = %q", got)
		}
	})

	t.Run("Load of unknown module fails as not loadable", func(t *testing.T) {
		_, err := g.Load(ctx, "ghost")
		var nle *NotLoadableError
		if !errors.As(err, &nle) {
			t.Errorf("err = %v, want NotLoadableError", err)
		}
	})

	t.Run("Walker end to end over HTTP graph", func(t *testing.T) {
		root, err := g.ModuleByURL(ctx, "/page")
		if err != nil {
			t.Fatal(err)
		}
		set := (&Walker{Graph: g}).Collect(ctx, root)
		if !set.Has("style.css") {
			t.Errorf("deps = %v, want style.css", ids(set))
		}
	})
}
