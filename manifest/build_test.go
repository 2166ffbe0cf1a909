package manifest

import (
	"strings"
	"testing"

	"github.com/atolldev/atoll/kit/viteutil"
)

// fixtureAssets models a route chunk X depending on chunk Y, with the
// shared client entry alongside.
func fixtureAssets() viteutil.AssetManifest {
	return viteutil.AssetManifest{
		"src/entry-client.ts": {
			Src:     "src/entry-client.ts",
			File:    "assets/entry-client.123.js",
			IsEntry: true,
			CSS:     []string{"assets/entry-client.123.css"},
		},
		"src/pages/foo.tsx": {
			Src:     "src/pages/foo.tsx",
			File:    "assets/foo.456.js",
			Imports: []string{"_chunk-x.js"},
			CSS:     []string{"assets/foo.456.css"},
		},
		"_chunk-x.js": {
			File:    "assets/chunk-x.789.js",
			Imports: []string{"_chunk-y.js"},
		},
		"_chunk-y.js": {
			File: "assets/chunk-y.abc.js",
		},
	}
}

func fixtureSSR() viteutil.SSRManifest {
	return viteutil.SSRManifest{
		"src/pages/foo.tsx":   {"src/pages/foo.tsx"},
		"src/entry-client.ts": {"src/entry-client.ts"},
	}
}

func fixtureOptions() BuildOptions {
	return BuildOptions{
		Routes:           map[string]string{"src/pages/foo.tsx": "/foo"},
		EntrySrc:         "src/entry-client.ts",
		EntryKey:         "_entry-client",
		PublicPathPrefix: "/",
	}
}

func hrefs(assets []Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Href
	}
	return out
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if strings.Contains(s, want) {
			return i
		}
	}
	return -1
}

func TestBuild(t *testing.T) {
	t.Run("Dependency-first ordering", func(t *testing.T) {
		m := Build(fixtureSSR(), fixtureAssets(), fixtureOptions())

		route, ok := m["/foo"]
		if !ok {
			t.Fatalf("manifest missing /foo: %v", m)
		}
		got := hrefs(route)

		y := indexOf(got, "chunk-y")
		x := indexOf(got, "chunk-x")
		own := indexOf(got, "foo.456.js")
		if y == -1 || x == -1 || own == -1 {
			t.Fatalf("missing expected assets in %v", got)
		}
		if !(y < x && x < own) {
			t.Errorf("expected chunk-y before chunk-x before route's own file, got %v", got)
		}
	})

	t.Run("Route module is a script, deps are preload links", func(t *testing.T) {
		m := Build(fixtureSSR(), fixtureAssets(), fixtureOptions())
		for _, a := range m["/foo"] {
			switch {
			case strings.Contains(a.Href, "foo.456.js"):
				if a.Type != AssetScript || !a.Module {
					t.Errorf("route module asset = %+v, want module script", a)
				}
			case strings.Contains(a.Href, "chunk-"):
				if a.Type != AssetLink || !a.Preload {
					t.Errorf("dep asset = %+v, want preload link", a)
				}
			case strings.HasSuffix(a.Href, ".css"):
				if a.Type != AssetStyle {
					t.Errorf("css asset = %+v, want style", a)
				}
			}
		}
	})

	t.Run("Entry assets land under the synthetic key", func(t *testing.T) {
		m := Build(fixtureSSR(), fixtureAssets(), fixtureOptions())
		entry, ok := m["_entry-client"]
		if !ok {
			t.Fatalf("manifest missing entry key: %v", m)
		}
		if indexOf(hrefs(entry), "entry-client.123.js") == -1 {
			t.Errorf("entry script missing: %v", hrefs(entry))
		}
	})

	t.Run("Hrefs carry the public path prefix", func(t *testing.T) {
		opts := fixtureOptions()
		opts.PublicPathPrefix = "/static/"
		m := Build(fixtureSSR(), fixtureAssets(), opts)
		for _, a := range m["/foo"] {
			if !strings.HasPrefix(a.Href, "/static/") {
				t.Errorf("asset href missing prefix: %q", a.Href)
			}
		}
	})

	t.Run("Unmapped SSR keys are ignored", func(t *testing.T) {
		ssr := fixtureSSR()
		ssr["src/server-only.ts"] = []string{"src/pages/foo.tsx"}
		m := Build(ssr, fixtureAssets(), fixtureOptions())
		if len(m) != 2 {
			t.Errorf("expected 2 route entries, got %v", m)
		}
	})

	t.Run("Dangling asset key is skipped", func(t *testing.T) {
		ssr := fixtureSSR()
		ssr["src/pages/foo.tsx"] = append([]string{"_gone.js"}, ssr["src/pages/foo.tsx"]...)
		m := Build(ssr, fixtureAssets(), fixtureOptions())
		if indexOf(hrefs(m["/foo"]), "foo.456.js") == -1 {
			t.Errorf("route assets lost after dangling key: %v", m["/foo"])
		}
	})

	t.Run("Island pass restricts to suffixed keys and marks scripts async", func(t *testing.T) {
		opts := fixtureOptions()
		opts.Routes = map[string]string{"src/pages/foo.tsx": "/foo?island"}
		opts.IslandSuffix = "?island"
		m := Build(fixtureSSR(), fixtureAssets(), opts)

		if _, ok := m["/foo?island"]; !ok {
			t.Fatalf("island key missing: %v", m)
		}
		if _, ok := m["_entry-client?island"]; !ok {
			t.Fatalf("island entry key missing: %v", m)
		}
		for _, a := range m["/foo?island"] {
			if a.Type == AssetScript && !a.Async {
				t.Errorf("island script not async: %+v", a)
			}
		}
	})

	t.Run("Deterministic output", func(t *testing.T) {
		first, err := Build(fixtureSSR(), fixtureAssets(), fixtureOptions()).MarshalStable()
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 10; i++ {
			again, err := Build(fixtureSSR(), fixtureAssets(), fixtureOptions()).MarshalStable()
			if err != nil {
				t.Fatal(err)
			}
			if string(first) != string(again) {
				t.Fatalf("manifest output not byte-identical:\n%s\n---\n%s", first, again)
			}
		}
	})
}
