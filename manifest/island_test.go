package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergeIslands(t *testing.T) {
	opts := MergeOptions{EntryKey: "_entry-client", IslandSuffix: "?island"}

	entryScript := Asset{Type: AssetScript, Href: "/assets/entry.1.js", Module: true}
	islandEntryScript := Asset{Type: AssetScript, Href: "/assets/entry.2.js", Module: true, Async: true}
	fooStyle := Asset{Type: AssetStyle, Href: "/assets/a.css"}
	fooScript := Asset{Type: AssetScript, Href: "/assets/b.js", Module: true}
	islandScript := Asset{Type: AssetScript, Href: "/assets/c.js", Module: true, Async: true}

	primary := RouteManifest{
		"_entry-client": {Asset{Type: AssetStyle, Href: "/assets/entry.css"}, entryScript},
		"/foo":          {fooStyle, fooScript},
		"/bar":          {Asset{Type: AssetStyle, Href: "/assets/bar.css"}},
	}
	island := RouteManifest{
		"_entry-client?island": {islandEntryScript},
		"/foo?island":          {islandScript, Asset{Type: AssetStyle, Href: "/assets/island-only.css"}},
	}

	t.Run("Plain routes keep styles and lose scripts", func(t *testing.T) {
		m := MergeIslands(primary, island, opts)
		if !reflect.DeepEqual(m["/foo"], []Asset{fooStyle}) {
			t.Errorf("/foo = %v, want only %v", m["/foo"], fooStyle)
		}
		if len(m["/bar"]) != 1 || m["/bar"][0].Href != "/assets/bar.css" {
			t.Errorf("/bar = %v", m["/bar"])
		}
	})

	t.Run("Island routes take island scripts and the owner's styles", func(t *testing.T) {
		m := MergeIslands(primary, island, opts)
		want := []Asset{fooStyle, islandScript}
		if !reflect.DeepEqual(m["/foo?island"], want) {
			t.Errorf("/foo?island = %v, want %v", m["/foo?island"], want)
		}
	})

	t.Run("Entry key takes island build scripts with primary styles", func(t *testing.T) {
		m := MergeIslands(primary, island, opts)
		want := []Asset{{Type: AssetStyle, Href: "/assets/entry.css"}, islandEntryScript}
		if !reflect.DeepEqual(m["_entry-client"], want) {
			t.Errorf("_entry-client = %v, want %v", m["_entry-client"], want)
		}
		if _, ok := m["_entry-client?island"]; ok {
			t.Errorf("island entry key must not survive the merge: %v", m)
		}
	})

	t.Run("Entry scripts are not repeated on island routes", func(t *testing.T) {
		dup := RouteManifest{
			"_entry-client?island": {islandEntryScript},
			"/foo?island":          {islandEntryScript, islandScript},
		}
		m := MergeIslands(primary, dup, opts)
		for _, a := range m["/foo?island"] {
			if a.Href == islandEntryScript.Href {
				t.Errorf("entry script duplicated on island route: %v", m["/foo?island"])
			}
		}
	})

	t.Run("Missing island entry falls back to the primary entry", func(t *testing.T) {
		m := MergeIslands(primary, RouteManifest{}, opts)
		got := scriptsOf(m["_entry-client"])
		if len(got) != 1 || got[0].Href != entryScript.Href {
			t.Errorf("entry scripts = %v, want primary fallback", got)
		}
	})
}

func TestSyncStyleFiles(t *testing.T) {
	write := func(t *testing.T, path, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("Copies staged styles into the output directory", func(t *testing.T) {
		staging, out := t.TempDir(), t.TempDir()
		write(t, filepath.Join(staging, "assets/island.css"), ".i{}")
		write(t, filepath.Join(out, "assets/main.css"), ".m{}")

		m := RouteManifest{
			"/foo":        {{Type: AssetStyle, Href: "/assets/main.css"}},
			"/foo?island": {{Type: AssetStyle, Href: "/assets/island.css"}},
		}
		if err := SyncStyleFiles(m, "/", staging, out); err != nil {
			t.Fatalf("SyncStyleFiles: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(out, "assets/island.css"))
		if err != nil {
			t.Fatalf("copied style unreadable: %v", err)
		}
		if string(data) != ".i{}" {
			t.Errorf("copied style content = %q", data)
		}
	})

	t.Run("Style missing from both directories is fatal", func(t *testing.T) {
		m := RouteManifest{
			"/foo": {{Type: AssetStyle, Href: "/assets/ghost.css"}},
		}
		if err := SyncStyleFiles(m, "/", t.TempDir(), t.TempDir()); err == nil {
			t.Fatal("expected an error for a style absent everywhere")
		}
	})

	t.Run("Scripts are not touched", func(t *testing.T) {
		m := RouteManifest{
			"/foo": {{Type: AssetScript, Href: "/assets/ghost.js", Module: true}},
		}
		if err := SyncStyleFiles(m, "/", t.TempDir(), t.TempDir()); err != nil {
			t.Fatalf("SyncStyleFiles: %v", err)
		}
	})
}
