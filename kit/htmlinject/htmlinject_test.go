package htmlinject

import (
	"strings"
	"testing"
)

const shell = `<!DOCTYPE html><html><head><title>app</title></head><body><div id="root"></div></body></html>`

func TestIntoHead(t *testing.T) {
	t.Run("Appends after existing head content", func(t *testing.T) {
		out, err := IntoHead([]byte(shell), `<link rel="stylesheet" href="/a.css"/>`)
		if err != nil {
			t.Fatalf("IntoHead: %v", err)
		}
		s := string(out)
		titleIdx := strings.Index(s, "<title>")
		linkIdx := strings.Index(s, `<link rel="stylesheet" href="/a.css"`)
		if linkIdx == -1 {
			t.Fatalf("injected link missing: %s", s)
		}
		if linkIdx < titleIdx {
			t.Errorf("link injected before existing head content: %s", s)
		}
		headClose := strings.Index(s, "</head>")
		if linkIdx > headClose {
			t.Errorf("link injected outside head: %s", s)
		}
	})

	t.Run("Multiple tags preserve order", func(t *testing.T) {
		out, err := IntoHead([]byte(shell),
			`<link rel="modulepreload" href="/x.js"/><script type="module" src="/entry.js"></script>`)
		if err != nil {
			t.Fatal(err)
		}
		s := string(out)
		if strings.Index(s, "/x.js") > strings.Index(s, "/entry.js") {
			t.Errorf("injected tags out of order: %s", s)
		}
	})

	t.Run("Empty fragment is a no-op", func(t *testing.T) {
		out, err := IntoHead([]byte(shell), "  ")
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != shell {
			t.Errorf("document changed by empty injection")
		}
	})
}

func TestIntoBody(t *testing.T) {
	out, err := IntoBody([]byte(shell), `<script src="/refresh.js"></script>`)
	if err != nil {
		t.Fatalf("IntoBody: %v", err)
	}
	s := string(out)
	scriptIdx := strings.Index(s, `<script src="/refresh.js">`)
	rootIdx := strings.Index(s, `<div id="root">`)
	if scriptIdx == -1 {
		t.Fatalf("injected script missing: %s", s)
	}
	if scriptIdx < rootIdx {
		t.Errorf("script injected before existing body content: %s", s)
	}
}
