// Package htmlinject inserts markup into an HTML document's head or body.
// It is used by the dev server to add the refresh client and by the
// runtime to add route asset tags to the HTML shell.
package htmlinject

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IntoHead parses doc, appends the given markup fragment to the end of the
// head element, and re-renders the document. A head element is created by
// the parser if the document lacks one.
func IntoHead(doc []byte, fragment string) ([]byte, error) {
	return inject(doc, fragment, atom.Head)
}

// IntoBody appends the given markup fragment to the end of the body element.
func IntoBody(doc []byte, fragment string) ([]byte, error) {
	return inject(doc, fragment, atom.Body)
}

func inject(doc []byte, fragment string, target atom.Atom) ([]byte, error) {
	if strings.TrimSpace(fragment) == "" {
		return doc, nil
	}

	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("htmlinject: parse document: %w", err)
	}

	targetNode := find(root, target)
	if targetNode == nil {
		return nil, fmt.Errorf("htmlinject: document has no <%s> element", target)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), targetNode)
	if err != nil {
		return nil, fmt.Errorf("htmlinject: parse fragment: %w", err)
	}
	for _, n := range nodes {
		targetNode.AppendChild(n)
	}

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return nil, fmt.Errorf("htmlinject: render: %w", err)
	}
	return out.Bytes(), nil
}

func find(n *html.Node, target atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == target {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, target); found != nil {
			return found
		}
	}
	return nil
}
