package atollruntime

import (
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/atolldev/atoll/styles"
)

// CollectStyles resolves every style reachable from the given page entry
// files through the current module graph. Used by the dev server per
// request; production routes get their styles from the route manifest
// instead.
func (a *Atoll) CollectStyles(ctx context.Context, files []string) (styles.StyleMap, error) {
	graph := a.GetGraph()
	if graph == nil {
		return nil, fmt.Errorf("atoll: no module graph configured")
	}

	a.mu.RLock()
	classMap := a._scopedClassMap
	a.mu.RUnlock()

	c := &styles.Collector{
		Graph:          graph,
		Log:            Log,
		ScopedClassMap: classMap,
	}
	return c.Collect(ctx, files)
}

// RenderStyleBlocks renders a collected style map as inline style elements,
// one per module URL, in sorted URL order so output is stable across
// requests. Scoped modules contribute no inline CSS (their payload is the
// class mapping) and are skipped.
func RenderStyleBlocks(m styles.StyleMap) template.HTML {
	urls := make([]string, 0, len(m))
	for u := range m {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var sb strings.Builder
	for _, u := range urls {
		s := m[u]
		if s.Scoped() {
			continue
		}
		sb.WriteString(`<style data-atoll-dev-id="`)
		sb.WriteString(template.HTMLEscapeString(u))
		sb.WriteString(`">`)
		sb.WriteString(s.CSS)
		sb.WriteString(`</style>`)
	}
	return template.HTML(sb.String())
}
