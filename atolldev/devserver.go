package atolldev

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/atolldev/atoll/atollruntime"
	"github.com/atolldev/atoll/kit/colorlog"
	"github.com/atolldev/atoll/kit/htmlinject"
	"github.com/atolldev/atoll/kit/netutil"
	"github.com/atolldev/atoll/kit/viteutil"
	"github.com/atolldev/atoll/modgraph"
	"github.com/fsnotify/fsnotify"
)

var Log = colorlog.New("atoll dev")

// stylesQueryParam is how the refresh client asks a page for just its
// current style blocks instead of a full render.
const stylesQueryParam = "__atoll_styles"

// Server is the development loop: Vite child process, file watcher, and
// refresh hub.
type Server struct {
	app         *atollruntime.Atoll
	vite        *viteutil.Cmd
	watcher     *Watcher
	hub         *refreshHub
	refreshPort int
}

func NewServer(app *atollruntime.Atoll) *Server {
	cfg := app.Config
	return &Server{
		app: app,
		vite: viteutil.NewCmd(viteutil.CmdOptions{
			PackageManagerBaseCmd: cfg.PackageManagerBaseCmd,
			ConfigFile:            cfg.ViteConfigFile,
		}, Log),
		hub: newRefreshHub(),
	}
}

// RefreshPort returns the port the refresh websocket endpoint listens on.
// Valid after Run has started.
func (s *Server) RefreshPort() int { return s.refreshPort }

// Run starts the dev loop and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	atollruntime.SetModeToDev()
	s.app.SetIsDev(true)

	if err := s.vite.StartDev(); err != nil {
		return err
	}
	defer s.vite.Stop()

	s.app.SetGraph(modgraph.NewDevGraph(atollruntime.GetViteDevURL()))

	port, err := netutil.GetFreePort(defaultRefreshPort)
	if err != nil {
		return fmt.Errorf("atolldev: init refresh port: %w", err)
	}
	s.refreshPort = port

	watcher, err := NewWatcher(".", s.app.Config.DistDir, nil, nil, Log)
	if err != nil {
		return fmt.Errorf("atolldev: init watcher: %w", err)
	}
	s.watcher = watcher
	defer watcher.Close()

	go s.hub.run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.hub.handler(ctx))
	mux.HandleFunc("/refresh.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, RefreshScriptInner(s.refreshPort))
	})
	refreshSrv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		refreshSrv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := refreshSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Log.Error("refresh server failed", "error", err)
		}
	}()

	Log.Info("dev server running",
		"vite", atollruntime.GetViteDevURL(),
		"refresh port", port,
	)

	s.runWatcher(ctx)
	s.hub.wait()
	return nil
}

func (s *Server) runWatcher(ctx context.Context) {
	debouncer := NewDebouncer(30*time.Millisecond, func(events []fsnotify.Event) {
		s.processEvents(events)
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			debouncer.Add(evt)
		case err := <-s.watcher.Errors():
			Log.Error("Watcher error", "error", err)
		}
	}
}

func (s *Server) processEvents(events []fsnotify.Event) {
	// Dedupe by path
	eventMap := make(map[string]fsnotify.Event)
	for _, evt := range events {
		eventMap[evt.Name] = evt
	}

	var styleChanges []string
	needsReload := false

	for _, evt := range eventMap {
		// Handle new directories
		info, _ := os.Stat(evt.Name)
		if info != nil && info.IsDir() {
			if evt.Has(fsnotify.Create) || evt.Has(fsnotify.Rename) {
				s.watcher.AddDir(evt.Name)
			}
			continue
		}

		if !s.watcher.IsRelevant(evt.Name) || isNonEmptyChmodOnly(evt) {
			continue
		}

		Log.Info("File changed", "op", evt.Op.String(), "file", evt.Name)

		if isStylePath(evt.Name) {
			styleChanges = append(styleChanges, styleURLFor(evt.Name))
			continue
		}
		needsReload = true
	}

	s.watcher.RemoveStale()

	if needsReload {
		s.broadcast(refreshPayload{ChangeType: changeTypeRebuilding})
		s.broadcast(refreshPayload{ChangeType: changeTypeReload})
		return
	}
	for _, url := range styleChanges {
		s.broadcast(refreshPayload{ChangeType: changeTypeCSSUpdate, StyleURL: url})
	}
}

func (s *Server) broadcast(payload refreshPayload) {
	select {
	case s.hub.broadcast <- payload:
	case <-s.hub.done:
	}
}

func isStylePath(path string) bool {
	switch filepath.Ext(path) {
	case ".css", ".less", ".sass", ".scss", ".styl", ".stylus", ".pcss", ".postcss":
		return true
	}
	return false
}

// styleURLFor converts an on-disk path to the module URL the bundler graph
// uses for it (working-directory relative with a leading slash).
func styleURLFor(path string) string {
	rel, err := filepath.Rel(".", path)
	if err != nil {
		rel = path
	}
	return "/" + filepath.ToSlash(rel)
}

// ServeDevPage renders one route in dev: styles are resolved live from the
// bundler's module graph and inlined, and the refresh client is injected.
// A request carrying the styles query param gets only the style blocks,
// which is how the refresh client swaps CSS without a reload.
func (s *Server) ServeDevPage(
	w http.ResponseWriter,
	r *http.Request,
	routeKey string,
	pageEntry string,
	render atollruntime.RenderFunc,
) {
	styleMap, err := s.app.CollectStyles(r.Context(), []string{pageEntry})
	if err != nil {
		Log.Error("style collection failed", "route", routeKey, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	styleBlocks := atollruntime.RenderStyleBlocks(styleMap)

	if r.URL.Query().Has(stylesQueryParam) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, string(styleBlocks))
		return
	}

	markup, err := render(r.Context(), &atollruntime.RenderInput{RouteKey: routeKey})
	if err != nil {
		Log.Error("render failed", "route", routeKey, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	head := string(styleBlocks) + string(RefreshScript(s.refreshPort))
	doc := s.app.GetHTMLShell()
	doc, err = htmlinject.IntoHead(doc, head)
	if err == nil {
		doc, err = htmlinject.IntoBody(doc, markup)
	}
	if err != nil {
		Log.Error("could not assemble HTML document", "route", routeKey, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(doc)
}

// isNonEmptyChmodOnly checks if an event is only a chmod operation on a
// non-empty file. These are likely permission changes, not content changes.
// Chmod on an empty file might be part of a file creation sequence (some
// editors: create empty, chmod, write), so those are not skipped.
func isNonEmptyChmodOnly(evt fsnotify.Event) bool {
	if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) || evt.Has(fsnotify.Remove) ||
		evt.Has(fsnotify.Rename) {
		return false
	}

	info, err := os.Stat(evt.Name)
	if err != nil {
		return false
	}

	return info.Size() > 0
}
