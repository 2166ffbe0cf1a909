package atollruntime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/atolldev/atoll/kit/htmlinject"
)

// RenderTimedOutMsg is the exact message render environments raise when a
// server render exceeds its deadline. It is matched by string because the
// render environment is out of process and errors cross a serialization
// boundary.
const RenderTimedOutMsg = "renderToString timed out"

// RenderInput is what a RenderFunc receives for one request.
type RenderInput struct {
	RouteKey string
	Props    map[string]any
}

// RenderFunc produces the route's HTML body markup. Implementations bridge
// to the render environment and must respect ctx cancellation.
type RenderFunc func(ctx context.Context, in *RenderInput) (string, error)

type renderErrorPayload struct {
	Error string `json:"error"`
	Stack string `json:"stack,omitempty"`
}

// ServePage renders one route and writes the completed HTML document: the
// route's asset tags go into the shell's head, the rendered markup into its
// body. The render is bounded by the configured render timeout.
//
// A timed-out render is deliberately kept out of the error log: timeouts
// under load arrive in bursts and the log stream is the wrong place to
// absorb them. The client still gets a 500 carrying the message and stack.
func (a *Atoll) ServePage(w http.ResponseWriter, r *http.Request, routeKey string, render RenderFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), a.Config.RenderTimeout())
	defer cancel()

	markup, err := render(ctx, &RenderInput{RouteKey: routeKey})
	if err != nil {
		a.serveRenderError(w, routeKey, err)
		return
	}

	doc := a.GetHTMLShell()
	doc, err = htmlinject.IntoHead(doc, string(a.RouteAssetTags(routeKey)))
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

func (a *Atoll) serveRenderError(w http.ResponseWriter, routeKey string, err error) {
	timedOut := err.Error() == RenderTimedOutMsg ||
		errors.Is(err, context.DeadlineExceeded)

	if !timedOut {
		Log.Error("render failed", "route", routeKey, "error", err)
	}

	payload := renderErrorPayload{Error: err.Error()}
	if timedOut {
		payload.Error = RenderTimedOutMsg
		payload.Stack = string(debug.Stack())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(payload)
}
