// Package atolldev runs the development loop: the Vite child process, the
// file watcher, the browser refresh hub, and per-request style resolution
// against the live module graph.
package atolldev

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

type changeType string

const (
	changeTypeCSSUpdate  changeType = "css-update"
	changeTypeReload     changeType = "reload"
	changeTypeRebuilding changeType = "rebuilding"
)

type refreshPayload struct {
	ChangeType changeType `json:"changeType"`
	// URL of the changed style module, for css-update payloads. The
	// browser client re-requests the page's style blocks and swaps only
	// the block with this id.
	StyleURL string `json:"styleURL,omitempty"`
}

// refreshHub fans broadcast payloads out to connected browsers. All client
// state is owned by the run loop goroutine; handlers communicate with it
// through channels only.
type refreshHub struct {
	conns      map[*refreshConn]bool
	register   chan *refreshConn
	unregister chan *refreshConn
	broadcast  chan refreshPayload
	done       chan struct{} // closed once the run loop has fully stopped
}

type refreshConn struct {
	ws     *websocket.Conn
	notify chan refreshPayload
}

func newRefreshHub() *refreshHub {
	return &refreshHub{
		conns:      make(map[*refreshConn]bool),
		register:   make(chan *refreshConn, 16), // buffered to prevent handler blocking
		unregister: make(chan *refreshConn, 16), // buffered to prevent handler blocking
		broadcast:  make(chan refreshPayload),   // unbuffered
		done:       make(chan struct{}),
	}
}

// run loops until ctx is cancelled, then closes every connection and drains
// the channels so in-flight handlers cannot deadlock.
func (h *refreshHub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.conns {
				close(c.notify)
				c.ws.Close()
			}
			h.drain()
			return

		case c := <-h.register:
			h.conns[c] = true

		case c := <-h.unregister:
			if _, ok := h.conns[c]; ok {
				delete(h.conns, c)
				close(c.notify)
				c.ws.Close()
			}

		case msg := <-h.broadcast:
			for c := range h.conns {
				select {
				case c.notify <- msg:
				default:
					// Skip connections that are not keeping up
				}
			}
		}
	}
}

func (h *refreshHub) drain() {
	for {
		select {
		case c := <-h.register:
			c.ws.Close()
		case c := <-h.unregister:
			c.ws.Close()
		case <-h.broadcast:
			// discard
		default:
			return
		}
	}
}

// wait blocks until the run loop has fully stopped
func (h *refreshHub) wait() {
	<-h.done
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *refreshHub) handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := &refreshConn{ws: ws, notify: make(chan refreshPayload, 1)}

		// Non-blocking send in case the hub is shutting down
		select {
		case h.register <- c:
		case <-ctx.Done():
			ws.Close()
			return
		}

		defer func() {
			select {
			case h.unregister <- c:
			case <-ctx.Done():
			default:
				// Channel full or closed, the run loop will clean up
			}
		}()

		// Reader goroutine exists only to observe the close
		go func() {
			defer ws.Close()
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					select {
					case h.unregister <- c:
					case <-ctx.Done():
					default:
					}
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-c.notify:
				if !ok {
					return
				}
				if err := ws.WriteJSON(msg); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
