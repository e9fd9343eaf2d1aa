// Package livereload streams engine changes to browsers over a websocket.
package livereload

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/pkg/basin"
	"github.com/sirupsen/logrus"
)

const (
	readBufferSize  = 1024
	writeBufferSize = 1024
	writeTimeout    = 10 * time.Second
	clientBuffer    = 32
)

// Message types sent to clients.
const (
	TypeHello  = "hello"
	TypeReady  = "ready"
	TypeChange = "change"
)

// Message is the JSON payload sent for every engine event.
type Message struct {
	Type string `json:"type"`
	Kind string `json:"kind,omitempty"`
	Path string `json:"path,omitempty"`
}

type client struct {
	send chan Message
}

// Hub fans engine events out to every connected websocket client. A client
// that falls behind drops messages instead of blocking the engine.
type Hub struct {
	logger   *logrus.Entry
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub with no clients.
func NewHub(logger *logrus.Entry) *Hub {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		logger: logger.WithField("component", "livereload"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			// Browsers load pages from arbitrary dev origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes the hub to every change and to Ready.
func (h *Hub) Attach(b *basin.Basin) {
	b.OnChange(basin.All, func(ctx context.Context, b *basin.Basin, ev basin.ChangeEvent) error {
		h.Broadcast(Message{Type: TypeChange, Kind: ev.Kind.String(), Path: ev.Path})
		return nil
	})
	b.On(basin.Ready, func(ctx context.Context, b *basin.Basin, args ...any) error {
		h.Broadcast(Message{Type: TypeReady})
		return nil
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.WithField("type", msg.Type).Debug("Client buffer full, dropping message")
		}
	}
}

func (h *Hub) add() *client {
	c := &client{send: make(chan Message, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams messages until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := h.add()
	defer h.remove(c)
	h.logger.WithField("remote", r.RemoteAddr).Debug("Client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, Message{Type: TypeHello}); err != nil {
		return
	}

	for {
		select {
		case msg := <-c.send:
			if err := h.write(conn, msg); err != nil {
				return
			}
		case <-done:
			h.logger.WithField("remote", r.RemoteAddr).Debug("Client disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, msg Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// Handler serves the hub at path.
func (h *Hub) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	return mux
}

// ListenAndServe serves the hub at addr and path until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr, path string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "failed to listen").WithDetail("addr", addr)
	}
	return h.Serve(ctx, ln, path)
}

// Serve accepts connections on ln until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, ln net.Listener, path string) error {
	srv := &http.Server{
		Handler:           h.Handler(path),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	h.logger.WithFields(logrus.Fields{
		"addr": ln.Addr().String(),
		"path": path,
	}).Info("Live reload listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeIO, "live reload server failed")
	}
}
