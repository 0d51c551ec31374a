// Package feed pushes pipeline snapshots to remote dashboards over
// WebSocket.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// Snapshotter is the polled observability surface the feed publishes.
type Snapshotter[T any] interface {
	Snapshot() T
}

// Feed broadcasts the latest snapshot to every connected client. Slow
// clients only ever see the newest message; older unsent ones are replaced.
type Feed[T any] struct {
	src      Snapshotter[T]
	interval time.Duration
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New returns a feed publishing src every interval.
func New[T any](src Snapshotter[T], interval time.Duration, logger *slog.Logger) *Feed[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Feed[T]{
		src:      src,
		interval: interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler serves the WebSocket feed on /ws and a one-shot JSON snapshot on
// /snapshot.
func (f *Feed[T]) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", f.serveWS)
	mux.HandleFunc("/snapshot", f.serveSnapshot)
	return mux
}

func (f *Feed[T]) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(f.src.Snapshot()); err != nil {
		f.logger.Warn("feed.snapshot_encode", "error", err)
	}
}

func (f *Feed[T]) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("feed.upgrade", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 1)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	n := len(f.clients)
	f.mu.Unlock()
	f.logger.Info("feed.client_connected", "remote", conn.RemoteAddr().String(), "clients", n)

	go f.writeLoop(c)
	// Incoming messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	f.drop(c)
}

func (f *Feed[T]) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			f.logger.Debug("feed.write", "error", err)
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

func (f *Feed[T]) drop(c *client) {
	f.mu.Lock()
	_, ok := f.clients[c]
	delete(f.clients, c)
	n := len(f.clients)
	f.mu.Unlock()
	if ok {
		close(c.send)
		f.logger.Info("feed.client_disconnected", "remote", c.conn.RemoteAddr().String(), "clients", n)
	}
}

// Broadcast sends v as JSON to every client.
func (f *Feed[T]) Broadcast(v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- msg:
		default:
			// replace the unsent message with the newer one
			select {
			case <-c.send:
			default:
			}
			c.send <- msg
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (f *Feed[T]) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Run publishes a snapshot every interval until ctx is done, then closes
// every client.
func (f *Feed[T]) Run(ctx context.Context) {
	t := time.NewTicker(f.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			f.closeAll()
			return
		case <-t.C:
			if f.Clients() == 0 {
				continue
			}
			if err := f.Broadcast(f.src.Snapshot()); err != nil {
				f.logger.Warn("feed.broadcast", "error", err)
			}
		}
	}
}

func (f *Feed[T]) closeAll() {
	f.mu.Lock()
	clients := make([]*client, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()
	for _, c := range clients {
		f.drop(c)
	}
}

// Serve listens on addr and runs the feed until ctx is done.
func (f *Feed[T]) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: f.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go f.Run(ctx)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	f.logger.Info("feed.listen", "addr", addr, "interval", f.interval)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
