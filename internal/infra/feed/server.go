// Package feed streams applied-operation events to websocket subscribers.
// The feed is broadcast only; client messages are read and discarded to
// service control frames.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"auction_go/internal/event"
	"auction_go/internal/infra"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server fans applied-operation events out to all connected subscribers.
type Server struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	wg      sync.WaitGroup
	closed  bool
}

func NewServer() *Server {
	return &Server{clients: make(map[*client]struct{})}
}

// Handler upgrades the request and registers the subscriber.
func (s *Server) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()

	infra.GlobalMetrics.IncrementFeedClients()
	slog.Info("feed client connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int("clients", n))

	s.wg.Add(2)
	go s.writeLoop(c)
	go s.readLoop(c)
}

// Broadcast queues ev to every subscriber. Slow subscribers are dropped
// so the sequencer never blocks on the feed.
func (s *Server) Broadcast(ev *event.OperationEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		slog.Error("feed marshal failed", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- b:
		default:
			s.dropLocked(c)
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeTimeout))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.remove(c)
				return
			}
		}
	}
}

func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(c)
}

func (s *Server) dropLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	c.conn.Close()
	infra.GlobalMetrics.DecrementFeedClients()
}

// Shutdown disconnects all subscribers and waits for their loops to exit.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		s.dropLocked(c)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
