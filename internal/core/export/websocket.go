package export

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/snapshot"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Streamer re-broadcasts every snapshot as a binary TLV frame to connected
// websocket clients. A client that cannot keep up is disconnected rather
// than allowed to slow the broadcast down.
type Streamer struct {
	addr   string
	logger *log.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	server *http.Server
}

// NewStreamer creates a streamer serving "/stream" on addr.
func NewStreamer(addr string, logger *log.Logger) *Streamer {
	if logger == nil {
		logger = log.Provide()
	}
	return &Streamer{
		addr:    addr,
		logger:  logger.With(log.String("component", "streamer")),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start begins accepting websocket clients. It returns once the listener is
// running in the background.
func (s *Streamer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	s.server = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("streamer listener failed", log.Error(err))
		}
	}()

	s.logger.Info("streamer listening", log.String("addr", s.addr))
	return nil
}

// Stop closes the listener and every connected client.
func (s *Streamer) Stop(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.clients {
		_ = conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Consume implements the sink contract: the snapshot is re-packed into its
// wire form and broadcast to every client.
func (s *Streamer) Consume(snap *snapshot.Snapshot) {
	frame := snapshot.Encode(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.logger.Debug("dropping slow stream client",
				log.String("remote", conn.RemoteAddr().String()),
				log.Error(err))
			_ = conn.Close()
			delete(s.clients, conn)
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (s *Streamer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Streamer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("stream client connected", log.String("remote", conn.RemoteAddr().String()))

	// Discard client frames; the stream is one-way. Read errors signal
	// disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.clients, conn)
				s.mu.Unlock()
				_ = conn.Close()
				return
			}
		}
	}()
}
