package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-hub/services"
	"chat-hub/sink"
)

// Server upgrades HTTP requests and hands each connection a fresh identity,
// sink, and pump pair.
type Server struct {
	log         *slog.Logger
	service     services.IChatService
	upgrader    websocket.Upgrader
	sinkSize    int
	sinkTimeout time.Duration
}

func NewServer(log *slog.Logger, service services.IChatService,
	allowedOrigins []string, sinkSize int, sinkTimeout time.Duration) *Server {
	return &Server{
		log:     log,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sinkSize:    sinkSize,
		sinkTimeout: sinkTimeout,
	}
}

// originChecker returns the upgrade policy: an empty allow-list keeps the
// gorilla default (same-origin only), "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	normalized := make(map[string]struct{}, len(allowed))
	allowAll := false
	for _, origin := range allowed {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		normalized[strings.ToLower(trimmed)] = struct{}{}
	}

	if allowAll {
		return func(*http.Request) bool { return true }
	}
	if len(normalized) == 0 {
		return nil // gorilla's same-origin default
	}
	return func(r *http.Request) bool {
		_, ok := normalized[strings.ToLower(r.Header.Get("Origin"))]
		return ok
	}
}

// HandleWS is the websocket endpoint. The handler goroutine becomes the
// connection's read pump; the write pump gets its own goroutine.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	connID := uuid.NewString()
	connSink := sink.NewBufferedSink(s.log, s.sinkSize, s.sinkTimeout)
	client := NewClient(connID, conn, connSink, s.service, s.log)

	s.log.Info("Client connected", "conn_id", connID, "remote", r.RemoteAddr)
	s.service.Connect(connID, connSink)

	go client.WritePump()
	client.ReadPump()

	s.log.Info("Client disconnected", "conn_id", connID)
}
