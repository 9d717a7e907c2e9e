package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"

	"github.com/amdjml/WMATAPI/internal/broadcast"
)

// SubscriberHub is the part of the broadcast hub the transport needs
type SubscriberHub interface {
	Register(ctx context.Context, sub broadcast.Subscriber) error
	Unregister(sub broadcast.Subscriber)
	Len() int
}

// wsSubscriber adapts a WebSocket connection to broadcast.Subscriber
type wsSubscriber struct {
	id   string
	conn *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{id: uuid.New().String(), conn: conn}
}

func (s *wsSubscriber) ID() string {
	return s.id
}

// Send writes one text frame. The context deadline becomes the write deadline.
func (s *wsSubscriber) Send(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// zero deadline (no ctx deadline) clears any previous one
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return websocket.Message.Send(s.conn, string(payload))
}

func (s *wsSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// WSHandler registers each WebSocket connection with the hub. The client
// gets the current arrivals at once and every broadcast after that until
// it disconnects or a send fails.
type WSHandler struct {
	hub    SubscriberHub
	server websocket.Server
}

// NewWSHandler creates a new handler. Origin checks are left to the CORS
// configuration.
func NewWSHandler(hub SubscriberHub) *WSHandler {
	h := &WSHandler{hub: hub}
	h.server = websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serve,
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.server.ServeHTTP(w, r)
}

func (h *WSHandler) serve(conn *websocket.Conn) {
	sub := newWSSubscriber(conn)
	ctx := conn.Request().Context()

	if err := h.hub.Register(ctx, sub); err != nil {
		log.Warn().Err(err).Str("subscriber", sub.ID()).Msg("WebSocket registration failed")
		return
	}

	log.Info().Str("subscriber", sub.ID()).Int("clients", h.hub.Len()).Msg("WebSocket client connected")

	// Incoming messages are ignored; reading only detects the disconnect
	for {
		var msg string
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			break
		}
	}

	h.hub.Unregister(sub)
	log.Info().Str("subscriber", sub.ID()).Int("clients", h.hub.Len()).Msg("WebSocket client disconnected")
}
