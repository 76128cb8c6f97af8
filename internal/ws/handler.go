package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ratehub/internal/fanout"
)

// Handler upgrades HTTP requests to WebSocket connections and registers
// them with the fanout registry.
type Handler struct {
	registry *fanout.Registry
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(registry *fanout.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, h.registry, h.logger)
	h.logger.Info().Str("conn_id", client.ID()).Str("remote", r.RemoteAddr).Msg("websocket connection established")

	client.Start()
	h.registry.Register(client)
}
