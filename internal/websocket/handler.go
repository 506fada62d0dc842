package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"uplink/internal/broker"
	"uplink/pkg/types"
)

// Handler upgrades HTTP requests to websocket connections and pumps decoded
// client events into the broker. All business decisions live in the broker;
// the handler only translates between the wire and the event API.
type Handler struct {
	broker   *broker.Broker
	settings Settings
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler builds a handler for the given broker. allowedOrigins controls
// the upgrade origin check; a single "*" entry admits every origin.
func NewHandler(b *broker.Broker, settings Settings, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		broker:   b,
		settings: settings,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP upgrades the request and runs the connection's read loop until
// the peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := NewConnection(sock, h.settings)
	h.logger.Info("connection established", "conn_id", conn.ID(), "remote", r.RemoteAddr)

	h.readLoop(conn, sock)
}

// readLoop decodes inbound frames and forwards them to the broker. It is the
// sole reader of the socket. Any read error, including the peer closing,
// resolves to a single disconnect event.
func (h *Handler) readLoop(conn *Connection, sock *websocket.Conn) {
	defer func() {
		_ = h.broker.Disconnect(conn.ID())
		_ = conn.Close()
		h.logger.Info("connection closed", "conn_id", conn.ID())
	}()

	sock.SetReadLimit(h.settings.MaxFrameSize)
	_ = sock.SetReadDeadline(time.Now().Add(h.settings.PongWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(h.settings.PongWait))
	})

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("abnormal close", "conn_id", conn.ID(), "error", err)
			}
			return
		}

		name, payload, err := types.DecodeClientEvent(raw)
		if err != nil {
			// Malformed frames are dropped; the protocol has no nack.
			h.logger.Debug("dropping malformed frame", "conn_id", conn.ID(), "error", err)
			continue
		}

		if err := h.dispatch(conn, name, payload); err != nil {
			h.logger.Warn("event not accepted", "conn_id", conn.ID(), "event", name, "error", err)
		}
	}
}

func (h *Handler) dispatch(conn *Connection, name string, payload any) error {
	switch name {
	case types.EventJoin:
		return h.broker.Join(conn, payload.(types.JoinPayload))
	case types.EventMessage:
		return h.broker.Message(conn.ID(), payload.(types.MessagePayload))
	case types.EventScan:
		return h.broker.Scan(conn.ID())
	case types.EventDirectMessage:
		return h.broker.DirectMessage(conn.ID(), payload.(types.DirectMessagePayload))
	case types.EventPurge:
		return h.broker.Purge(conn.ID(), payload.(types.PurgePayload))
	default:
		return types.ErrUnknownEvent
	}
}
