package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients connect from app schemes; origin checks stay open.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeSignaling bridges one participant's websocket onto the call's relay
// channel. Inbound frames are published with the authenticated role as
// sender; outbound frames are the echo-suppressed subscription. When the
// socket dies or goes silent past the signal-loss timeout, the call ends.
func (h *Handler) ServeSignaling(w http.ResponseWriter, r *http.Request) {
	plate, _ := PlateFromContext(r.Context())

	callID, err := domain.ParseCallID(chi.URLParam(r, "callID"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid call id")
		return
	}
	call, err := h.Calls.Get(r.Context(), callID)
	if err != nil {
		writeError(w, err)
		return
	}
	role, ok := call.RoleOf(plate)
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "not a participant of this call")
		return
	}

	sub, cancelSub, err := h.Relay.Subscribe(r.Context(), callID, role)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancelSub()
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	l := log.With().Str("call_id", callID.String()).Str("role", string(role)).Logger()
	l.Info().Msg("Signaling peer connected")

	done := make(chan struct{})
	go h.pumpSignals(conn, sub, done)

	defer func() {
		cancelSub()
		conn.Close()
		<-done
		// Peer gone: the other side should not wait out the TTL.
		if err := h.Calls.End(context.Background(), callID, plate); err != nil {
			l.Debug().Err(err).Msg("Call already gone on disconnect")
		}
		l.Info().Msg("Signaling peer disconnected")
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.SignalLossTimeout))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.SignalLossTimeout)); err != nil {
			return
		}
		var env signalEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			return
		}
		msg, err := domain.NewSignalingMessage(callID, domain.SignalKind(env.Type), role, env.Payload)
		if err != nil {
			l.Warn().Err(err).Msg("Dropping malformed signal frame")
			continue
		}
		if err := h.Relay.Publish(r.Context(), msg); err != nil {
			l.Error().Err(err).Msg("Failed to publish signal")
		}
	}
}

// pumpSignals owns all writes on the connection: relayed frames plus
// keepalive pings. It exits when the subscription channel closes (call
// torn down) or a write fails.
func (h *Handler) pumpSignals(conn *websocket.Conn, sub <-chan domain.SignalingMessage, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.SignalLossTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"),
					time.Now().Add(time.Second))
				conn.Close()
				return
			}
			env := signalEnvelope{Type: string(msg.Kind), Sender: string(msg.Sender), Payload: msg.Payload}
			if err := conn.WriteJSON(env); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// ServeInbox streams newly created calls where the authenticated plate is
// the callee.
func (h *Handler) ServeInbox(w http.ResponseWriter, r *http.Request) {
	plate, _ := PlateFromContext(r.Context())

	sub, cancelSub, err := h.Notifier.Subscribe(r.Context(), plate)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancelSub()
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	l := log.With().Str("plate", plate.String()).Logger()
	l.Info().Msg("Inbox subscriber connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(h.SignalLossTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case call, ok := <-sub:
				if !ok {
					conn.Close()
					return
				}
				if err := conn.WriteJSON(toCallDTO(call)); err != nil {
					conn.Close()
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	defer func() {
		cancelSub()
		conn.Close()
		<-done
		l.Info().Msg("Inbox subscriber disconnected")
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.SignalLossTimeout))
	})

	// Inbox sockets are listen-only; the read loop just detects closure.
	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.SignalLossTimeout)); err != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
