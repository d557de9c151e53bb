package memory

import (
	"context"
	"sync"

	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 16

type subscriber struct {
	role domain.CallRole
	ch   chan domain.SignalingMessage
}

type callChannel struct {
	subs      map[*subscriber]struct{}
	offerSeen bool
}

// Hub is the in-process signaling relay: one broadcast channel per call,
// fan-out under a single mutex so no delivery can happen after Close
// returns. A participant never receives its own frames.
type Hub struct {
	mu    sync.Mutex
	calls map[domain.CallID]*callChannel
}

func NewHub() *Hub {
	return &Hub{calls: make(map[domain.CallID]*callChannel)}
}

func (h *Hub) Subscribe(ctx context.Context, callID domain.CallID, self domain.CallRole) (<-chan domain.SignalingMessage, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.calls[callID]
	if st == nil {
		st = &callChannel{subs: make(map[*subscriber]struct{})}
		h.calls[callID] = st
	}

	sub := &subscriber{role: self, ch: make(chan domain.SignalingMessage, subscriberBuffer)}
	st.subs[sub] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := st.subs[sub]; ok {
			delete(st.subs, sub)
			close(sub.ch)
		}
		// Reap the channel when the last subscriber leaves; expired pending
		// calls never see an explicit Close.
		if len(st.subs) == 0 && h.calls[callID] == st {
			delete(h.calls, callID)
		}
	}
	return sub.ch, cancel, nil
}

func (h *Hub) Publish(ctx context.Context, msg domain.SignalingMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.calls[msg.CallID]
	if st == nil {
		// Fire-and-forget: publishing into a torn-down call is a no-op.
		return nil
	}

	switch msg.Kind {
	case domain.SignalOffer:
		st.offerSeen = true
	case domain.SignalAnswer:
		if !st.offerSeen {
			log.Warn().Str("call_id", msg.CallID.String()).Msg("Answer before offer, ignoring")
			return nil
		}
	}

	for sub := range st.subs {
		if sub.role == msg.Sender {
			continue // echo suppression
		}
		select {
		case sub.ch <- msg:
		default:
			log.Warn().Str("call_id", msg.CallID.String()).Msg("Subscriber buffer full, dropping signal")
		}
	}
	return nil
}

func (h *Hub) Close(callID domain.CallID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.calls[callID]
	if st == nil {
		return
	}
	for sub := range st.subs {
		delete(st.subs, sub)
		close(sub.ch)
	}
	delete(h.calls, callID)
}
