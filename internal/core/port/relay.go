package port

import (
	"context"

	"github.com/roadcall/roadcall/internal/core/domain"
)

// SignalingRelay is the per-call broadcast channel carrying offer/answer/ice
// frames between exactly two participants.
//
// Subscribe never delivers a message whose sender equals self (echo
// suppression). The returned cancel func detaches the subscriber and closes
// the channel; after Close no further messages are delivered for the call.
// Publish is fire-and-forget: no acknowledgement, FIFO per publisher only.
type SignalingRelay interface {
	Subscribe(ctx context.Context, callID domain.CallID, self domain.CallRole) (<-chan domain.SignalingMessage, func(), error)
	Publish(ctx context.Context, msg domain.SignalingMessage) error
	Close(callID domain.CallID)
}

// CallNotifier delivers newly created call sessions to the callee's
// personal inbox. Delivery is best-effort; an offline callee simply never
// answers and the session expires.
type CallNotifier interface {
	Subscribe(ctx context.Context, plate domain.Plate) (<-chan domain.CallSession, func(), error)
	NotifyIncoming(ctx context.Context, call domain.CallSession) error
}
