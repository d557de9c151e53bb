package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// Inbox delivers newly created call sessions over per-plate redis topics.
type Inbox struct {
	client *redis.Client
}

func NewInbox(client *redis.Client) *Inbox {
	return &Inbox{client: client}
}

func inboxTopic(plate domain.Plate) string { return "incoming:" + plate.String() }

type wireCall struct {
	ID            string     `json:"id"`
	CallerPlate   string     `json:"caller_plate"`
	ReceiverPlate string     `json:"receiver_plate"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

func (i *Inbox) NotifyIncoming(ctx context.Context, call domain.CallSession) error {
	b, err := json.Marshal(wireCall{
		ID:            call.ID.String(),
		CallerPlate:   call.CallerPlate.String(),
		ReceiverPlate: call.ReceiverPlate.String(),
		Status:        string(call.Status),
		CreatedAt:     call.CreatedAt,
		ExpiresAt:     call.ExpiresAt,
		EndedAt:       call.EndedAt,
	})
	if err != nil {
		return err
	}
	return i.client.Publish(ctx, inboxTopic(call.ReceiverPlate), b).Err()
}

func (i *Inbox) Subscribe(ctx context.Context, plate domain.Plate) (<-chan domain.CallSession, func(), error) {
	ps := i.client.Subscribe(ctx, inboxTopic(plate))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan domain.CallSession, subscriberBuffer)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			var w wireCall
			if err := json.Unmarshal([]byte(m.Payload), &w); err != nil {
				log.Warn().Err(err).Str("plate", plate.String()).Msg("Corrupt inbox frame, skipping")
				continue
			}
			id, err := domain.ParseCallID(w.ID)
			if err != nil {
				continue
			}
			call := domain.CallSession{
				ID:            id,
				CallerPlate:   domain.Plate(w.CallerPlate),
				ReceiverPlate: domain.Plate(w.ReceiverPlate),
				Status:        domain.CallStatus(w.Status),
				CreatedAt:     w.CreatedAt,
				ExpiresAt:     w.ExpiresAt,
				EndedAt:       w.EndedAt,
			}
			select {
			case out <- call:
			default:
				log.Warn().Str("plate", plate.String()).Msg("Inbox buffer full, dropping notification")
			}
		}
	}()

	cancel := func() { _ = ps.Close() }
	return out, cancel, nil
}
