package memory

import (
	"context"
	"sync"

	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

type inboxSubscriber struct {
	ch chan domain.CallSession
}

// Inbox delivers newly created call sessions to subscribers listening on
// the callee's plate. Delivery is best-effort and non-blocking.
type Inbox struct {
	mu   sync.Mutex
	subs map[domain.Plate]map[*inboxSubscriber]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{subs: make(map[domain.Plate]map[*inboxSubscriber]struct{})}
}

func (i *Inbox) Subscribe(ctx context.Context, plate domain.Plate) (<-chan domain.CallSession, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	set := i.subs[plate]
	if set == nil {
		set = make(map[*inboxSubscriber]struct{})
		i.subs[plate] = set
	}
	sub := &inboxSubscriber{ch: make(chan domain.CallSession, subscriberBuffer)}
	set[sub] = struct{}{}

	cancel := func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(i.subs, plate)
		}
	}
	return sub.ch, cancel, nil
}

func (i *Inbox) NotifyIncoming(ctx context.Context, call domain.CallSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	for sub := range i.subs[call.ReceiverPlate] {
		select {
		case sub.ch <- call:
		default:
			log.Warn().Str("plate", call.ReceiverPlate.String()).Msg("Inbox buffer full, dropping notification")
		}
	}
	return nil
}
