package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 16

// Relay carries signaling frames over redis pub/sub so the two participants
// of a call may be connected to different nodes. Echo suppression and the
// offer-before-answer guard run on the subscribing node.
type Relay struct {
	client *redis.Client

	mu        sync.Mutex
	offerSeen map[domain.CallID]bool
	subs      map[domain.CallID][]*redis.PubSub
}

func NewRelay(client *redis.Client) *Relay {
	return &Relay{
		client:    client,
		offerSeen: make(map[domain.CallID]bool),
		subs:      make(map[domain.CallID][]*redis.PubSub),
	}
}

func signalTopic(id domain.CallID) string { return "signaling:" + id.String() }

type wireSignal struct {
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	Payload string `json:"payload"`
}

func (r *Relay) Publish(ctx context.Context, msg domain.SignalingMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.Kind == domain.SignalOffer {
		r.markOffer(msg.CallID)
	}
	b, err := json.Marshal(wireSignal{
		Type:    string(msg.Kind),
		Sender:  string(msg.Sender),
		Payload: msg.Payload,
	})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, signalTopic(msg.CallID), b).Err()
}

func (r *Relay) Subscribe(ctx context.Context, callID domain.CallID, self domain.CallRole) (<-chan domain.SignalingMessage, func(), error) {
	ps := r.client.Subscribe(ctx, signalTopic(callID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("%w: relay subscribe: %v", domain.ErrUnavailable, err)
	}

	r.mu.Lock()
	r.subs[callID] = append(r.subs[callID], ps)
	r.mu.Unlock()

	out := make(chan domain.SignalingMessage, subscriberBuffer)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			var w wireSignal
			if err := json.Unmarshal([]byte(m.Payload), &w); err != nil {
				log.Warn().Err(err).Str("call_id", callID.String()).Msg("Corrupt signal frame, skipping")
				continue
			}
			msg := domain.SignalingMessage{
				CallID:  callID,
				Kind:    domain.SignalKind(w.Type),
				Sender:  domain.CallRole(w.Sender),
				Payload: w.Payload,
			}
			if msg.Validate() != nil || msg.Sender == self {
				continue
			}
			if msg.Kind == domain.SignalOffer {
				r.markOffer(callID)
			}
			if msg.Kind == domain.SignalAnswer && !r.sawOffer(callID) {
				log.Warn().Str("call_id", callID.String()).Msg("Answer before offer, ignoring")
				continue
			}
			select {
			case out <- msg:
			default:
				log.Warn().Str("call_id", callID.String()).Msg("Subscriber buffer full, dropping signal")
			}
		}
	}()

	cancel := func() { r.detach(callID, ps) }
	return out, cancel, nil
}

func (r *Relay) Close(callID domain.CallID) {
	r.mu.Lock()
	pss := r.subs[callID]
	delete(r.subs, callID)
	delete(r.offerSeen, callID)
	r.mu.Unlock()

	for _, ps := range pss {
		_ = ps.Close()
	}
}

func (r *Relay) markOffer(callID domain.CallID) {
	r.mu.Lock()
	r.offerSeen[callID] = true
	r.mu.Unlock()
}

func (r *Relay) sawOffer(callID domain.CallID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offerSeen[callID]
}

func (r *Relay) detach(callID domain.CallID, ps *redis.PubSub) {
	r.mu.Lock()
	pss := r.subs[callID]
	for i, cur := range pss {
		if cur == ps {
			pss = append(pss[:i], pss[i+1:]...)
			break
		}
	}
	// Reap call state when the last subscriber leaves; expired pending
	// calls never see an explicit Close.
	if len(pss) == 0 {
		delete(r.subs, callID)
		delete(r.offerSeen, callID)
	} else {
		r.subs[callID] = pss
	}
	r.mu.Unlock()
	_ = ps.Close()
}
