package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/roadcall/roadcall/internal/core/port"
	"github.com/rs/zerolog/log"
)

// CallManager owns the call-session state machine. Creation races between
// independent clients are resolved by locking both participants' plates for
// the conflict-check-plus-insert, so at most one open call per plate exists
// at any instant.
type CallManager struct {
	calls        port.CallRepository
	registry     *Registry
	notifier     port.CallNotifier
	relay        port.SignalingRelay
	maxDistance  float64
	ttl          time.Duration
	storeTimeout time.Duration
	locks        plateLocks
	now          func() time.Time
}

func NewCallManager(calls port.CallRepository, registry *Registry, notifier port.CallNotifier, relay port.SignalingRelay, maxDistanceMeters float64, ttl, storeTimeout time.Duration) *CallManager {
	return &CallManager{
		calls:        calls,
		registry:     registry,
		notifier:     notifier,
		relay:        relay,
		maxDistance:  maxDistanceMeters,
		ttl:          ttl,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// Create starts a pending call from caller to target. Both plates must be
// broadcasting live presence. The distance check is advisory: when either
// position is missing the call proceeds rather than being blocked.
func (m *CallManager) Create(ctx context.Context, caller, target domain.Plate) (*domain.CallSession, error) {
	if caller == target {
		return nil, fmt.Errorf("%w: cannot call your own plate", domain.ErrInvalidInput)
	}

	callerRec, err := m.registry.FindLive(ctx, caller)
	if err != nil {
		return nil, err
	}
	targetRec, err := m.registry.FindLive(ctx, target)
	if err != nil {
		return nil, err
	}

	if d := domain.DistanceBetween(callerRec.Position, targetRec.Position); d.Known && d.Meters > m.maxDistance {
		return nil, &domain.TooFarError{DistanceMeters: d.Meters, MaxMeters: m.maxDistance}
	}

	unlock := m.locks.lockPair(caller, target)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	now := m.now()
	for _, p := range []domain.Plate{caller, target} {
		open, err := m.calls.FindOpen(ctx, p, now)
		if err != nil {
			return nil, storeErr("open-call lookup", err)
		}
		if open != nil {
			return nil, fmt.Errorf("%w: %s is already in a call", domain.ErrConflict, p)
		}
	}

	call := domain.NewCallSession(caller, target, now, m.ttl)
	if err := m.calls.Insert(ctx, call); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: a concurrent call won the race", domain.ErrConflict)
		}
		return nil, storeErr("call insert", err)
	}

	// Best effort: an unreachable callee just never answers and the pending
	// session expires on its own.
	if err := m.notifier.NotifyIncoming(ctx, *call); err != nil {
		log.Warn().Err(err).Str("call_id", call.ID.String()).Msg("Failed to notify callee")
	}

	log.Info().
		Str("call_id", call.ID.String()).
		Str("caller", caller.String()).
		Str("receiver", target.String()).
		Msg("Call created")
	return call, nil
}

// Get returns the session, treating an expired pending session as absent.
func (m *CallManager) Get(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	call, err := m.calls.Get(ctx, id)
	if err != nil {
		return nil, storeErr("call lookup", err)
	}
	if call == nil || call.Expired(m.now()) {
		return nil, fmt.Errorf("%w: no such call", domain.ErrNotFound)
	}
	return call, nil
}

// Activate moves a pending session to active. Idempotent when already
// active; an ended session cannot come back.
func (m *CallManager) Activate(ctx context.Context, id domain.CallID, by domain.Plate) error {
	call, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, ok := call.RoleOf(by); !ok {
		return fmt.Errorf("%w: %s is not a participant", domain.ErrUnauthorized, by)
	}

	switch call.Status {
	case domain.CallActive:
		return nil
	case domain.CallEnded:
		return fmt.Errorf("%w: call already ended", domain.ErrInvalidState)
	}

	call.Status = domain.CallActive
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	if err := m.calls.Update(ctx, call); err != nil {
		return storeErr("call update", err)
	}
	return nil
}

// End terminates the session and tears down its relay channel. Both peers
// may race to end; ending an already-ended or expired session is a no-op
// success, so End reads the raw row instead of going through Get.
func (m *CallManager) End(ctx context.Context, id domain.CallID, by domain.Plate) error {
	getCtx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	call, err := m.calls.Get(getCtx, id)
	cancel()
	if err != nil {
		return storeErr("call lookup", err)
	}
	if call == nil {
		return fmt.Errorf("%w: no such call", domain.ErrNotFound)
	}
	if _, ok := call.RoleOf(by); !ok {
		return fmt.Errorf("%w: %s is not a participant", domain.ErrUnauthorized, by)
	}
	if call.Status == domain.CallEnded {
		return nil
	}

	now := m.now()
	if call.Expired(now) {
		// An expired pending session reads as ended already; just make sure
		// any lingering relay state goes with it.
		m.relay.Close(call.ID)
		return nil
	}

	call.Status = domain.CallEnded
	call.EndedAt = &now

	ctx, cancel = context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	if err := m.calls.Update(ctx, call); err != nil {
		return storeErr("call update", err)
	}

	m.relay.Close(call.ID)
	log.Info().Str("call_id", call.ID.String()).Str("by", by.String()).Msg("Call ended")
	return nil
}

// UpdateStatus maps an externally requested status onto a transition.
func (m *CallManager) UpdateStatus(ctx context.Context, id domain.CallID, by domain.Plate, status domain.CallStatus) error {
	switch status {
	case domain.CallActive:
		return m.Activate(ctx, id, by)
	case domain.CallEnded:
		return m.End(ctx, id, by)
	default:
		return fmt.Errorf("%w: cannot transition to %q", domain.ErrInvalidInput, status)
	}
}
