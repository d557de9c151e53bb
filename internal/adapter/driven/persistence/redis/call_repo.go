package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roadcall/roadcall/internal/core/domain"
)

// CallRepository stores call sessions in redis. Besides the session rows it
// maintains one guard key per participant while a call is open; the guard
// is claimed with SETNX so two nodes racing to create a call for the same
// plate cannot both win, independent of the in-process pair lock.
type CallRepository struct {
	client *redis.Client
	// retention keeps ended rows around briefly for idempotent re-ends.
	retention time.Duration
}

func NewCallRepository(client *redis.Client, retention time.Duration) *CallRepository {
	return &CallRepository{client: client, retention: retention}
}

func callKey(id domain.CallID) string    { return "call:" + id.String() }
func guardKey(plate domain.Plate) string { return "call:open:" + plate.String() }

type callRow struct {
	ID            string     `json:"id"`
	CallerPlate   string     `json:"caller_plate"`
	ReceiverPlate string     `json:"receiver_plate"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

func toCallRow(c *domain.CallSession) callRow {
	return callRow{
		ID:            c.ID.String(),
		CallerPlate:   c.CallerPlate.String(),
		ReceiverPlate: c.ReceiverPlate.String(),
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		ExpiresAt:     c.ExpiresAt,
		EndedAt:       c.EndedAt,
	}
}

func (row callRow) toSession() (*domain.CallSession, error) {
	id, err := domain.ParseCallID(row.ID)
	if err != nil {
		return nil, err
	}
	return &domain.CallSession{
		ID:            id,
		CallerPlate:   domain.Plate(row.CallerPlate),
		ReceiverPlate: domain.Plate(row.ReceiverPlate),
		Status:        domain.CallStatus(row.Status),
		CreatedAt:     row.CreatedAt,
		ExpiresAt:     row.ExpiresAt,
		EndedAt:       row.EndedAt,
	}, nil
}

func (r *CallRepository) Insert(ctx context.Context, call *domain.CallSession) error {
	guardTTL := time.Until(call.ExpiresAt)
	if guardTTL <= 0 {
		return fmt.Errorf("call %s already expired at insert", call.ID)
	}

	// Claim both guards; losing either one means a concurrent insert won.
	callerClaimed, err := r.client.SetNX(ctx, guardKey(call.CallerPlate), call.ID.String(), guardTTL).Result()
	if err != nil {
		return err
	}
	if !callerClaimed {
		return fmt.Errorf("%w: %s already holds an open call", domain.ErrConflict, call.CallerPlate)
	}
	receiverClaimed, err := r.client.SetNX(ctx, guardKey(call.ReceiverPlate), call.ID.String(), guardTTL).Result()
	if err != nil {
		r.client.Del(ctx, guardKey(call.CallerPlate))
		return err
	}
	if !receiverClaimed {
		r.client.Del(ctx, guardKey(call.CallerPlate))
		return fmt.Errorf("%w: %s already holds an open call", domain.ErrConflict, call.ReceiverPlate)
	}

	if err := r.put(ctx, call); err != nil {
		r.client.Del(ctx, guardKey(call.CallerPlate), guardKey(call.ReceiverPlate))
		return err
	}
	return nil
}

func (r *CallRepository) Get(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	b, err := r.client.Get(ctx, callKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var row callRow
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}
	return row.toSession()
}

func (r *CallRepository) Update(ctx context.Context, call *domain.CallSession) error {
	if err := r.put(ctx, call); err != nil {
		return err
	}
	switch call.Status {
	case domain.CallActive:
		// An active call outlives the pending TTL; pin the guards until end.
		r.client.Set(ctx, guardKey(call.CallerPlate), call.ID.String(), 0)
		r.client.Set(ctx, guardKey(call.ReceiverPlate), call.ID.String(), 0)
	case domain.CallEnded:
		r.releaseGuards(ctx, call)
	}
	return nil
}

func (r *CallRepository) FindOpen(ctx context.Context, plate domain.Plate, now time.Time) (*domain.CallSession, error) {
	idStr, err := r.client.Get(ctx, guardKey(plate)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseCallID(idStr)
	if err != nil {
		r.client.Del(ctx, guardKey(plate))
		return nil, nil
	}
	call, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if call == nil || !call.Open(now) {
		r.client.Del(ctx, guardKey(plate))
		return nil, nil
	}
	return call, nil
}

func (r *CallRepository) put(ctx context.Context, call *domain.CallSession) error {
	b, err := json.Marshal(toCallRow(call))
	if err != nil {
		return err
	}
	return r.client.Set(ctx, callKey(call.ID), b, r.retention).Err()
}

func (r *CallRepository) releaseGuards(ctx context.Context, call *domain.CallSession) {
	// Release only guards this call still owns; a newer call may have
	// claimed the plate already.
	for _, plate := range []domain.Plate{call.CallerPlate, call.ReceiverPlate} {
		held, err := r.client.Get(ctx, guardKey(plate)).Result()
		if err == nil && held == call.ID.String() {
			r.client.Del(ctx, guardKey(plate))
		}
	}
}
