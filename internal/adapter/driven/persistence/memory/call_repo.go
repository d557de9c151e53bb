package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roadcall/roadcall/internal/core/domain"
)

// CallRepository is an in-memory call-session store. The one-open-call
// invariant is enforced by the CallManager's pair lock; this store just
// holds sessions.
type CallRepository struct {
	mu    sync.RWMutex
	calls map[domain.CallID]*domain.CallSession
}

func NewCallRepository() *CallRepository {
	return &CallRepository{calls: make(map[domain.CallID]*domain.CallSession)}
}

func (r *CallRepository) Insert(ctx context.Context, call *domain.CallSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[call.ID]; ok {
		return fmt.Errorf("%w: call %s already exists", domain.ErrConflict, call.ID)
	}
	cp := *call
	r.calls[call.ID] = &cp
	return nil
}

func (r *CallRepository) Get(ctx context.Context, id domain.CallID) (*domain.CallSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	call, ok := r.calls[id]
	if !ok {
		return nil, nil
	}
	cp := *call
	return &cp, nil
}

func (r *CallRepository) Update(ctx context.Context, call *domain.CallSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[call.ID]; !ok {
		return fmt.Errorf("%w: call %s", domain.ErrNotFound, call.ID)
	}
	cp := *call
	r.calls[call.ID] = &cp
	return nil
}

func (r *CallRepository) FindOpen(ctx context.Context, plate domain.Plate, now time.Time) (*domain.CallSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, call := range r.calls {
		if !call.Open(now) {
			continue
		}
		if call.CallerPlate == plate || call.ReceiverPlate == plate {
			cp := *call
			return &cp, nil
		}
	}
	return nil, nil
}
