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

// Registry enforces at most one live presence record per plate. Writers
// using the same plate from concurrent app restarts may leave duplicate
// rows in the store; every registry operation resolves them by keeping the
// row with the greatest lastSeen.
type Registry struct {
	repo         port.PresenceRepository
	window       time.Duration
	storeTimeout time.Duration
	locks        plateLocks
	now          func() time.Time
}

func NewRegistry(repo port.PresenceRepository, stalenessWindow, storeTimeout time.Duration) *Registry {
	return &Registry{
		repo:         repo,
		window:       stalenessWindow,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// Upsert creates or refreshes the plate's record and deletes any duplicate
// or stale rows it finds along the way.
func (r *Registry) Upsert(ctx context.Context, plate domain.Plate, kind domain.VehicleKind, pos *domain.GeoPoint, heading, speed *float64) (*domain.PresenceRecord, error) {
	if err := domain.ValidatePresenceFields(plate, pos, heading, speed); err != nil {
		return nil, err
	}

	mu := r.locks.forPlate(plate)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	now := r.now()
	rows, err := r.repo.FindByPlate(ctx, plate)
	if err != nil {
		return nil, storeErr("presence lookup", err)
	}

	keeper := newestRecord(rows)
	r.dropAllBut(ctx, rows, keeper)

	if keeper != nil && !keeper.Stale(now, r.window) {
		keeper.VehicleKind = kind
		keeper.Position = pos
		keeper.Heading = heading
		keeper.Speed = speed
		keeper.LastSeen = now
		if err := r.repo.Put(ctx, keeper); err != nil {
			return nil, storeErr("presence write", err)
		}
		return keeper, nil
	}

	if keeper != nil {
		// Stale survivor, replace rather than refresh so createdAt resets.
		r.drop(ctx, keeper)
	}

	rec, err := domain.NewPresenceRecord(plate, kind, pos, heading, speed, now)
	if err != nil {
		return nil, err
	}
	if err := r.repo.Put(ctx, rec); err != nil {
		return nil, storeErr("presence write", err)
	}
	return rec, nil
}

// FindLive returns the plate's record unless it is stale; stale records are
// treated as absent and opportunistically deleted.
func (r *Registry) FindLive(ctx context.Context, plate domain.Plate) (*domain.PresenceRecord, error) {
	mu := r.locks.forPlate(plate)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	rows, err := r.repo.FindByPlate(ctx, plate)
	if err != nil {
		return nil, storeErr("presence lookup", err)
	}

	keeper := newestRecord(rows)
	r.dropAllBut(ctx, rows, keeper)

	if keeper == nil {
		return nil, fmt.Errorf("%w: no presence for plate %s", domain.ErrNotFound, plate)
	}
	if keeper.Stale(r.now(), r.window) {
		r.drop(ctx, keeper)
		return nil, fmt.Errorf("%w: presence for plate %s is stale", domain.ErrNotFound, plate)
	}
	return keeper, nil
}

// Remove deletes every row for the plate. Ownership of the plate is the
// gateway's concern; the registry trusts its caller.
func (r *Registry) Remove(ctx context.Context, plate domain.Plate) error {
	mu := r.locks.forPlate(plate)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	rows, err := r.repo.FindByPlate(ctx, plate)
	if err != nil {
		return storeErr("presence lookup", err)
	}
	for _, row := range rows {
		if err := r.repo.Delete(ctx, row.ID); err != nil {
			return storeErr("presence delete", err)
		}
	}
	return nil
}

// StalenessWindow exposes the configured window to collaborating services.
func (r *Registry) StalenessWindow() time.Duration {
	return r.window
}

func (r *Registry) dropAllBut(ctx context.Context, rows []*domain.PresenceRecord, keeper *domain.PresenceRecord) {
	for _, row := range rows {
		if keeper != nil && row.ID == keeper.ID {
			continue
		}
		r.drop(ctx, row)
	}
}

func (r *Registry) drop(ctx context.Context, row *domain.PresenceRecord) {
	if err := r.repo.Delete(ctx, row.ID); err != nil {
		log.Warn().Err(err).Str("plate", row.Plate.String()).Msg("Failed to drop presence row")
	}
}

// newestRecord picks the row with the greatest lastSeen.
func newestRecord(rows []*domain.PresenceRecord) *domain.PresenceRecord {
	var newest *domain.PresenceRecord
	for _, row := range rows {
		if newest == nil || row.LastSeen.After(newest.LastSeen) {
			newest = row
		}
	}
	return newest
}

// storeErr maps backing-store failures to the transient taxonomy so callers
// never see a silent hang or a raw driver error. Conflicts pass through.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUnavailable, op, err)
}
