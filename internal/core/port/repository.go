package port

import (
	"context"
	"time"

	"github.com/roadcall/roadcall/internal/core/domain"
)

// PresenceRepository stores presence rows keyed by record ID. Concurrent
// writers may leave multiple rows for one plate; the registry resolves
// duplicates, the store just holds rows.
type PresenceRepository interface {
	Put(ctx context.Context, rec *domain.PresenceRecord) error
	FindByPlate(ctx context.Context, plate domain.Plate) ([]*domain.PresenceRecord, error)
	Delete(ctx context.Context, id domain.PresenceID) error
	// Near returns positioned rows within radiusMeters of origin, staleness
	// and self-exclusion are the caller's concern.
	Near(ctx context.Context, origin domain.GeoPoint, radiusMeters float64) ([]*domain.PresenceRecord, error)
}

// CallRepository stores call sessions. Insert may fail with
// domain.ErrConflict when the backend enforces the one-open-call-per-plate
// guard itself (the redis adapter does).
type CallRepository interface {
	Insert(ctx context.Context, call *domain.CallSession) error
	Get(ctx context.Context, id domain.CallID) (*domain.CallSession, error)
	Update(ctx context.Context, call *domain.CallSession) error
	// FindOpen returns the pending-or-active, non-expired session owning the
	// plate, or nil when the plate is free.
	FindOpen(ctx context.Context, plate domain.Plate, now time.Time) (*domain.CallSession, error)
}
