package memory

import (
	"context"
	"sync"

	"github.com/roadcall/roadcall/internal/core/domain"
)

// PresenceRepository is an in-memory row store keyed by record ID. Rows are
// plain data; duplicate rows per plate are possible and resolved upstream.
type PresenceRepository struct {
	mu   sync.RWMutex
	rows map[domain.PresenceID]*domain.PresenceRecord
}

func NewPresenceRepository() *PresenceRepository {
	return &PresenceRepository{rows: make(map[domain.PresenceID]*domain.PresenceRecord)}
}

func (r *PresenceRepository) Put(ctx context.Context, rec *domain.PresenceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *rec
	r.mu.Lock()
	r.rows[rec.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *PresenceRepository) FindByPlate(ctx context.Context, plate domain.Plate) ([]*domain.PresenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.PresenceRecord
	for _, row := range r.rows {
		if row.Plate == plate {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *PresenceRepository) Delete(ctx context.Context, id domain.PresenceID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.rows, id)
	r.mu.Unlock()
	return nil
}

func (r *PresenceRepository) Near(ctx context.Context, origin domain.GeoPoint, radiusMeters float64) ([]*domain.PresenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.PresenceRecord
	for _, row := range r.rows {
		if row.Position == nil {
			continue
		}
		if domain.DistanceMeters(origin, *row.Position) <= radiusMeters {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}
