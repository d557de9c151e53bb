package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// PresenceRepository keeps presence rows in redis: one JSON row per record,
// a per-plate set of record IDs, and a geo index so the nearby query runs
// server-side via GEOSEARCH.
type PresenceRepository struct {
	client *redis.Client
	// rowTTL bounds how long an abandoned row lingers; staleness itself is
	// decided by the registry, this is store hygiene only.
	rowTTL time.Duration
}

func NewPresenceRepository(client *redis.Client, rowTTL time.Duration) *PresenceRepository {
	return &PresenceRepository{client: client, rowTTL: rowTTL}
}

const geoIndexKey = "presence:geo"

func rowKey(id domain.PresenceID) string { return "presence:rec:" + id.String() }
func plateKey(plate domain.Plate) string { return "presence:plate:" + plate.String() }

type presenceRow struct {
	ID          string           `json:"id"`
	Plate       string           `json:"plate"`
	VehicleKind string           `json:"vehicle_kind,omitempty"`
	Position    *domain.GeoPoint `json:"position,omitempty"`
	Heading     *float64         `json:"heading,omitempty"`
	Speed       *float64         `json:"speed,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	LastSeen    time.Time        `json:"last_seen"`
}

func toRow(rec *domain.PresenceRecord) presenceRow {
	return presenceRow{
		ID:          rec.ID.String(),
		Plate:       rec.Plate.String(),
		VehicleKind: string(rec.VehicleKind),
		Position:    rec.Position,
		Heading:     rec.Heading,
		Speed:       rec.Speed,
		CreatedAt:   rec.CreatedAt,
		LastSeen:    rec.LastSeen,
	}
}

func (row presenceRow) toRecord() (*domain.PresenceRecord, error) {
	id, err := domain.ParsePresenceID(row.ID)
	if err != nil {
		return nil, err
	}
	return &domain.PresenceRecord{
		ID:          id,
		Plate:       domain.Plate(row.Plate),
		VehicleKind: domain.VehicleKind(row.VehicleKind),
		Position:    row.Position,
		Heading:     row.Heading,
		Speed:       row.Speed,
		CreatedAt:   row.CreatedAt,
		LastSeen:    row.LastSeen,
	}, nil
}

func (r *PresenceRepository) Put(ctx context.Context, rec *domain.PresenceRecord) error {
	b, err := json.Marshal(toRow(rec))
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rowKey(rec.ID), b, r.rowTTL)
		pipe.SAdd(ctx, plateKey(rec.Plate), rec.ID.String())
		pipe.Expire(ctx, plateKey(rec.Plate), r.rowTTL)
		if rec.Position != nil {
			pipe.GeoAdd(ctx, geoIndexKey, &redis.GeoLocation{
				Name:      rec.ID.String(),
				Longitude: rec.Position.Longitude,
				Latitude:  rec.Position.Latitude,
			})
		}
		return nil
	})
	return err
}

func (r *PresenceRepository) FindByPlate(ctx context.Context, plate domain.Plate) ([]*domain.PresenceRecord, error) {
	ids, err := r.client.SMembers(ctx, plateKey(plate)).Result()
	if err != nil {
		return nil, err
	}
	var out []*domain.PresenceRecord
	for _, id := range ids {
		rec, ok, err := r.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Row expired out from under its index entry.
			r.client.SRem(ctx, plateKey(plate), id)
			r.client.ZRem(ctx, geoIndexKey, id)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *PresenceRepository) Delete(ctx context.Context, id domain.PresenceID) error {
	rec, ok, err := r.fetch(ctx, id.String())
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rowKey(id))
		pipe.ZRem(ctx, geoIndexKey, id.String())
		if ok {
			pipe.SRem(ctx, plateKey(rec.Plate), id.String())
		}
		return nil
	})
	return err
}

func (r *PresenceRepository) Near(ctx context.Context, origin domain.GeoPoint, radiusMeters float64) ([]*domain.PresenceRecord, error) {
	locs, err := r.client.GeoSearch(ctx, geoIndexKey, &redis.GeoSearchQuery{
		Longitude:  origin.Longitude,
		Latitude:   origin.Latitude,
		Radius:     radiusMeters,
		RadiusUnit: "m",
	}).Result()
	if err != nil {
		return nil, err
	}
	var out []*domain.PresenceRecord
	for _, id := range locs {
		rec, ok, err := r.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.client.ZRem(ctx, geoIndexKey, id)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *PresenceRepository) fetch(ctx context.Context, id string) (*domain.PresenceRecord, bool, error) {
	b, err := r.client.Get(ctx, "presence:rec:"+id).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var row presenceRow
	if err := json.Unmarshal(b, &row); err != nil {
		log.Warn().Err(err).Str("record_id", id).Msg("Corrupt presence row, skipping")
		return nil, false, nil
	}
	rec, err := row.toRecord()
	if err != nil {
		return nil, false, nil
	}
	return rec, true, nil
}
