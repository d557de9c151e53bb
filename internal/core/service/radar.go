package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/roadcall/roadcall/internal/core/port"
)

// Radar answers proximity queries: live, non-stale records within range,
// annotated with distance and ahead/behind direction relative to the
// querying driver's own heading.
type Radar struct {
	repo         port.PresenceRepository
	window       time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

func NewRadar(repo port.PresenceRepository, stalenessWindow, storeTimeout time.Duration) *Radar {
	return &Radar{
		repo:         repo,
		window:       stalenessWindow,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// Nearby returns drivers within radiusMeters of origin, closest first. The
// querying plate itself and stale records never appear.
func (r *Radar) Nearby(ctx context.Context, self domain.Plate, origin domain.GeoPoint, radiusMeters float64) ([]domain.NearbyDriver, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: query point out of bounds", domain.ErrInvalidInput)
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	now := r.now()

	// The observer's stored heading drives the ahead/behind annotation; a
	// driver who never reported a heading sees everyone as ahead.
	var observerHeading *float64
	if own, err := r.repo.FindByPlate(ctx, self); err != nil {
		return nil, storeErr("presence lookup", err)
	} else if rec := newestRecord(own); rec != nil && !rec.Stale(now, r.window) {
		observerHeading = rec.Heading
	}

	rows, err := r.repo.Near(ctx, origin, radiusMeters)
	if err != nil {
		return nil, storeErr("proximity query", err)
	}

	// Duplicate rows for one plate can coexist briefly; radar shows only the
	// freshest row per plate.
	freshest := make(map[domain.Plate]*domain.PresenceRecord, len(rows))
	for _, row := range rows {
		if row.Plate == self || row.Position == nil || row.Stale(now, r.window) {
			continue
		}
		if cur, ok := freshest[row.Plate]; !ok || row.LastSeen.After(cur.LastSeen) {
			freshest[row.Plate] = row
		}
	}

	drivers := make([]domain.NearbyDriver, 0, len(freshest))
	for _, rec := range freshest {
		dist := domain.DistanceMeters(origin, *rec.Position)
		if dist > radiusMeters {
			continue
		}
		bearing := domain.BearingDegrees(origin, *rec.Position)
		drivers = append(drivers, domain.NearbyDriver{
			Plate:          rec.Plate,
			VehicleKind:    rec.VehicleKind,
			DistanceMeters: dist,
			Direction:      domain.ClassifyDirection(observerHeading, bearing),
			Heading:        rec.Heading,
			LastSeen:       rec.LastSeen,
		})
	}

	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].DistanceMeters < drivers[j].DistanceMeters
	})
	return drivers, nil
}
