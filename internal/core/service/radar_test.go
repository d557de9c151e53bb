package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadcall/roadcall/internal/adapter/driven/persistence/memory"
	"github.com/roadcall/roadcall/internal/core/domain"
)

func seedPresence(t *testing.T, repo *memory.PresenceRepository, plate domain.Plate, lat, lng float64, heading *float64, lastSeen time.Time) {
	t.Helper()
	rec := &domain.PresenceRecord{
		ID:        domain.NewPresenceID(),
		Plate:     plate,
		Position:  &domain.GeoPoint{Latitude: lat, Longitude: lng},
		Heading:   heading,
		CreatedAt: lastSeen,
		LastSeen:  lastSeen,
	}
	require.NoError(t, repo.Put(context.Background(), rec))
}

func TestNearbyOrdersByDistanceAndAnnotatesDirection(t *testing.T) {
	repo := memory.NewPresenceRepository()
	radar := NewRadar(repo, testWindow, testTimeout)

	now := time.Now()
	radar.now = func() time.Time { return now }

	origin := domain.GeoPoint{Latitude: 33.5731, Longitude: -7.5898}

	// Observer heads north, so north is ahead and south is behind.
	seedPresence(t, repo, "ME-111", origin.Latitude, origin.Longitude, fptr(0), now)
	seedPresence(t, repo, "NORTH-22", origin.Latitude+0.001, origin.Longitude, fptr(0), now)   // ~111m north
	seedPresence(t, repo, "SOUTH-33", origin.Latitude-0.0045, origin.Longitude, nil, now)      // ~500m south

	drivers, err := radar.Nearby(context.Background(), "ME-111", origin, 1000)
	require.NoError(t, err)
	require.Len(t, drivers, 2)

	assert.Equal(t, domain.Plate("NORTH-22"), drivers[0].Plate)
	assert.Equal(t, domain.DirectionAhead, drivers[0].Direction)
	assert.InDelta(t, 111, drivers[0].DistanceMeters, 2)

	assert.Equal(t, domain.Plate("SOUTH-33"), drivers[1].Plate)
	assert.Equal(t, domain.DirectionBehind, drivers[1].Direction)
	assert.InDelta(t, 500, drivers[1].DistanceMeters, 10)
}

func TestNearbyExcludesSelfAndStale(t *testing.T) {
	repo := memory.NewPresenceRepository()
	radar := NewRadar(repo, testWindow, testTimeout)

	now := time.Now()
	radar.now = func() time.Time { return now }

	origin := domain.GeoPoint{Latitude: 33.5731, Longitude: -7.5898}
	seedPresence(t, repo, "ME-111", origin.Latitude, origin.Longitude, nil, now)
	seedPresence(t, repo, "GONE-44", origin.Latitude+0.001, origin.Longitude, nil, now.Add(-testWindow-time.Second))

	drivers, err := radar.Nearby(context.Background(), "ME-111", origin, 1000)
	require.NoError(t, err)
	assert.Empty(t, drivers)
}

func TestNearbyRespectsRadius(t *testing.T) {
	repo := memory.NewPresenceRepository()
	radar := NewRadar(repo, testWindow, testTimeout)

	now := time.Now()
	radar.now = func() time.Time { return now }

	origin := domain.GeoPoint{Latitude: 33.5731, Longitude: -7.5898}
	seedPresence(t, repo, "NEAR-55", origin.Latitude+0.001, origin.Longitude, nil, now)  // ~111m
	seedPresence(t, repo, "FAR-66", origin.Latitude+0.02, origin.Longitude, nil, now)    // ~2.2km

	drivers, err := radar.Nearby(context.Background(), "ME-111", origin, 1000)
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, domain.Plate("NEAR-55"), drivers[0].Plate)
}

func TestNearbyUnknownObserverHeadingDefaultsToAhead(t *testing.T) {
	repo := memory.NewPresenceRepository()
	radar := NewRadar(repo, testWindow, testTimeout)

	now := time.Now()
	radar.now = func() time.Time { return now }

	origin := domain.GeoPoint{Latitude: 33.5731, Longitude: -7.5898}
	// Observer has no presence at all, so no heading either.
	seedPresence(t, repo, "SOUTH-33", origin.Latitude-0.001, origin.Longitude, nil, now)

	drivers, err := radar.Nearby(context.Background(), "ME-111", origin, 1000)
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, domain.DirectionAhead, drivers[0].Direction)
}

func TestNearbyValidation(t *testing.T) {
	repo := memory.NewPresenceRepository()
	radar := NewRadar(repo, testWindow, testTimeout)

	_, err := radar.Nearby(context.Background(), "ME-111", domain.GeoPoint{Latitude: 91}, 1000)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = radar.Nearby(context.Background(), "ME-111", domain.GeoPoint{}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
