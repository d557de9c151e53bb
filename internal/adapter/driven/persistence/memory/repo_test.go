package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadcall/roadcall/internal/core/domain"
)

func TestPresenceRepositoryRoundTrip(t *testing.T) {
	repo := NewPresenceRepository()
	ctx := context.Background()

	rec := &domain.PresenceRecord{
		ID:        domain.NewPresenceID(),
		Plate:     "ABC-1234",
		Position:  &domain.GeoPoint{Latitude: 33.5731, Longitude: -7.5898},
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}
	require.NoError(t, repo.Put(ctx, rec))

	rows, err := repo.FindByPlate(ctx, "ABC-1234")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec.ID, rows[0].ID)

	// The store hands out copies, not aliases.
	rows[0].Plate = "MUTATED-1"
	again, err := repo.FindByPlate(ctx, "ABC-1234")
	require.NoError(t, err)
	require.Len(t, again, 1)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	rows, err = repo.FindByPlate(ctx, "ABC-1234")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPresenceRepositoryNear(t *testing.T) {
	repo := NewPresenceRepository()
	ctx := context.Background()
	origin := domain.GeoPoint{Latitude: 33.5731, Longitude: -7.5898}

	put := func(plate domain.Plate, pos *domain.GeoPoint) {
		require.NoError(t, repo.Put(ctx, &domain.PresenceRecord{
			ID: domain.NewPresenceID(), Plate: plate, Position: pos,
			CreatedAt: time.Now(), LastSeen: time.Now(),
		}))
	}
	put("NEAR-55", &domain.GeoPoint{Latitude: origin.Latitude + 0.001, Longitude: origin.Longitude}) // ~111m
	put("FAR-66", &domain.GeoPoint{Latitude: origin.Latitude + 0.02, Longitude: origin.Longitude})   // ~2.2km
	put("NOPOS-7", nil)

	rows, err := repo.Near(ctx, origin, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.Plate("NEAR-55"), rows[0].Plate)
}

func TestCallRepository(t *testing.T) {
	repo := NewCallRepository()
	ctx := context.Background()
	now := time.Now()

	call := domain.NewCallSession("ABC-1234", "XYZ-5678", now, 5*time.Minute)
	require.NoError(t, repo.Insert(ctx, call))

	err := repo.Insert(ctx, call)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := repo.Get(ctx, call.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.CallPending, got.Status)

	missing, err := repo.Get(ctx, domain.NewCallID())
	require.NoError(t, err)
	assert.Nil(t, missing)

	got.Status = domain.CallActive
	require.NoError(t, repo.Update(ctx, got))

	other := domain.NewCallSession("AAA-1111", "BBB-2222", now, 5*time.Minute)
	err = repo.Update(ctx, other)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCallRepositoryFindOpen(t *testing.T) {
	repo := NewCallRepository()
	ctx := context.Background()
	now := time.Now()

	call := domain.NewCallSession("ABC-1234", "XYZ-5678", now, 5*time.Minute)
	require.NoError(t, repo.Insert(ctx, call))

	for _, plate := range []domain.Plate{"ABC-1234", "XYZ-5678"} {
		open, err := repo.FindOpen(ctx, plate, now)
		require.NoError(t, err)
		require.NotNil(t, open, "%s should be busy", plate)
		assert.Equal(t, call.ID, open.ID)
	}

	open, err := repo.FindOpen(ctx, "JKL-9012", now)
	require.NoError(t, err)
	assert.Nil(t, open)

	// Past the TTL the pending session no longer counts as open.
	open, err = repo.FindOpen(ctx, "ABC-1234", now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, open)
}
