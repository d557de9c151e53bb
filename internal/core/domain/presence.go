package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PresenceID uuid.UUID

func NewPresenceID() PresenceID {
	return PresenceID(uuid.New())
}

func (id PresenceID) String() string {
	return uuid.UUID(id).String()
}

func ParsePresenceID(s string) (PresenceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PresenceID{}, err
	}
	return PresenceID(u), nil
}

type VehicleKind string

const (
	VehicleSedan      VehicleKind = "sedan"
	VehicleSUV        VehicleKind = "suv"
	VehicleTruck      VehicleKind = "truck"
	VehicleMotorcycle VehicleKind = "motorcycle"
	VehicleVan        VehicleKind = "van"
)

// PresenceRecord is the live location+identity tuple a driver maintains by
// periodic writes. The registry keeps at most one non-stale record per plate.
type PresenceRecord struct {
	ID          PresenceID
	Plate       Plate
	VehicleKind VehicleKind
	Position    *GeoPoint
	Heading     *float64 // degrees 0-360, nil when unknown
	Speed       *float64 // km/h, nil when unknown
	CreatedAt   time.Time
	LastSeen    time.Time
}

// NewPresenceRecord validates the broadcast fields and stamps timestamps.
func NewPresenceRecord(plate Plate, kind VehicleKind, pos *GeoPoint, heading, speed *float64, now time.Time) (*PresenceRecord, error) {
	if err := ValidatePresenceFields(plate, pos, heading, speed); err != nil {
		return nil, err
	}
	return &PresenceRecord{
		ID:          NewPresenceID(),
		Plate:       plate,
		VehicleKind: kind,
		Position:    pos,
		Heading:     heading,
		Speed:       speed,
		CreatedAt:   now,
		LastSeen:    now,
	}, nil
}

// ValidatePresenceFields checks the mutable fields of a presence write.
func ValidatePresenceFields(plate Plate, pos *GeoPoint, heading, speed *float64) error {
	if err := ValidatePlate(plate); err != nil {
		return err
	}
	if pos == nil {
		return fmt.Errorf("%w: position is required", ErrInvalidInput)
	}
	if !pos.Valid() {
		return fmt.Errorf("%w: position out of bounds (%.4f, %.4f)", ErrInvalidInput, pos.Latitude, pos.Longitude)
	}
	if heading != nil && (*heading < 0 || *heading >= 360) {
		return fmt.Errorf("%w: heading %.1f outside [0, 360)", ErrInvalidInput, *heading)
	}
	if speed != nil && *speed < 0 {
		return fmt.Errorf("%w: speed must be non-negative", ErrInvalidInput)
	}
	return nil
}

// Stale reports whether the record has outlived the staleness window.
func (r *PresenceRecord) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(r.LastSeen) > window
}

// NearbyDriver is a registry record annotated for a radar view.
type NearbyDriver struct {
	Plate          Plate
	VehicleKind    VehicleKind
	DistanceMeters float64
	Direction      Direction
	Heading        *float64
	LastSeen       time.Time
}
