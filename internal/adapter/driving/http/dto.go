package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/roadcall/roadcall/internal/core/domain"
)

type pointDTO struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (p *pointDTO) toGeoPoint() *domain.GeoPoint {
	if p == nil || p.Lat == nil || p.Lng == nil {
		return nil
	}
	return &domain.GeoPoint{Latitude: *p.Lat, Longitude: *p.Lng}
}

type tokenRequest struct {
	Plate string `json:"plate"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Plate     string    `json:"plate"`
	ExpiresAt time.Time `json:"expires_at"`
}

type presenceRequest struct {
	Plate       string    `json:"plate,omitempty"`
	VehicleKind string    `json:"vehicle_kind,omitempty"`
	Position    *pointDTO `json:"position"`
	Heading     *float64  `json:"heading,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
}

type presenceResponse struct {
	Plate    string    `json:"plate"`
	LastSeen time.Time `json:"last_seen"`
}

type nearbyRequest struct {
	Point        *pointDTO `json:"point"`
	RadiusMeters float64   `json:"radius_meters,omitempty"`
}

type nearbyDriverDTO struct {
	Plate          string    `json:"plate"`
	VehicleKind    string    `json:"vehicle_kind,omitempty"`
	DistanceMeters int       `json:"distance_meters"`
	DistanceLabel  string    `json:"distance_label"`
	Direction      string    `json:"direction"`
	Heading        *float64  `json:"heading,omitempty"`
	LastSeen       time.Time `json:"last_seen"`
}

type nearbyResponse struct {
	Drivers []nearbyDriverDTO `json:"drivers"`
}

func toNearbyDTO(d domain.NearbyDriver) nearbyDriverDTO {
	return nearbyDriverDTO{
		Plate:          d.Plate.String(),
		VehicleKind:    string(d.VehicleKind),
		DistanceMeters: int(math.Round(d.DistanceMeters)),
		DistanceLabel:  domain.FormatDistance(d.DistanceMeters),
		Direction:      string(d.Direction),
		Heading:        d.Heading,
		LastSeen:       d.LastSeen,
	}
}

type createCallRequest struct {
	TargetPlate string `json:"target_plate"`
}

type callResponse struct {
	CallID        string     `json:"call_id"`
	CallerPlate   string     `json:"caller_plate"`
	ReceiverPlate string     `json:"receiver_plate"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

func toCallDTO(c domain.CallSession) callResponse {
	return callResponse{
		CallID:        c.ID.String(),
		CallerPlate:   c.CallerPlate.String(),
		ReceiverPlate: c.ReceiverPlate.String(),
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		ExpiresAt:     c.ExpiresAt,
		EndedAt:       c.EndedAt,
	}
}

type updateCallStatusRequest struct {
	Status string `json:"status"`
}

// signalEnvelope is the wire form of one signaling frame. The sender field
// is informational on the way out and ignored on the way in; the server
// stamps the authenticated participant's role.
type signalEnvelope struct {
	Type    string `json:"type"`
	Sender  string `json:"sender,omitempty"`
	Payload string `json:"payload"`
}

type errorResponse struct {
	Error             string   `json:"error"`
	DistanceMeters    *int     `json:"distance_meters,omitempty"`
	MaxDistanceMeters *int     `json:"max_distance_meters,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps the domain taxonomy onto HTTP statuses. TooFar carries
// the computed distance so clients can show it.
func writeError(w http.ResponseWriter, err error) {
	var tooFar *domain.TooFarError
	if errors.As(err, &tooFar) {
		dist := int(math.Round(tooFar.DistanceMeters))
		max := int(math.Round(tooFar.MaxMeters))
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:             "driver too far away",
			DistanceMeters:    &dist,
			MaxDistanceMeters: &max,
		})
		return
	}
	writeErrorMessage(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTooFar):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
