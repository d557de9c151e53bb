package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/roadcall/roadcall/internal/auth"
	"github.com/roadcall/roadcall/internal/core/domain"
	"github.com/roadcall/roadcall/internal/core/port"
	"github.com/roadcall/roadcall/internal/core/service"
)

type Handler struct {
	Registry *service.Registry
	Radar    *service.Radar
	Calls    *service.CallManager
	Relay    port.SignalingRelay
	Notifier port.CallNotifier
	Tokens   auth.Tokens

	DefaultRadiusMeters float64
	SignalLossTimeout   time.Duration
}

func NewHandler(registry *service.Registry, radar *service.Radar, calls *service.CallManager, relay port.SignalingRelay, notifier port.CallNotifier, tokens auth.Tokens, defaultRadiusMeters float64, signalLossTimeout time.Duration) *Handler {
	return &Handler{
		Registry:            registry,
		Radar:               radar,
		Calls:               calls,
		Relay:               relay,
		Notifier:            notifier,
		Tokens:              tokens,
		DefaultRadiusMeters: defaultRadiusMeters,
		SignalLossTimeout:   signalLossTimeout,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Post("/v1/auth/anonymous", h.IssueToken)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.Tokens))

		r.Post("/v1/presence", h.ReportPresence)
		r.Delete("/v1/presence", h.Disconnect)
		r.Post("/v1/nearby", h.ListNearby)
		r.Post("/v1/calls", h.CreateCall)
		r.Patch("/v1/calls/{callID}", h.UpdateCallStatus)
		r.Get("/v1/calls/inbox", h.ServeInbox)
		r.Get("/v1/calls/{callID}/ws", h.ServeSignaling)
	})

	return r
}

// IssueToken hands out an anonymous bearer token bound to a validated
// plate. Plate verification beyond format is out of scope; the token just
// fixes the plate the rest of the API trusts.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}
	plate := domain.NormalizePlate(req.Plate)
	if err := domain.ValidatePlate(plate); err != nil {
		writeError(w, err)
		return
	}
	token, expiresAt, err := h.Tokens.Issue(plate)
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Plate: plate.String(), ExpiresAt: expiresAt})
}

func (h *Handler) ReportPresence(w http.ResponseWriter, r *http.Request) {
	plate, _ := PlateFromContext(r.Context())

	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}
	// A body plate, if present, must match the token's plate.
	if req.Plate != "" && domain.NormalizePlate(req.Plate) != plate {
		writeErrorMessage(w, http.StatusUnauthorized, "plate does not match token")
		return
	}

	rec, err := h.Registry.Upsert(r.Context(), plate, domain.VehicleKind(req.VehicleKind), req.Position.toGeoPoint(), req.Heading, req.Speed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presenceResponse{Plate: rec.Plate.String(), LastSeen: rec.LastSeen})
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	plate, _ := PlateFromContext(r.Context())
	if err := h.Registry.Remove(r.Context(), plate); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListNearby(w http.ResponseWriter, r *http.Request) {
	plate, _ := PlateFromContext(r.Context())

	var req nearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}
	point := req.Point.toGeoPoint()
	if point == nil {
		writeErrorMessage(w, http.StatusBadRequest, "point is required")
		return
	}
	radius := req.RadiusMeters
	if radius == 0 {
		radius = h.DefaultRadiusMeters
	}

	drivers, err := h.Radar.Nearby(r.Context(), plate, *point, radius)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := nearbyResponse{Drivers: make([]nearbyDriverDTO, 0, len(drivers))}
	for _, d := range drivers {
		resp.Drivers = append(resp.Drivers, toNearbyDTO(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateCall(w http.ResponseWriter, r *http.Request) {
	plate, _ := PlateFromContext(r.Context())

	var req createCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TargetPlate == "" {
		writeErrorMessage(w, http.StatusBadRequest, "target_plate is required")
		return
	}

	call, err := h.Calls.Create(r.Context(), plate, domain.NormalizePlate(req.TargetPlate))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCallDTO(*call))
}

func (h *Handler) UpdateCallStatus(w http.ResponseWriter, r *http.Request) {
	plate, _ := PlateFromContext(r.Context())

	callID, err := domain.ParseCallID(chi.URLParam(r, "callID"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid call id")
		return
	}
	var req updateCallStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := h.Calls.UpdateStatus(r.Context(), callID, plate, domain.CallStatus(req.Status)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
