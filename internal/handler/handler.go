package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"piggy-appointment-api/internal/middleware"
	"piggy-appointment-api/internal/model"
	"piggy-appointment-api/internal/push"
	"piggy-appointment-api/internal/store"
)

type Handler struct {
	store  *store.Store
	push   *push.Service
	secret string
	loc    *time.Location
}

// New builds the handler. push may be nil, in which case no notifications
// are sent.
func New(st *store.Store, ps *push.Service, secret string, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{store: st, push: ps, secret: secret, loc: loc}
}

func (h *Handler) Router(rl *middleware.RateLimiter) *mux.Router {
	r := mux.NewRouter()

	open := r.PathPrefix("/auth").Subrouter()
	open.Use(middleware.RateLimit(rl))
	open.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	open.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	open.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	open.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.Auth(h.secret))
	api.HandleFunc("/appointments", h.CreateAppointment).Methods(http.MethodPost)
	api.HandleFunc("/appointments", h.ListAppointments).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}", h.GetAppointment).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}/participants", h.Participants).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}/cancellation", h.CancellationStatus).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}/cancellation", h.RequestCancellation).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/cancellation/response", h.RespondToCancellation).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/certification", h.CertificationStatus).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}/certification", h.Certify).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/acceptance", h.RespondToAcceptance).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/action", h.Action).Methods(http.MethodGet)
	api.HandleFunc("/me/balance", h.Balance).Methods(http.MethodGet)
	api.HandleFunc("/me/device-token", h.UpdateDeviceToken).Methods(http.MethodPut)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors to responses at the action boundary.
// Precondition failures carry their specific message so the client can tell
// them apart from plain backend failures; anything unrecognized degrades to
// a generic 500 rather than leaking internals.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInsufficientBalance),
		errors.Is(err, model.ErrCancellationConflict),
		errors.Is(err, model.ErrOutOfRange),
		errors.Is(err, model.ErrAlreadyCertified),
		errors.Is(err, model.ErrAlreadyResponded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrLocationUnavailable):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrParticipantNotFound), errors.Is(err, pgx.ErrNoRows):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
