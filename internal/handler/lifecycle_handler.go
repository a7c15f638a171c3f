package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"piggy-appointment-api/internal/middleware"
	"piggy-appointment-api/internal/model"
	"piggy-appointment-api/internal/session"
)

// loadSession builds the per-user appointment session the lifecycle
// operations run through, backed directly by the store.
func (h *Handler) loadSession(r *http.Request) (*session.Session, *model.Appointment, error) {
	apt, err := h.loadOwned(r)
	if err != nil {
		return nil, nil, err
	}
	return session.New(h.store, middleware.UserID(r.Context()), *apt, h.loc), apt, nil
}

func (h *Handler) CancellationStatus(w http.ResponseWriter, r *http.Request) {
	apt, err := h.loadOwned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	st, err := h.store.CancellationStatus(r.Context(), middleware.UserID(r.Context()), apt.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.CancelState{"cancellation_status": st})
}

func (h *Handler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	sess, apt, err := h.loadSession(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.RequestCancellation(r.Context()); err != nil {
		writeErr(w, err)
		return
	}

	h.notify(r.Context(), apt.ID, middleware.UserID(r.Context()), func(ctx context.Context, tokens []string) {
		h.push.NotifyCancellationRequested(ctx, tokens, apt.Subject)
	})
	writeJSON(w, http.StatusCreated, map[string]model.CancelState{"cancellation_status": model.CancelRequested})
}

func (h *Handler) RespondToCancellation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	sess, apt, err := h.loadSession(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.RespondToCancellation(r.Context(), req.Accept); err != nil {
		writeErr(w, err)
		return
	}

	h.notify(r.Context(), apt.ID, middleware.UserID(r.Context()), func(ctx context.Context, tokens []string) {
		h.push.NotifyCancellationResolved(ctx, tokens, apt.Subject, req.Accept)
	})

	st := model.CancelRejected
	if req.Accept {
		st = model.CancelConfirmed
	}
	writeJSON(w, http.StatusOK, map[string]model.CancelState{"cancellation_status": st})
}

func (h *Handler) CertificationStatus(w http.ResponseWriter, r *http.Request) {
	apt, err := h.loadOwned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	certified, err := h.store.CertificationStatus(r.Context(), middleware.UserID(r.Context()), apt.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"certified": certified})
}

func (h *Handler) Certify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	sess, apt, err := h.loadSession(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.Refresh(r.Context()); err != nil {
		writeErr(w, err)
		return
	}

	var coord *model.Coordinate
	if req.Latitude != nil && req.Longitude != nil {
		coord = &model.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	if err := sess.Certify(r.Context(), coord); err != nil {
		writeErr(w, err)
		return
	}

	h.notify(r.Context(), apt.ID, middleware.UserID(r.Context()), func(ctx context.Context, tokens []string) {
		h.push.NotifyCertified(ctx, tokens, middleware.Nickname(r.Context()), apt.Subject)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"certified":   true,
		"distance_km": sess.CertifyDistance(*coord),
	})
}

func (h *Handler) RespondToAcceptance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	sess, _, err := h.loadSession(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.RespondToAcceptance(r.Context(), req.Accept); err != nil {
		writeErr(w, err)
		return
	}

	st := model.AgreementRejected
	if req.Accept {
		st = model.AgreementConfirmed
	}
	writeJSON(w, http.StatusOK, map[string]model.AgreementStatus{"agreement_status": st})
}

// Action returns the single derived UI action for the caller: label,
// enabled flag, and whether it renders as an accept/reject pair.
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	sess, _, err := h.loadSession(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := sess.Refresh(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Action())
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.store.Balance(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"piggy": bal})
}

func (h *Handler) UpdateDeviceToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceToken string `json:"device_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	if err := h.store.UpdateDeviceToken(r.Context(), middleware.UserID(r.Context()), req.DeviceToken); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
