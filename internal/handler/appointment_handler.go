package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"piggy-appointment-api/internal/middleware"
	"piggy-appointment-api/internal/model"
)

type appointmentJSON struct {
	ID             string                  `json:"id"`
	Subject        string                  `json:"subject"`
	Contents       string                  `json:"contents"`
	Address        string                  `json:"address"`
	PlaceName      string                  `json:"place_name"`
	Latitude       float64                 `json:"latitude"`
	Longitude      float64                 `json:"longitude"`
	Date           string                  `json:"date"`
	Time           string                  `json:"time"`
	DealPiggyCount int                     `json:"deal_piggy_count"`
	Status         model.AppointmentStatus `json:"status"`
	ProposerID     string                  `json:"proposer_id"`
	Participants   []participantJSON       `json:"participants,omitempty"`
}

type participantJSON struct {
	UserID    string                `json:"user_id"`
	Nickname  string                `json:"nickname"`
	Agreement model.AgreementStatus `json:"agreement_status"`
}

func toJSON(a *model.Appointment) appointmentJSON {
	out := appointmentJSON{
		ID:             a.ID,
		Subject:        a.Subject,
		Contents:       a.Contents,
		Address:        a.Address,
		PlaceName:      a.PlaceName,
		Latitude:       a.Coord.Latitude,
		Longitude:      a.Coord.Longitude,
		Date:           a.Date,
		Time:           a.Time,
		DealPiggyCount: a.DealPiggyCount,
		Status:         a.Status,
		ProposerID:     a.ProposerID,
	}
	for _, p := range a.Participants {
		out.Participants = append(out.Participants, participantJSON{
			UserID: p.UserID, Nickname: p.Nickname, Agreement: p.Agreement,
		})
	}
	return out
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req struct {
		Subject        string   `json:"subject"`
		Contents       string   `json:"contents"`
		Address        string   `json:"address"`
		PlaceName      string   `json:"place_name"`
		Latitude       float64  `json:"latitude"`
		Longitude      float64  `json:"longitude"`
		Date           string   `json:"date"`
		Time           string   `json:"time"`
		DealPiggyCount int      `json:"deal_piggy_count"`
		ParticipantIDs []string `json:"participant_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}
	if req.Subject == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject required"})
		return
	}
	if req.DealPiggyCount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deal_piggy_count must not be negative"})
		return
	}
	instant, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date and time required as YYYY-MM-DD and HH:mm"})
		return
	}
	if instant.Before(time.Now()) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot book in the past"})
		return
	}
	if len(req.ParticipantIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "participants required"})
		return
	}

	ids := req.ParticipantIDs
	if !slices.Contains(ids, userID) {
		ids = append(ids, userID)
	}
	apt := &model.Appointment{
		ID:             uuid.New().String(),
		Subject:        req.Subject,
		Contents:       req.Contents,
		Address:        req.Address,
		PlaceName:      req.PlaceName,
		Coord:          model.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		Date:           req.Date,
		Time:           req.Time,
		DealPiggyCount: req.DealPiggyCount,
		Status:         model.AppointmentPending,
		ProposerID:     userID,
	}
	for _, id := range ids {
		apt.Participants = append(apt.Participants, model.Participant{AppointmentID: apt.ID, UserID: id})
	}

	if err := h.store.CreateAppointment(r.Context(), apt); err != nil {
		writeErr(w, err)
		return
	}

	h.notify(r.Context(), apt.ID, userID, func(ctx context.Context, tokens []string) {
		h.push.NotifyProposal(ctx, tokens, apt.Subject)
	})

	created, err := h.store.GetAppointment(r.Context(), apt.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJSON(created))
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	apts, err := h.store.ListAppointments(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]appointmentJSON, len(apts))
	for i := range apts {
		out[i] = toJSON(&apts[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	apt, err := h.loadOwned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(apt))
}

func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	apt, err := h.loadOwned(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]participantJSON, len(apt.Participants))
	for i, p := range apt.Participants {
		out[i] = participantJSON{UserID: p.UserID, Nickname: p.Nickname, Agreement: p.Agreement}
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": out})
}

// loadOwned fetches the appointment in the route and checks the caller is a
// participant. Outsiders get not-found rather than forbidden, hiding
// existence.
func (h *Handler) loadOwned(r *http.Request) (*model.Appointment, error) {
	apt, err := h.store.GetAppointment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	userID := middleware.UserID(r.Context())
	for _, p := range apt.Participants {
		if p.UserID == userID {
			return apt, nil
		}
	}
	return nil, model.ErrParticipantNotFound
}

// notify fans a push out to the other participants, best effort.
func (h *Handler) notify(ctx context.Context, appointmentID, actorID string, send func(context.Context, []string)) {
	if h.push == nil {
		return
	}
	tokens, err := h.store.DeviceTokens(ctx, appointmentID, actorID)
	if err != nil || len(tokens) == 0 {
		return
	}
	send(ctx, tokens)
}
