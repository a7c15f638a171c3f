// Package session holds the process-local view of one appointment for one
// user and drives the actions the lifecycle resolver derives. All shared
// state is single-writer and re-fetched from the backend rather than
// mutated optimistically; every mutating action re-validates against fresh
// backend truth instead of trusting the last snapshot.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"piggy-appointment-api/internal/geo"
	"piggy-appointment-api/internal/lifecycle"
	"piggy-appointment-api/internal/model"
)

// Backend is the remote API surface the session consumes. The store
// satisfies it in-process; a network client would satisfy it the same way.
type Backend interface {
	CancellationStatus(ctx context.Context, userID, appointmentID string) (model.CancelState, error)
	RequestCancellation(ctx context.Context, userID, appointmentID string) error
	RespondToCancellation(ctx context.Context, userID, appointmentID string, accept bool) error
	CertificationStatus(ctx context.Context, userID, appointmentID string) (bool, error)
	SubmitCertification(ctx context.Context, userID, appointmentID string, place, user model.Coordinate) error
	Participants(ctx context.Context, appointmentID string) ([]model.Participant, error)
	RespondToAcceptance(ctx context.Context, userID, appointmentID string, accept bool) error
	Balance(ctx context.Context, userID string) (int, error)
}

type Session struct {
	backend Backend
	userID  string
	loc     *time.Location
	now     func() time.Time

	mu          sync.Mutex
	appt        model.Appointment
	cancel      model.CancelState
	myAgreement model.AgreementStatus
	certified   bool
	balance     int
}

func New(backend Backend, userID string, appt model.Appointment, loc *time.Location) *Session {
	return &Session{
		backend: backend,
		userID:  userID,
		loc:     loc,
		now:     time.Now,
		appt:    appt,
		cancel:  model.CancelNothing,
	}
}

// Refresh fetches the four independent remote states concurrently. There is
// no ordering guarantee between them and no barrier beyond the join here;
// the derived action is only as fresh as the slowest fetch. That is fine
// because every mutating action re-checks its own precondition against the
// backend before writing.
func (s *Session) Refresh(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		errs = make(chan error, 4)
	)

	run := func(f func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(ctx); err != nil {
				errs <- err
			}
		}()
	}

	run(s.fetchCancellation)
	run(s.fetchCertification)
	run(s.fetchAgreement)
	run(s.fetchBalance)

	wg.Wait()
	close(errs)
	return <-errs
}

func (s *Session) fetchCancellation(ctx context.Context) error {
	st, err := s.backend.CancellationStatus(ctx, s.userID, s.appt.ID)
	if err != nil {
		return fmt.Errorf("cancellation status: %w", err)
	}
	s.mu.Lock()
	s.cancel = st
	s.mu.Unlock()
	return nil
}

func (s *Session) fetchCertification(ctx context.Context) error {
	certified, err := s.backend.CertificationStatus(ctx, s.userID, s.appt.ID)
	if err != nil {
		return fmt.Errorf("certification status: %w", err)
	}
	s.mu.Lock()
	s.certified = certified
	s.mu.Unlock()
	return nil
}

func (s *Session) fetchAgreement(ctx context.Context) error {
	parts, err := s.backend.Participants(ctx, s.appt.ID)
	if err != nil {
		return fmt.Errorf("participants: %w", err)
	}
	for _, p := range parts {
		if p.UserID == s.userID {
			s.mu.Lock()
			s.myAgreement = p.Agreement
			s.mu.Unlock()
			return nil
		}
	}
	return model.ErrParticipantNotFound
}

func (s *Session) fetchBalance(ctx context.Context) error {
	bal, err := s.backend.Balance(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	s.mu.Lock()
	s.balance = bal
	s.mu.Unlock()
	return nil
}

// Action derives the single renderable action from the current snapshot.
func (s *Session) Action() lifecycle.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	window, _ := lifecycle.ClassifyWindow(s.now(), s.appt.Date, s.appt.Time, s.loc)
	return lifecycle.Resolve(lifecycle.Inputs{
		Status:      s.appt.Status,
		MyAgreement: s.myAgreement,
		Cancel:      s.cancel,
		Window:      window,
		Certified:   s.certified,
	})
}

// RequestCancellation re-fetches the negotiation state immediately before
// acting and submits only when it is still exactly "nothing". This narrows
// the race against a concurrent request from the counterparty but does not
// eliminate it; the backend remains the arbiter.
func (s *Session) RequestCancellation(ctx context.Context) error {
	st, err := s.backend.CancellationStatus(ctx, s.userID, s.appt.ID)
	if err != nil {
		return fmt.Errorf("cancellation status: %w", err)
	}
	if st != model.CancelNothing {
		s.mu.Lock()
		s.cancel = st
		s.mu.Unlock()
		return model.ErrCancellationConflict
	}

	if err := s.backend.RequestCancellation(ctx, s.userID, s.appt.ID); err != nil {
		return err
	}
	return s.fetchCancellation(ctx)
}

// RespondToCancellation answers the counterparty's open request. The offer
// is assumed valid once presented; no precondition re-check here.
func (s *Session) RespondToCancellation(ctx context.Context, accept bool) error {
	if err := s.backend.RespondToCancellation(ctx, s.userID, s.appt.ID, accept); err != nil {
		return err
	}
	return s.fetchCancellation(ctx)
}

// Certify submits arrival certification. The device coordinate may be
// unavailable, which fails before any remote call. Eligibility is decided
// at full precision; CertifyDistance is what the UI shows.
func (s *Session) Certify(ctx context.Context, user *model.Coordinate) error {
	if user == nil {
		return model.ErrLocationUnavailable
	}

	s.mu.Lock()
	certified := s.certified
	place := s.appt.Coord
	s.mu.Unlock()
	if certified {
		return model.ErrAlreadyCertified
	}

	if err := s.backend.SubmitCertification(ctx, s.userID, s.appt.ID, place, *user); err != nil {
		return err
	}

	s.mu.Lock()
	s.certified = true
	s.mu.Unlock()
	return nil
}

// CertifyDistance returns the user's distance from the appointment place in
// km, rounded to two decimals for display.
func (s *Session) CertifyDistance(user model.Coordinate) float64 {
	return geo.DisplayKm(geo.Distance(s.appt.Coord, user))
}

// RespondToAcceptance answers the proposal. Accepting is blocked locally,
// with no remote write, when the appointment's piggy cost exceeds the
// balance fetched at submit time.
func (s *Session) RespondToAcceptance(ctx context.Context, accept bool) error {
	if accept {
		bal, err := s.backend.Balance(ctx, s.userID)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		s.mu.Lock()
		s.balance = bal
		cost := s.appt.DealPiggyCount
		s.mu.Unlock()
		if cost > bal {
			return model.ErrInsufficientBalance
		}
	}

	if err := s.backend.RespondToAcceptance(ctx, s.userID, s.appt.ID, accept); err != nil {
		return err
	}
	return s.fetchAgreement(ctx)
}
