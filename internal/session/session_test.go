package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"piggy-appointment-api/internal/lifecycle"
	"piggy-appointment-api/internal/model"
)

// fakeBackend counts writes so tests can assert that precondition failures
// never reach the remote side.
type fakeBackend struct {
	mu sync.Mutex

	cancel       model.CancelState
	certified    bool
	participants []model.Participant
	balance      int

	cancelRequests  int
	cancelResponses int
	certifySubmits  int
	acceptResponses int
}

func (f *fakeBackend) CancellationStatus(ctx context.Context, userID, apptID string) (model.CancelState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel, nil
}

func (f *fakeBackend) RequestCancellation(ctx context.Context, userID, apptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelRequests++
	f.cancel = model.CancelRequested
	return nil
}

func (f *fakeBackend) RespondToCancellation(ctx context.Context, userID, apptID string, accept bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelResponses++
	if accept {
		f.cancel = model.CancelConfirmed
	} else {
		f.cancel = model.CancelRejected
	}
	return nil
}

func (f *fakeBackend) CertificationStatus(ctx context.Context, userID, apptID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.certified, nil
}

func (f *fakeBackend) SubmitCertification(ctx context.Context, userID, apptID string, place, user model.Coordinate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.certifySubmits++
	f.certified = true
	return nil
}

func (f *fakeBackend) Participants(ctx context.Context, apptID string) ([]model.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants, nil
}

func (f *fakeBackend) RespondToAcceptance(ctx context.Context, userID, apptID string, accept bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptResponses++
	for i := range f.participants {
		if f.participants[i].UserID == userID {
			if accept {
				f.participants[i].Agreement = model.AgreementConfirmed
			} else {
				f.participants[i].Agreement = model.AgreementRejected
			}
		}
	}
	return nil
}

func (f *fakeBackend) Balance(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

const testUser = "user-1"

func testAppointment(cost int) model.Appointment {
	return model.Appointment{
		ID:             "appt-1",
		Subject:        "lunch",
		Coord:          model.Coordinate{Latitude: 37.5665, Longitude: 126.9780},
		Date:           "2099-06-01",
		Time:           "12:00",
		DealPiggyCount: cost,
		Status:         model.AppointmentAccepted,
	}
}

func newTestSession(b Backend, appt model.Appointment) *Session {
	return New(b, testUser, appt, time.UTC)
}

func TestRefreshPopulatesSnapshot(t *testing.T) {
	b := &fakeBackend{
		cancel:    model.CancelPending,
		certified: true,
		balance:   42,
		participants: []model.Participant{
			{UserID: "other", Agreement: model.AgreementConfirmed},
			{UserID: testUser, Agreement: model.AgreementPending},
		},
	}
	s := newTestSession(b, testAppointment(10))

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.cancel != model.CancelPending {
		t.Errorf("cancel: got %v", s.cancel)
	}
	if !s.certified {
		t.Error("certified not set")
	}
	if s.myAgreement != model.AgreementPending {
		t.Errorf("agreement: got %v", s.myAgreement)
	}
	if s.balance != 42 {
		t.Errorf("balance: got %d", s.balance)
	}
}

func TestRefreshMissingParticipant(t *testing.T) {
	b := &fakeBackend{participants: []model.Participant{{UserID: "other"}}}
	s := newTestSession(b, testAppointment(0))

	err := s.Refresh(context.Background())
	if !errors.Is(err, model.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestRequestCancellationSubmits(t *testing.T) {
	b := &fakeBackend{cancel: model.CancelNothing}
	s := newTestSession(b, testAppointment(0))

	if err := s.RequestCancellation(context.Background()); err != nil {
		t.Fatalf("request: %v", err)
	}
	if b.cancelRequests != 1 {
		t.Errorf("expected 1 submit, got %d", b.cancelRequests)
	}
	if s.cancel != model.CancelRequested {
		t.Errorf("local state: got %v", s.cancel)
	}
}

// A cancellation that arrived between snapshot and submit must abort the
// request without writing anything.
func TestRequestCancellationConflict(t *testing.T) {
	for _, stale := range []model.CancelState{
		model.CancelPending, model.CancelRequested,
		model.CancelRejected, model.CancelConfirmed,
	} {
		t.Run(string(stale), func(t *testing.T) {
			b := &fakeBackend{cancel: stale}
			s := newTestSession(b, testAppointment(0))

			err := s.RequestCancellation(context.Background())
			if !errors.Is(err, model.ErrCancellationConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
			if b.cancelRequests != 0 {
				t.Errorf("submitted despite conflict: %d", b.cancelRequests)
			}
			if s.cancel != stale {
				t.Errorf("local state not refreshed: got %v", s.cancel)
			}
		})
	}
}

func TestRespondToCancellation(t *testing.T) {
	b := &fakeBackend{cancel: model.CancelPending}
	s := newTestSession(b, testAppointment(0))

	if err := s.RespondToCancellation(context.Background(), true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if b.cancelResponses != 1 {
		t.Errorf("expected 1 response, got %d", b.cancelResponses)
	}
	if s.cancel != model.CancelConfirmed {
		t.Errorf("local state: got %v", s.cancel)
	}
}

// Accepting must be blocked locally, with no remote call, whenever the
// stake exceeds the balance fetched at submit time.
func TestAcceptInsufficientBalance(t *testing.T) {
	tests := []struct {
		cost, balance int
		blocked       bool
	}{
		{0, 0, false},
		{10, 10, false},
		{10, 9, true},
		{1, 0, true},
		{100, 250, false},
	}
	for _, tt := range tests {
		b := &fakeBackend{
			balance:      tt.balance,
			participants: []model.Participant{{UserID: testUser, Agreement: model.AgreementPending}},
		}
		s := newTestSession(b, testAppointment(tt.cost))

		err := s.RespondToAcceptance(context.Background(), true)
		if tt.blocked {
			if !errors.Is(err, model.ErrInsufficientBalance) {
				t.Errorf("cost=%d balance=%d: expected ErrInsufficientBalance, got %v", tt.cost, tt.balance, err)
			}
			if b.acceptResponses != 0 {
				t.Errorf("cost=%d balance=%d: remote call made despite block", tt.cost, tt.balance)
			}
		} else if err != nil {
			t.Errorf("cost=%d balance=%d: unexpected error %v", tt.cost, tt.balance, err)
		}
	}
}

func TestRejectSkipsBalanceCheck(t *testing.T) {
	b := &fakeBackend{
		balance:      0,
		participants: []model.Participant{{UserID: testUser, Agreement: model.AgreementPending}},
	}
	s := newTestSession(b, testAppointment(1000))

	if err := s.RespondToAcceptance(context.Background(), false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if b.acceptResponses != 1 {
		t.Errorf("expected 1 response, got %d", b.acceptResponses)
	}
}

func TestCertifyWithoutLocation(t *testing.T) {
	b := &fakeBackend{}
	s := newTestSession(b, testAppointment(0))

	err := s.Certify(context.Background(), nil)
	if !errors.Is(err, model.ErrLocationUnavailable) {
		t.Fatalf("expected ErrLocationUnavailable, got %v", err)
	}
	if b.certifySubmits != 0 {
		t.Errorf("remote call made without location: %d", b.certifySubmits)
	}
}

func TestCertifyMonotonic(t *testing.T) {
	b := &fakeBackend{
		certified:    true,
		participants: []model.Participant{{UserID: testUser, Agreement: model.AgreementConfirmed}},
	}
	s := newTestSession(b, testAppointment(0))
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	coord := &model.Coordinate{Latitude: 37.5665, Longitude: 126.9780}
	err := s.Certify(context.Background(), coord)
	if !errors.Is(err, model.ErrAlreadyCertified) {
		t.Fatalf("expected ErrAlreadyCertified, got %v", err)
	}
	if b.certifySubmits != 0 {
		t.Errorf("re-submitted a terminal certification: %d", b.certifySubmits)
	}
}

func TestCertifySubmits(t *testing.T) {
	b := &fakeBackend{participants: []model.Participant{{UserID: testUser}}}
	s := newTestSession(b, testAppointment(0))

	coord := &model.Coordinate{Latitude: 37.5670, Longitude: 126.9785}
	if err := s.Certify(context.Background(), coord); err != nil {
		t.Fatalf("certify: %v", err)
	}
	if b.certifySubmits != 1 {
		t.Errorf("expected 1 submit, got %d", b.certifySubmits)
	}
	if !s.certified {
		t.Error("local state not updated")
	}
}

func TestActionUsesClock(t *testing.T) {
	b := &fakeBackend{
		cancel:       model.CancelNothing,
		participants: []model.Participant{{UserID: testUser, Agreement: model.AgreementConfirmed}},
	}
	appt := testAppointment(0)
	appt.Date, appt.Time = "2024-06-01", "18:00"
	s := newTestSession(b, appt)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	tests := []struct {
		now  string
		want lifecycle.ActionKind
	}{
		{"2024-06-01 17:52", lifecycle.ActionCertify},
		{"2024-06-01 16:30", lifecycle.ActionCertifyEarly},
		{"2024-06-01 12:00", lifecycle.ActionRequestCancel},
	}
	for _, tt := range tests {
		now, err := time.ParseInLocation("2006-01-02 15:04", tt.now, time.UTC)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		s.now = func() time.Time { return now }
		if got := s.Action(); got.Kind != tt.want {
			t.Errorf("at %s: got %v, want %v", tt.now, got.Kind, tt.want)
		}
	}
}
