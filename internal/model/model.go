package model

import (
	"errors"
	"time"
)

// Precondition failures. Handlers and the session surface these before any
// remote write is attempted, so callers can tell them apart from backend
// errors.
var (
	ErrInsufficientBalance  = errors.New("not enough piggy")
	ErrLocationUnavailable  = errors.New("location unavailable")
	ErrCancellationConflict = errors.New("a cancellation request already exists")
	ErrOutOfRange           = errors.New("too far from the appointment place")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrAlreadyCertified     = errors.New("already certified")
	ErrAlreadyResponded     = errors.New("already responded to this appointment")
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentAccepted  AppointmentStatus = "accepted"
	AppointmentExpired   AppointmentStatus = "expired"
	AppointmentFulfilled AppointmentStatus = "fulfilled"
)

// Terminal reports whether the appointment can no longer change.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentExpired || s == AppointmentFulfilled
}

type AgreementStatus string

const (
	AgreementPending   AgreementStatus = "pending"
	AgreementConfirmed AgreementStatus = "confirmed"
	AgreementRejected  AgreementStatus = "rejected"
)

// CancelState is the per-user view of an appointment's cancellation
// negotiation. The requester of an open negotiation sees CancelRequested;
// every other participant sees the same record as CancelPending.
type CancelState string

const (
	CancelNothing   CancelState = "nothing"
	CancelRequested CancelState = "cancellation-request"
	CancelPending   CancelState = "cancellation-pending"
	CancelRejected  CancelState = "cancellation-rejected"
	CancelConfirmed CancelState = "cancellation-confirm"
)

// Terminal reports whether the negotiation is over. Rejected and confirmed
// records offer no further actions to either party.
func (c CancelState) Terminal() bool {
	return c == CancelRejected || c == CancelConfirmed
}

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Nickname     string
	Piggy        int
	DeviceToken  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Appointment struct {
	ID             string
	Subject        string
	Contents       string
	Address        string
	PlaceName      string
	Coord          Coordinate
	Date           string // "YYYY-MM-DD"
	Time           string // "HH:mm"
	DealPiggyCount int
	Status         AppointmentStatus
	ProposerID     string
	Participants   []Participant
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Participant struct {
	AppointmentID string
	UserID        string
	Nickname      string
	Agreement     AgreementStatus
	PiggyStaked   bool
}
