package lifecycle

import (
	"piggy-appointment-api/internal/model"
)

// ActionKind is the closed set of actions the UI can offer on an
// appointment. Exactly one is derived from any combination of inputs.
type ActionKind int

const (
	// ActionNone: the appointment is expired or fulfilled, informational only.
	ActionNone ActionKind = iota
	// ActionAcceptDone: this user already confirmed the proposal.
	ActionAcceptDone
	// ActionRespondProposal: accept/reject pair for a pending proposal.
	ActionRespondProposal
	// ActionCertified: arrival already certified, terminal.
	ActionCertified
	// ActionCertify: inside the ten-minute window, certification enabled.
	ActionCertify
	// ActionCertifyEarly: inside the two-hour window, too early to certify.
	ActionCertifyEarly
	// ActionRequestCancel: no negotiation open, user may request one.
	ActionRequestCancel
	// ActionCancelRequested: this user's own request is awaiting an answer.
	ActionCancelRequested
	// ActionCancelRejected: the counterparty rejected the request, terminal.
	ActionCancelRejected
	// ActionCancelDone: the cancellation was confirmed, terminal.
	ActionCancelDone
	// ActionRespondCancel: accept/reject pair for the counterparty's request.
	ActionRespondCancel
)

// Action is the derived UI value handed to the presentation layer: a label,
// whether it is pressable, and whether it renders as an accept/reject pair.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Label   string     `json:"label"`
	Enabled bool       `json:"enabled"`
	Pair    bool       `json:"pair"`
}

// Inputs are everything Resolve looks at. Balance is deliberately absent:
// the insufficient-piggy check runs at submit time against the freshest
// fetched balance, never against a snapshot.
type Inputs struct {
	Status      model.AppointmentStatus
	MyAgreement model.AgreementStatus
	Cancel      model.CancelState
	Window      Window
	Certified   bool
}

// Resolve maps the inputs to exactly one action, in the priority order of
// the appointment lifecycle: terminal status first, then the proposal
// handshake, then certification gated by the time window, then the
// cancellation negotiation.
func Resolve(in Inputs) Action {
	if in.Status.Terminal() {
		return Action{Kind: ActionNone}
	}

	if in.Status == model.AppointmentPending {
		if in.MyAgreement == model.AgreementConfirmed {
			return Action{Kind: ActionAcceptDone, Label: "Accepted"}
		}
		return Action{Kind: ActionRespondProposal, Label: "Accept appointment", Enabled: true, Pair: true}
	}

	switch in.Cancel {
	case model.CancelNothing:
		if in.Certified {
			return Action{Kind: ActionCertified, Label: "Certified"}
		}
		switch in.Window {
		case WindowTenMinutes:
			return Action{Kind: ActionCertify, Label: "Certify arrival", Enabled: true}
		case WindowTwoHours:
			return Action{Kind: ActionCertifyEarly, Label: "Certify arrival"}
		}
		return Action{Kind: ActionRequestCancel, Label: "Request cancellation", Enabled: true}
	case model.CancelRequested:
		return Action{Kind: ActionCancelRequested, Label: "Request sent"}
	case model.CancelRejected:
		return Action{Kind: ActionCancelRejected, Label: "Cancellation rejected"}
	case model.CancelConfirmed:
		return Action{Kind: ActionCancelDone, Label: "Cancelled"}
	case model.CancelPending:
		return Action{Kind: ActionRespondCancel, Label: "Accept cancellation", Enabled: true, Pair: true}
	}

	return Action{Kind: ActionNone}
}
