package lifecycle_test

import (
	"testing"

	"piggy-appointment-api/internal/lifecycle"
	"piggy-appointment-api/internal/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		in   lifecycle.Inputs
		want lifecycle.ActionKind
	}{
		{"expired is informational", lifecycle.Inputs{Status: model.AppointmentExpired}, lifecycle.ActionNone},
		{"fulfilled is informational", lifecycle.Inputs{Status: model.AppointmentFulfilled}, lifecycle.ActionNone},

		{"pending, already confirmed", lifecycle.Inputs{
			Status: model.AppointmentPending, MyAgreement: model.AgreementConfirmed,
		}, lifecycle.ActionAcceptDone},
		{"pending, not answered", lifecycle.Inputs{
			Status: model.AppointmentPending, MyAgreement: model.AgreementPending,
		}, lifecycle.ActionRespondProposal},
		{"pending beats open cancellation", lifecycle.Inputs{
			Status: model.AppointmentPending, Cancel: model.CancelPending,
		}, lifecycle.ActionRespondProposal},

		{"accepted, certified", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Certified: true,
		}, lifecycle.ActionCertified},
		{"accepted, ten minute window", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Window: lifecycle.WindowTenMinutes,
		}, lifecycle.ActionCertify},
		{"accepted, two hour window", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Window: lifecycle.WindowTwoHours,
		}, lifecycle.ActionCertifyEarly},
		{"accepted, no window", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Window: lifecycle.WindowNone,
		}, lifecycle.ActionRequestCancel},
		{"accepted, past appointment", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Window: lifecycle.WindowExpired,
		}, lifecycle.ActionRequestCancel},
		{"certified wins over window", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelNothing,
			Window: lifecycle.WindowTenMinutes, Certified: true,
		}, lifecycle.ActionCertified},

		{"own request open", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelRequested,
		}, lifecycle.ActionCancelRequested},
		{"request rejected", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelRejected,
		}, lifecycle.ActionCancelRejected},
		{"cancellation confirmed", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelConfirmed,
		}, lifecycle.ActionCancelDone},
		{"counterparty request open", lifecycle.Inputs{
			Status: model.AppointmentAccepted, Cancel: model.CancelPending,
		}, lifecycle.ActionRespondCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lifecycle.Resolve(tt.in)
			if got.Kind != tt.want {
				t.Errorf("got %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestResolveEnabled(t *testing.T) {
	// exactly the actionable kinds are enabled
	enabled := map[lifecycle.ActionKind]bool{
		lifecycle.ActionRespondProposal: true,
		lifecycle.ActionCertify:         true,
		lifecycle.ActionRequestCancel:   true,
		lifecycle.ActionRespondCancel:   true,
	}

	inputs := []lifecycle.Inputs{
		{Status: model.AppointmentPending},
		{Status: model.AppointmentPending, MyAgreement: model.AgreementConfirmed},
		{Status: model.AppointmentAccepted, Cancel: model.CancelNothing},
		{Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Window: lifecycle.WindowTenMinutes},
		{Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Window: lifecycle.WindowTwoHours},
		{Status: model.AppointmentAccepted, Cancel: model.CancelNothing, Certified: true},
		{Status: model.AppointmentAccepted, Cancel: model.CancelRequested},
		{Status: model.AppointmentAccepted, Cancel: model.CancelRejected},
		{Status: model.AppointmentAccepted, Cancel: model.CancelConfirmed},
		{Status: model.AppointmentAccepted, Cancel: model.CancelPending},
	}

	for _, in := range inputs {
		a := lifecycle.Resolve(in)
		if a.Enabled != enabled[a.Kind] {
			t.Errorf("%+v: kind %v enabled=%v", in, a.Kind, a.Enabled)
		}
	}
}

func TestResolvePairs(t *testing.T) {
	proposal := lifecycle.Resolve(lifecycle.Inputs{Status: model.AppointmentPending})
	if !proposal.Pair {
		t.Error("proposal response should render as a pair")
	}
	cancel := lifecycle.Resolve(lifecycle.Inputs{Status: model.AppointmentAccepted, Cancel: model.CancelPending})
	if !cancel.Pair {
		t.Error("cancellation response should render as a pair")
	}
	single := lifecycle.Resolve(lifecycle.Inputs{Status: model.AppointmentAccepted, Cancel: model.CancelNothing})
	if single.Pair {
		t.Error("cancel request should be a single button")
	}
}
