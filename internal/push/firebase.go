// Package push delivers appointment notifications through FCM. A nil
// *Service is valid and sends nothing, so the server runs without
// credentials configured.
package push

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type Service struct {
	client *messaging.Client
}

func New(ctx context.Context, credentialsPath string) (*Service, error) {
	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client: %w", err)
	}
	log.Println("push notifications enabled")
	return &Service{client: client}, nil
}

// NotifyProposal tells invitees a new appointment is waiting for them.
func (s *Service) NotifyProposal(ctx context.Context, tokens []string, subject string) {
	s.send(ctx, tokens, "New appointment", fmt.Sprintf("You were invited to %q", subject), "proposal")
}

// NotifyCancellationRequested tells counterparties a cancellation needs an
// answer.
func (s *Service) NotifyCancellationRequested(ctx context.Context, tokens []string, subject string) {
	s.send(ctx, tokens, "Cancellation requested", fmt.Sprintf("Someone wants to cancel %q", subject), "cancellation-request")
}

// NotifyCancellationResolved reports the outcome of a negotiation.
func (s *Service) NotifyCancellationResolved(ctx context.Context, tokens []string, subject string, accepted bool) {
	body := fmt.Sprintf("Cancellation of %q was rejected", subject)
	if accepted {
		body = fmt.Sprintf("%q was cancelled, staked piggy refunded", subject)
	}
	s.send(ctx, tokens, "Cancellation answered", body, "cancellation-resolved")
}

// NotifyCertified tells the other participants someone arrived.
func (s *Service) NotifyCertified(ctx context.Context, tokens []string, nickname, subject string) {
	s.send(ctx, tokens, "Arrival certified", fmt.Sprintf("%s arrived at %q", nickname, subject), "certified")
}

// send is best effort: delivery failures are logged, never propagated.
// Appointment state is the source of truth, not the notification.
func (s *Service) send(ctx context.Context, tokens []string, title, body, kind string) {
	if s == nil || len(tokens) == 0 {
		return
	}
	for _, token := range tokens {
		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: map[string]string{"type": kind},
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					ChannelID:    "piggy_appointments",
					DefaultSound: true,
				},
			},
		}
		if _, err := s.client.Send(ctx, msg); err != nil {
			if messaging.IsRegistrationTokenNotRegistered(err) {
				log.Printf("push: stale device token, skipping")
				continue
			}
			log.Printf("push: send failed: %v", err)
		}
	}
}
