package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"piggy-appointment-api/internal/model"
)

// row statuses for appointment_cancellations; the per-user CancelState view
// is derived from who is asking.
const (
	rowRequested = "requested"
	rowRejected  = "rejected"
	rowConfirmed = "confirmed"
)

// CancellationStatus maps the single negotiation record (if any) to the
// asking user's view: the requester of an open negotiation sees
// cancellation-request, everyone else sees cancellation-pending.
func (s *Store) CancellationStatus(ctx context.Context, userID, appointmentID string) (model.CancelState, error) {
	var requesterID, status string
	err := s.pool.QueryRow(ctx,
		`SELECT requester_id, status FROM appointment_cancellations WHERE appointment_id = $1`,
		appointmentID,
	).Scan(&requesterID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CancelNothing, nil
	}
	if err != nil {
		return "", err
	}

	switch status {
	case rowRequested:
		if requesterID == userID {
			return model.CancelRequested, nil
		}
		return model.CancelPending, nil
	case rowRejected:
		return model.CancelRejected, nil
	case rowConfirmed:
		return model.CancelConfirmed, nil
	}
	return "", fmt.Errorf("unknown cancellation status %q", status)
}

// RequestCancellation opens a negotiation. At most one record exists per
// appointment; a concurrent request from the counterparty loses the insert
// race and surfaces as a conflict. The advisory re-check before calling
// this lives in the session, this is the database backstop.
func (s *Store) RequestCancellation(ctx context.Context, userID, appointmentID string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO appointment_cancellations (appointment_id, requester_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (appointment_id) DO NOTHING`,
		appointmentID, userID, rowRequested,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCancellationConflict
	}
	return nil
}

// RespondToCancellation settles an open negotiation. Confirming refunds the
// piggy staked by every participant in the same transaction.
func (s *Store) RespondToCancellation(ctx context.Context, userID, appointmentID string, accept bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var requesterID, status string
	err = tx.QueryRow(ctx,
		`SELECT requester_id, status FROM appointment_cancellations
		 WHERE appointment_id = $1 FOR UPDATE`, appointmentID,
	).Scan(&requesterID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrCancellationConflict
	}
	if err != nil {
		return err
	}
	// only an open request from the other party can be answered
	if status != rowRequested || requesterID == userID {
		return model.ErrCancellationConflict
	}

	next := rowRejected
	if accept {
		next = rowConfirmed
	}
	_, err = tx.Exec(ctx,
		`UPDATE appointment_cancellations SET status = $1, updated_at = NOW()
		 WHERE appointment_id = $2`, next, appointmentID,
	)
	if err != nil {
		return err
	}

	if accept {
		_, err = tx.Exec(ctx,
			`UPDATE users u SET piggy = u.piggy + a.deal_piggy_count, updated_at = NOW()
			 FROM appointments a, appointment_participants p
			 WHERE a.id = $1 AND p.appointment_id = a.id
			   AND p.user_id = u.id AND p.piggy_staked`,
			appointmentID,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE appointment_participants SET piggy_staked = false
			 WHERE appointment_id = $1`, appointmentID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
