package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"piggy-appointment-api/internal/model"
)

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO appointments
		   (id, subject, contents, address, place_name, latitude, longitude,
		    appointment_date, appointment_time, deal_piggy_count, status, proposer_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.Subject, a.Contents, a.Address, a.PlaceName,
		a.Coord.Latitude, a.Coord.Longitude,
		a.Date, a.Time, a.DealPiggyCount, a.Status, a.ProposerID,
	)
	if err != nil {
		return err
	}

	// one row per invitee; the proposer starts confirmed
	for _, p := range a.Participants {
		agreement := model.AgreementPending
		if p.UserID == a.ProposerID {
			agreement = model.AgreementConfirmed
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO appointment_participants (appointment_id, user_id, nickname, agreement_status)
			 SELECT $1, id, nickname, $3 FROM users WHERE id = $2`,
			a.ID, p.UserID, agreement,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("unknown participant %s", p.UserID)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) ListAppointments(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.subject, a.contents, a.address, a.place_name,
		        a.latitude, a.longitude, a.appointment_date, a.appointment_time,
		        a.deal_piggy_count, a.status, a.proposer_id, a.created_at, a.updated_at
		 FROM appointments a
		 JOIN appointment_participants p ON p.appointment_id = a.id
		 WHERE p.user_id = $1
		 ORDER BY a.appointment_date, a.appointment_time`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(
			&a.ID, &a.Subject, &a.Contents, &a.Address, &a.PlaceName,
			&a.Coord.Latitude, &a.Coord.Longitude, &a.Date, &a.Time,
			&a.DealPiggyCount, &a.Status, &a.ProposerID, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, subject, contents, address, place_name, latitude, longitude,
		        appointment_date, appointment_time, deal_piggy_count, status,
		        proposer_id, created_at, updated_at
		 FROM appointments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Subject, &a.Contents, &a.Address, &a.PlaceName,
		&a.Coord.Latitude, &a.Coord.Longitude, &a.Date, &a.Time,
		&a.DealPiggyCount, &a.Status, &a.ProposerID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Participants, err = s.Participants(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) Participants(ctx context.Context, appointmentID string) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT appointment_id, user_id, nickname, agreement_status, piggy_staked
		 FROM appointment_participants WHERE appointment_id = $1`, appointmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.AppointmentID, &p.UserID, &p.Nickname, &p.Agreement, &p.PiggyStaked); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Participant looks up the acting user's own row. A missing row is an
// explicit error rather than an empty agreement status.
func (s *Store) Participant(ctx context.Context, appointmentID, userID string) (*model.Participant, error) {
	p := &model.Participant{}
	err := s.pool.QueryRow(ctx,
		`SELECT appointment_id, user_id, nickname, agreement_status, piggy_staked
		 FROM appointment_participants WHERE appointment_id = $1 AND user_id = $2`,
		appointmentID, userID,
	).Scan(&p.AppointmentID, &p.UserID, &p.Nickname, &p.Agreement, &p.PiggyStaked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RespondToAcceptance records the user's accept/reject answer to a pending
// proposal. Accepting stakes the appointment's piggy cost inside the same
// transaction; the balance is checked against the row locked here, not a
// cached value. Once every participant has confirmed, the appointment
// flips to accepted.
func (s *Store) RespondToAcceptance(ctx context.Context, userID, appointmentID string, accept bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var cost int
	err = tx.QueryRow(ctx,
		`SELECT deal_piggy_count FROM appointments WHERE id = $1 FOR UPDATE`,
		appointmentID,
	).Scan(&cost)
	if err != nil {
		return err
	}

	// lock the caller's row and refuse replays: only a pending participant
	// may answer, so a repeated accept can never stake twice
	var agreement model.AgreementStatus
	err = tx.QueryRow(ctx,
		`SELECT agreement_status FROM appointment_participants
		 WHERE appointment_id = $1 AND user_id = $2 FOR UPDATE`,
		appointmentID, userID,
	).Scan(&agreement)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrParticipantNotFound
	}
	if err != nil {
		return err
	}
	if agreement != model.AgreementPending {
		return model.ErrAlreadyResponded
	}

	if !accept {
		_, err := tx.Exec(ctx,
			`UPDATE appointment_participants SET agreement_status = $1
			 WHERE appointment_id = $2 AND user_id = $3`,
			model.AgreementRejected, appointmentID, userID,
		)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	var balance int
	err = tx.QueryRow(ctx,
		`SELECT piggy FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&balance)
	if err != nil {
		return err
	}
	if cost > balance {
		return model.ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET piggy = piggy - $1, updated_at = NOW() WHERE id = $2`,
		cost, userID,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE appointment_participants SET agreement_status = $1, piggy_staked = true
		 WHERE appointment_id = $2 AND user_id = $3`,
		model.AgreementConfirmed, appointmentID, userID,
	)
	if err != nil {
		return err
	}

	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment_participants
		 WHERE appointment_id = $1 AND agreement_status != $2`,
		appointmentID, model.AgreementConfirmed,
	).Scan(&remaining)
	if err != nil {
		return err
	}
	if remaining == 0 {
		_, err = tx.Exec(ctx,
			`UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`,
			model.AppointmentAccepted, appointmentID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
