package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"piggy-appointment-api/internal/geo"
	"piggy-appointment-api/internal/model"
)

// CertificationStatus reports whether the user has certified arrival for
// the appointment. No row means not certified.
func (s *Store) CertificationStatus(ctx context.Context, userID, appointmentID string) (bool, error) {
	var certified bool
	err := s.pool.QueryRow(ctx,
		`SELECT certified FROM appointment_certifications
		 WHERE appointment_id = $1 AND user_id = $2`,
		appointmentID, userID,
	).Scan(&certified)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return certified, nil
}

// SubmitCertification marks arrival once the user's coordinate is within
// the certification radius of the appointment place. Certification is
// monotonic: a second submit for an already-certified pair changes nothing.
func (s *Store) SubmitCertification(ctx context.Context, userID, appointmentID string, place, user model.Coordinate) error {
	if !geo.WithinCertifyRadius(place, user) {
		return model.ErrOutOfRange
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointment_certifications (appointment_id, user_id, certified)
		 VALUES ($1, $2, true)
		 ON CONFLICT (appointment_id, user_id) DO UPDATE SET certified = true`,
		appointmentID, userID,
	)
	return err
}
