package store

import (
	"context"

	"piggy-appointment-api/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, nickname, piggy) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Email, u.PasswordHash, u.Nickname, u.Piggy,
	)
	return err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, nickname, piggy, device_token, created_at, updated_at
		 FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Nickname, &u.Piggy, &u.DeviceToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, nickname, piggy, device_token, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Nickname, &u.Piggy, &u.DeviceToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Balance returns the user's current piggy count. Callers that gate actions
// on it must fetch at submit time, not reuse a cached value.
func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	var piggy int
	err := s.pool.QueryRow(ctx,
		`SELECT piggy FROM users WHERE id = $1`, userID,
	).Scan(&piggy)
	return piggy, err
}

func (s *Store) UpdateDeviceToken(ctx context.Context, userID, token string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET device_token = $1, updated_at = NOW() WHERE id = $2`,
		token, userID,
	)
	return err
}

// DeviceTokens returns the push tokens of every participant except the
// acting user. Empty tokens are skipped.
func (s *Store) DeviceTokens(ctx context.Context, appointmentID, excludeUserID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.device_token
		 FROM appointment_participants p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.appointment_id = $1 AND p.user_id != $2 AND u.device_token != ''`,
		appointmentID, excludeUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}
