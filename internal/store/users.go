package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const userColumns = "id, display_name, email, phone, created_at"

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		u          User
		email      sql.NullString
		phone      sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&u.ID, &u.DisplayName, &email, &phone, &createdRaw); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Phone = phone.String
	if t, err := parseTimeString(createdRaw); err == nil {
		u.CreatedAt = t
	}
	return &u, nil
}

// UpsertUser inserts u or replaces its contact details.
func (s *Store) UpsertUser(ctx context.Context, u *User) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            display_name = excluded.display_name,
            email = excluded.email,
            phone = excluded.phone`,
		u.ID, u.DisplayName, nullableString(u.Email), nullableString(u.Phone), formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns the user with id, or nil.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
