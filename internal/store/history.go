package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const intervalColumns = "id, entity_id, stage_name, started_at, ended_at"

func scanInterval(scanner interface{ Scan(dest ...any) error }) (*StageInterval, error) {
	var (
		iv         StageInterval
		startedRaw string
		endedRaw   sql.NullString
	)
	if err := scanner.Scan(&iv.ID, &iv.EntityID, &iv.StageName, &startedRaw, &endedRaw); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(startedRaw); err == nil {
		iv.StartedAt = t
	}
	iv.EndedAt = parseOptionalTime(endedRaw.String, endedRaw.Valid)
	return &iv, nil
}

// OpenInterval returns the active stage interval for entityID, or nil.
func (s *Store) OpenInterval(ctx context.Context, entityID string) (*StageInterval, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+intervalColumns+` FROM stage_history WHERE entity_id = ? AND ended_at IS NULL`,
		entityID,
	)
	iv, err := scanInterval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open interval: %w", err)
	}
	return iv, nil
}

// ListIntervals returns the stage history of entityID, oldest first.
func (s *Store) ListIntervals(ctx context.Context, entityID string) ([]StageInterval, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+intervalColumns+` FROM stage_history WHERE entity_id = ? ORDER BY id`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}
	defer rows.Close()

	var out []StageInterval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		out = append(out, *iv)
	}
	return out, rows.Err()
}

// CountOpenIntervals returns how many intervals of entityID have no end.
func (s *Store) CountOpenIntervals(ctx context.Context, entityID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM stage_history WHERE entity_id = ? AND ended_at IS NULL`,
		entityID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open intervals: %w", err)
	}
	return n, nil
}
