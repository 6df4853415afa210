package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entityColumns = "id, entity_type, name, stage, owner_id, created_at, updated_at"

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*Entity, error) {
	var (
		e          Entity
		owner      sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&e.ID, &e.Type, &e.Name, &e.Stage, &owner, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	e.OwnerID = owner.String
	if t, err := parseTimeString(createdRaw); err == nil {
		e.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		e.UpdatedAt = t
	}
	return &e, nil
}

// CreateEntity inserts e and opens its first stage interval at e.CreatedAt
// in one transaction.
func (s *Store) CreateEntity(ctx context.Context, e *Entity) error {
	if e == nil {
		return errors.New("create entity: nil entity")
	}
	created := formatTime(e.CreatedAt)
	updated := created
	if !e.UpdatedAt.IsZero() {
		updated = formatTime(e.UpdatedAt)
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Type, e.Name, e.Stage, nullableString(e.OwnerID), created, updated,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stage_history (entity_id, stage_name, started_at) VALUES (?, ?, ?)`,
			e.ID, e.Stage, created,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// GetEntity returns the entity with id, or nil when it does not exist.
func (s *Store) GetEntity(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

// ListEntities returns entities, optionally filtered by type, oldest first.
func (s *Store) ListEntities(ctx context.Context, entityType string) ([]*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities`
	var args []any
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AdvanceStage moves entityID from stage from to stage to at time at. The
// entity update is conditioned on the observed stage and the history close is
// conditioned on ended_at IS NULL, so a concurrent writer makes the call fail
// with ErrStageConflict instead of opening a second interval.
func (s *Store) AdvanceStage(ctx context.Context, entityID, from, to string, at time.Time) (*StageInterval, error) {
	stamp := formatTime(at)
	var opened StageInterval
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE entities SET stage = ?, updated_at = ? WHERE id = ? AND stage = ?`,
			to, stamp, entityID, from,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrStageConflict
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE stage_history SET ended_at = ? WHERE entity_id = ? AND ended_at IS NULL`,
			stamp, entityID,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return ErrStageConflict
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO stage_history (entity_id, stage_name, started_at) VALUES (?, ?, ?)`,
			entityID, to, stamp,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrStageConflict
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		opened = StageInterval{ID: id, EntityID: entityID, StageName: to, StartedAt: at.UTC()}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStageConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("advance stage: %w", err)
	}
	return &opened, nil
}
