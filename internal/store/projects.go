// Package store holds the three keyed stores shared by the loops and the
// approval callbacks: the dedup ledger (Postgres), the pending-review
// store and the followup set (Redis).
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Projects is the dedup ledger: the set of project ids that reached a
// terminal outcome. Once an id is in here, no loop or callback may bid on
// it again. Rows are durable at commit, so a crash between a bid and its
// notification never causes a duplicate bid on restart.
type Projects struct {
	pool *pgxpool.Pool
}

// NewProjects constructs the ledger over an existing pool.
func NewProjects(pool *pgxpool.Pool) *Projects {
	return &Projects{pool: pool}
}

// Init creates the backing table when missing.
func (s *Projects) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS bid_projects (
		   project_id TEXT PRIMARY KEY,
		   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		 )`)
	if err != nil {
		return fmt.Errorf("create bid_projects: %w", err)
	}
	return nil
}

// Exists reports whether the project id has reached a terminal outcome.
func (s *Projects) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bid_projects WHERE project_id = $1)`, id,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("bid_projects exists: %w", err)
	}
	return found, nil
}

// Insert records the id, idempotently. Returns true when the row was new.
func (s *Projects) Insert(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO bid_projects (project_id) VALUES ($1)
		 ON CONFLICT (project_id) DO NOTHING`, id)
	if err != nil {
		return false, fmt.Errorf("bid_projects insert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an id. Manual-correction path only.
func (s *Projects) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM bid_projects WHERE project_id = $1`, id); err != nil {
		return fmt.Errorf("bid_projects delete: %w", err)
	}
	return nil
}

// All returns every recorded project id, oldest first. Consumed by the
// followup sweep.
func (s *Projects) All(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT project_id FROM bid_projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("bid_projects query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("bid_projects scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
