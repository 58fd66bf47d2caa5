package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/canvas/chain"
)

const artifactColumns = `id, chain_id, chain_position, status, output_ref, prompt, error_message, created_at`

// CreateArtifact appends a to its chain, assigning the next position.
func (s *Store) CreateArtifact(ctx context.Context, a *chain.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = chain.StatusPending
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", chain.ErrInvalidStatus, a.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chain: begin tx: %w", err)
	}
	defer tx.Rollback()

	var pos int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(chain_position), 0) + 1 FROM render_artifacts WHERE chain_id = ?`, a.ChainID,
	).Scan(&pos); err != nil {
		return fmt.Errorf("chain: next position: %w", err)
	}

	created := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO render_artifacts (`+artifactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ChainID, pos, string(a.Status), a.OutputRef, a.Prompt, a.ErrorMessage, created.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("chain: insert artifact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chain: commit: %w", err)
	}
	a.ChainPosition = pos
	a.CreatedAt = created
	return nil
}

// GetArtifact retrieves a single artifact by ID.
// Returns nil, nil if the artifact doesn't exist.
func (s *Store) GetArtifact(ctx context.Context, id string) (*chain.Artifact, error) {
	a, err := scanArtifact(s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM render_artifacts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chain: get artifact: %w", err)
	}
	return &a, nil
}

// ListArtifacts returns all artifacts of a chain ordered by position.
// Returns an empty slice (not nil) if none found.
func (s *Store) ListArtifacts(ctx context.Context, chainID string) ([]chain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM render_artifacts WHERE chain_id = ? ORDER BY chain_position`, chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []chain.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("chain: scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chain: rows artifacts: %w", err)
	}
	return artifacts, nil
}

// UpdateArtifact sets the status, output and error message of an artifact.
// Returns chain.ErrArtifactNotFound if the artifact doesn't exist.
func (s *Store) UpdateArtifact(ctx context.Context, id string, status chain.Status, outputRef, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", chain.ErrInvalidStatus, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE render_artifacts SET status = ?, output_ref = ?, error_message = ? WHERE id = ?`,
		string(status), outputRef, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("chain: update artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("chain: update artifact: %w", err)
	}
	if n == 0 {
		return chain.ErrArtifactNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (chain.Artifact, error) {
	var (
		a               chain.Artifact
		status, created string
	)
	if err := row.Scan(&a.ID, &a.ChainID, &a.ChainPosition, &status, &a.OutputRef, &a.Prompt, &a.ErrorMessage, &created); err != nil {
		return a, err
	}
	a.Status = chain.Status(status)
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return a, fmt.Errorf("created_at %q: %w", created, err)
	}
	a.CreatedAt = t
	return a, nil
}
