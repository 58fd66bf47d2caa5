package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/canvas/chain"
)

const artifactColumns = `id, chain_id, chain_position, status, COALESCE(output_ref, ''), prompt, COALESCE(error_message, ''), created_at`

// CreateArtifact appends a to its chain. The chain is locked for the
// duration of the transaction so concurrent creates get distinct positions.
func (s *PGStore) CreateArtifact(ctx context.Context, a *chain.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = chain.StatusPending
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", chain.ErrInvalidStatus, a.Status)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chain: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.ChainID); err != nil {
		return fmt.Errorf("chain: lock chain: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO render_artifacts (id, chain_id, chain_position, status, output_ref, prompt, error_message)
		SELECT $1, $2, COALESCE(MAX(chain_position), 0) + 1, $3, NULLIF($4, ''), $5, NULLIF($6, '')
		FROM render_artifacts WHERE chain_id = $2
		RETURNING chain_position, created_at`,
		a.ID, a.ChainID, string(a.Status), a.OutputRef, a.Prompt, a.ErrorMessage,
	).Scan(&a.ChainPosition, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("chain: insert artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chain: commit: %w", err)
	}
	return nil
}

// GetArtifact retrieves a single artifact by ID.
// Returns nil, nil if the artifact doesn't exist.
func (s *PGStore) GetArtifact(ctx context.Context, id string) (*chain.Artifact, error) {
	a, err := scanArtifact(s.db.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM render_artifacts WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("chain: get artifact: %w", err)
	}
	return &a, nil
}

// ListArtifacts returns all artifacts of a chain ordered by position.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListArtifacts(ctx context.Context, chainID string) ([]chain.Artifact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+artifactColumns+` FROM render_artifacts WHERE chain_id = $1 ORDER BY chain_position`, chainID)
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
func (s *PGStore) UpdateArtifact(ctx context.Context, id string, status chain.Status, outputRef, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", chain.ErrInvalidStatus, status)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE render_artifacts SET status = $2, output_ref = NULLIF($3, ''), error_message = NULLIF($4, '') WHERE id = $1`,
		id, string(status), outputRef, errMsg,
	)
	if err != nil {
		return fmt.Errorf("chain: update artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return chain.ErrArtifactNotFound
	}
	return nil
}

func scanArtifact(row pgx.Row) (chain.Artifact, error) {
	var (
		a      chain.Artifact
		status string
	)
	err := row.Scan(&a.ID, &a.ChainID, &a.ChainPosition, &status, &a.OutputRef, &a.Prompt, &a.ErrorMessage, &a.CreatedAt)
	a.Status = chain.Status(status)
	return a, err
}
