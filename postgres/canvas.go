package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/canvas"
)

// SaveCanvas stores a full snapshot (nodes + connections + viewport) in one
// transaction, replacing whatever was stored under canvasID.
// The snapshot is validated first; an invalid one is never written.
func (s *PGStore) SaveCanvas(ctx context.Context, canvasID string, state canvas.CanvasState) error {
	if _, err := canvas.Load(state); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("canvas: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	v := state.Viewport
	if _, err := tx.Exec(ctx, `
		INSERT INTO canvases (id, viewport_x, viewport_y, viewport_zoom) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			viewport_x = EXCLUDED.viewport_x,
			viewport_y = EXCLUDED.viewport_y,
			viewport_zoom = EXCLUDED.viewport_zoom,
			updated_at = NOW()`,
		canvasID, v.X, v.Y, v.Zoom,
	); err != nil {
		return fmt.Errorf("canvas: upsert canvas: %w", err)
	}

	// Replace semantics: connections go first, they reference nodes.
	if _, err := tx.Exec(ctx, `DELETE FROM canvas_connections WHERE canvas_id = $1`, canvasID); err != nil {
		return fmt.Errorf("canvas: delete connections: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM canvas_nodes WHERE canvas_id = $1`, canvasID); err != nil {
		return fmt.Errorf("canvas: delete nodes: %w", err)
	}

	for i, n := range state.Nodes {
		if err := insertNode(ctx, tx, canvasID, i, n); err != nil {
			return err
		}
	}
	for i, c := range state.Connections {
		if err := insertConnection(ctx, tx, canvasID, i, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("canvas: commit: %w", err)
	}
	return nil
}

// GetCanvas retrieves a full snapshot by canvas id.
// Returns nil, nil if the canvas doesn't exist.
func (s *PGStore) GetCanvas(ctx context.Context, canvasID string) (*canvas.CanvasState, error) {
	state := &canvas.CanvasState{}
	err := s.db.QueryRow(ctx,
		`SELECT viewport_x, viewport_y, viewport_zoom FROM canvases WHERE id = $1`, canvasID,
	).Scan(&state.Viewport.X, &state.Viewport.Y, &state.Viewport.Zoom)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("canvas: get canvas: %w", err)
	}

	if state.Nodes, err = listNodes(ctx, s.db, canvasID); err != nil {
		return nil, err
	}
	if state.Connections, err = listConnections(ctx, s.db, canvasID); err != nil {
		return nil, err
	}
	return state, nil
}

// DeleteCanvas removes a canvas with its nodes and connections.
// No error if the canvas doesn't exist.
func (s *PGStore) DeleteCanvas(ctx context.Context, canvasID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("canvas: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM canvas_connections WHERE canvas_id = $1`, canvasID); err != nil {
		return fmt.Errorf("canvas: delete connections: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM canvas_nodes WHERE canvas_id = $1`, canvasID); err != nil {
		return fmt.Errorf("canvas: delete nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM canvases WHERE id = $1`, canvasID); err != nil {
		return fmt.Errorf("canvas: delete canvas: %w", err)
	}

	return tx.Commit(ctx)
}
