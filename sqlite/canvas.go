package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meikuraledutech/canvas"
)

// SaveCanvas replaces the stored snapshot of canvasID with state.
// The snapshot is validated first; an invalid one is never written.
func (s *Store) SaveCanvas(ctx context.Context, canvasID string, state canvas.CanvasState) error {
	if _, err := canvas.Load(state); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("canvas: begin tx: %w", err)
	}
	defer tx.Rollback()

	v := state.Viewport
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO canvases (id, viewport_x, viewport_y, viewport_zoom, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			viewport_x = excluded.viewport_x,
			viewport_y = excluded.viewport_y,
			viewport_zoom = excluded.viewport_zoom,
			updated_at = excluded.updated_at`,
		canvasID, v.X, v.Y, v.Zoom, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("canvas: upsert canvas: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM canvas_connections WHERE canvas_id = ?`, canvasID); err != nil {
		return fmt.Errorf("canvas: delete connections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM canvas_nodes WHERE canvas_id = ?`, canvasID); err != nil {
		return fmt.Errorf("canvas: delete nodes: %w", err)
	}

	for i, n := range state.Nodes {
		data, err := canvas.EncodePayload(n.Data)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO canvas_nodes (canvas_id, id, ord, type, x, y, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			canvasID, n.ID, i, string(n.Kind), n.Position.X, n.Position.Y, string(data),
		); err != nil {
			return fmt.Errorf("canvas: insert node %s: %w", n.ID, err)
		}
	}
	for i, c := range state.Connections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO canvas_connections (canvas_id, id, ord, source_node_id, source_handle, target_node_id, target_handle)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			canvasID, c.ID, i, c.Source, c.SourceHandle, c.Target, c.TargetHandle,
		); err != nil {
			return fmt.Errorf("canvas: insert connection %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("canvas: commit: %w", err)
	}
	return nil
}

// GetCanvas returns the stored snapshot of canvasID.
// Returns nil, nil if the canvas doesn't exist.
func (s *Store) GetCanvas(ctx context.Context, canvasID string) (*canvas.CanvasState, error) {
	state := &canvas.CanvasState{Nodes: []canvas.Node{}, Connections: []canvas.Connection{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT viewport_x, viewport_y, viewport_zoom FROM canvases WHERE id = ?`, canvasID,
	).Scan(&state.Viewport.X, &state.Viewport.Y, &state.Viewport.Zoom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("canvas: get canvas: %w", err)
	}

	nodes, err := s.db.QueryContext(ctx,
		`SELECT id, type, x, y, data FROM canvas_nodes WHERE canvas_id = ? ORDER BY ord`, canvasID)
	if err != nil {
		return nil, fmt.Errorf("canvas: list nodes: %w", err)
	}
	defer nodes.Close()
	for nodes.Next() {
		var (
			n    canvas.Node
			kind string
			raw  string
		)
		if err := nodes.Scan(&n.ID, &kind, &n.Position.X, &n.Position.Y, &raw); err != nil {
			return nil, fmt.Errorf("canvas: scan node: %w", err)
		}
		n.Kind = canvas.NodeKind(kind)
		if n.Data, err = canvas.DecodePayload(n.Kind, []byte(raw)); err != nil {
			return nil, fmt.Errorf("canvas: node %s: %w", n.ID, err)
		}
		state.Nodes = append(state.Nodes, n)
	}
	if err := nodes.Err(); err != nil {
		return nil, fmt.Errorf("canvas: rows nodes: %w", err)
	}
	nodes.Close()

	conns, err := s.db.QueryContext(ctx,
		`SELECT id, source_node_id, source_handle, target_node_id, target_handle
		 FROM canvas_connections WHERE canvas_id = ? ORDER BY ord`, canvasID)
	if err != nil {
		return nil, fmt.Errorf("canvas: list connections: %w", err)
	}
	defer conns.Close()
	for conns.Next() {
		var c canvas.Connection
		if err := conns.Scan(&c.ID, &c.Source, &c.SourceHandle, &c.Target, &c.TargetHandle); err != nil {
			return nil, fmt.Errorf("canvas: scan connection: %w", err)
		}
		state.Connections = append(state.Connections, c)
	}
	if err := conns.Err(); err != nil {
		return nil, fmt.Errorf("canvas: rows connections: %w", err)
	}

	return state, nil
}

// DeleteCanvas removes a canvas with its nodes and connections.
// No error if the canvas doesn't exist.
func (s *Store) DeleteCanvas(ctx context.Context, canvasID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("canvas: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM canvas_connections WHERE canvas_id = ?`,
		`DELETE FROM canvas_nodes WHERE canvas_id = ?`,
		`DELETE FROM canvases WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, canvasID); err != nil {
			return fmt.Errorf("canvas: delete canvas: %w", err)
		}
	}
	return tx.Commit()
}
