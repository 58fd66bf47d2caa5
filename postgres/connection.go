package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/canvas"
)

func insertConnection(ctx context.Context, q querier, canvasID string, ord int, c canvas.Connection) error {
	if _, err := q.Exec(ctx,
		`INSERT INTO canvas_connections (canvas_id, id, ord, source_node_id, source_handle, target_node_id, target_handle)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		canvasID, c.ID, ord, c.Source, c.SourceHandle, c.Target, c.TargetHandle,
	); err != nil {
		return fmt.Errorf("canvas: insert connection %s: %w", c.ID, err)
	}
	return nil
}

// listConnections returns the connections of a canvas in saved order.
// Returns an empty slice (not nil) if none found.
func listConnections(ctx context.Context, q querier, canvasID string) ([]canvas.Connection, error) {
	rows, err := q.Query(ctx,
		`SELECT id, source_node_id, source_handle, target_node_id, target_handle
		 FROM canvas_connections WHERE canvas_id = $1 ORDER BY ord`, canvasID)
	if err != nil {
		return nil, fmt.Errorf("canvas: list connections: %w", err)
	}
	defer rows.Close()

	conns := []canvas.Connection{}
	for rows.Next() {
		var c canvas.Connection
		if err := rows.Scan(&c.ID, &c.Source, &c.SourceHandle, &c.Target, &c.TargetHandle); err != nil {
			return nil, fmt.Errorf("canvas: scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("canvas: rows connections: %w", err)
	}

	return conns, nil
}
