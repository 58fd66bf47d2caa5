package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/canvas"
)

func insertNode(ctx context.Context, q querier, canvasID string, ord int, n canvas.Node) error {
	data, err := canvas.EncodePayload(n.Data)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO canvas_nodes (canvas_id, id, ord, type, x, y, data) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		canvasID, n.ID, ord, string(n.Kind), n.Position.X, n.Position.Y, []byte(data),
	); err != nil {
		return fmt.Errorf("canvas: insert node %s: %w", n.ID, err)
	}
	return nil
}

// listNodes returns the nodes of a canvas in saved order.
// Returns an empty slice (not nil) if none found.
func listNodes(ctx context.Context, q querier, canvasID string) ([]canvas.Node, error) {
	rows, err := q.Query(ctx,
		`SELECT id, type, x, y, data FROM canvas_nodes WHERE canvas_id = $1 ORDER BY ord`, canvasID)
	if err != nil {
		return nil, fmt.Errorf("canvas: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []canvas.Node{}
	for rows.Next() {
		var (
			n    canvas.Node
			kind string
			raw  []byte
		)
		if err := rows.Scan(&n.ID, &kind, &n.Position.X, &n.Position.Y, &raw); err != nil {
			return nil, fmt.Errorf("canvas: scan node: %w", err)
		}
		n.Kind = canvas.NodeKind(kind)
		if n.Data, err = canvas.DecodePayload(n.Kind, raw); err != nil {
			return nil, fmt.Errorf("canvas: node %s: %w", n.ID, err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("canvas: rows nodes: %w", err)
	}

	return nodes, nil
}
