package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS canvases (
    id            TEXT PRIMARY KEY,
    viewport_x    DOUBLE PRECISION NOT NULL DEFAULT 0,
    viewport_y    DOUBLE PRECISION NOT NULL DEFAULT 0,
    viewport_zoom DOUBLE PRECISION NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS canvas_nodes (
    canvas_id TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
    id        TEXT NOT NULL,
    ord       INTEGER NOT NULL,
    type      TEXT NOT NULL,
    x         DOUBLE PRECISION NOT NULL,
    y         DOUBLE PRECISION NOT NULL,
    data      JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (canvas_id, id)
);

CREATE TABLE IF NOT EXISTS canvas_connections (
    canvas_id      TEXT NOT NULL,
    id             TEXT NOT NULL,
    ord            INTEGER NOT NULL,
    source_node_id TEXT NOT NULL,
    source_handle  TEXT NOT NULL,
    target_node_id TEXT NOT NULL,
    target_handle  TEXT NOT NULL,
    PRIMARY KEY (canvas_id, id),
    FOREIGN KEY (canvas_id, source_node_id) REFERENCES canvas_nodes(canvas_id, id) ON DELETE CASCADE,
    FOREIGN KEY (canvas_id, target_node_id) REFERENCES canvas_nodes(canvas_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS render_artifacts (
    id             TEXT PRIMARY KEY,
    chain_id       TEXT NOT NULL,
    chain_position INTEGER NOT NULL,
    status         TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
    output_ref     TEXT,
    prompt         TEXT NOT NULL DEFAULT '',
    error_message  TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (chain_id, chain_position)
);

CREATE INDEX IF NOT EXISTS idx_render_artifacts_chain ON render_artifacts(chain_id, chain_position);
`

// CreateSchema creates the canvas and render artifact tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops every table created by CreateSchema.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS canvas_connections, canvas_nodes, canvases, render_artifacts CASCADE;`)
	return err
}
