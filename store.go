package canvas

import (
	"context"
	"errors"
)

var (
	ErrCycleDetected       = errors.New("canvas: cycle detected, graph is not acyclic")
	ErrInvalidNode         = errors.New("canvas: invalid node reference")
	ErrInvalidPort         = errors.New("canvas: invalid port reference")
	ErrIncompatiblePorts   = errors.New("canvas: incompatible port types")
	ErrDuplicateConnection = errors.New("canvas: duplicate connection")
	ErrDuplicateNode       = errors.New("canvas: duplicate node id")
	ErrPayloadKindMismatch = errors.New("canvas: payload does not match node kind")
	ErrUnknownKind         = errors.New("canvas: unknown node kind")
	ErrNodeNotFound        = errors.New("canvas: node not found")
)

// Store defines the contract for persisting and retrieving canvas snapshots.
// Saving is an explicit action; nothing in this package saves on mutation.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Canvases
	SaveCanvas(ctx context.Context, canvasID string, state CanvasState) error
	GetCanvas(ctx context.Context, canvasID string) (*CanvasState, error)
	DeleteCanvas(ctx context.Context, canvasID string) error
}
