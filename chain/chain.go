// Package chain derives versions over the ordered render artifacts of a
// chain and reconciles artifacts left in flight by an interrupted client.
//
// Version numbers are derived, never stored: the version of an artifact is
// its 1-based index among the chain's completed artifacts that have output,
// ordered by ChainPosition. Failed and pending artifacts keep their position
// slot but take no version, so a version is not ChainPosition+1.
package chain

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"
)

var (
	ErrArtifactNotFound = errors.New("chain: artifact not found")
	ErrInvalidStatus    = errors.New("chain: invalid artifact status")
)

// Status is the lifecycle state of a render artifact.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Artifact is one generated render as read from storage.
type Artifact struct {
	ID            string    `json:"id"`
	ChainID       string    `json:"chain_id"`
	ChainPosition int       `json:"chain_position"`
	Status        Status    `json:"status"`
	OutputRef     string    `json:"output_ref,omitempty"`
	Prompt        string    `json:"prompt,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Versioned reports whether the artifact takes a version number.
func (a Artifact) Versioned() bool {
	return a.Status == StatusCompleted && a.OutputRef != ""
}

// Source is the refresh capability: it returns the current artifacts of a chain.
// Nothing in this package calls it on its own schedule.
type Source interface {
	ListArtifacts(ctx context.Context, chainID string) ([]Artifact, error)
}

// Store is a Source that also records artifacts.
type Store interface {
	Source

	// CreateArtifact assigns an id when empty and the next chain position,
	// and stores a as pending unless it carries a status.
	CreateArtifact(ctx context.Context, a *Artifact) error
	// GetArtifact returns nil, nil when the artifact does not exist.
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	// UpdateArtifact sets status, output and error message.
	// Returns ErrArtifactNotFound if the artifact doesn't exist.
	UpdateArtifact(ctx context.Context, id string, status Status, outputRef, errMsg string) error
}

// Completed returns the versioned artifacts of a ordered by ChainPosition.
func Completed(a []Artifact) []Artifact {
	out := make([]Artifact, 0, len(a))
	for _, art := range a {
		if art.Versioned() {
			out = append(out, art)
		}
	}
	slices.SortStableFunc(out, func(x, y Artifact) int { return cmp.Compare(x.ChainPosition, y.ChainPosition) })
	return out
}

// Latest returns the completed artifact with the highest ChainPosition.
func Latest(a []Artifact) (Artifact, bool) {
	var (
		best  Artifact
		found bool
	)
	for _, art := range a {
		if !art.Versioned() {
			continue
		}
		if !found || art.ChainPosition > best.ChainPosition {
			best, found = art, true
		}
	}
	return best, found
}

// ByVersion returns the artifact with 1-based version n.
func ByVersion(a []Artifact, n int) (Artifact, bool) {
	done := Completed(a)
	if n < 1 || n > len(done) {
		return Artifact{}, false
	}
	return done[n-1], true
}

// VersionOf returns the version number of art within a, matching by id.
// It reports false when art is not in a or art itself takes no version, even
// if a holds a newer completed copy of it.
func VersionOf(art Artifact, a []Artifact) (int, bool) {
	if !art.Versioned() {
		return 0, false
	}
	for i, c := range Completed(a) {
		if c.ID == art.ID {
			return i + 1, true
		}
	}
	return 0, false
}

// Version pairs an artifact with its derived version number.
type Version struct {
	Number   int      `json:"version"`
	Artifact Artifact `json:"artifact"`
}

// Versions returns every completed artifact with its version number.
func Versions(a []Artifact) []Version {
	done := Completed(a)
	out := make([]Version, len(done))
	for i, art := range done {
		out[i] = Version{Number: i + 1, Artifact: art}
	}
	return out
}

// InFlight returns the pending or processing artifact with the highest
// ChainPosition. Artifacts with an unknown status are never in flight.
func InFlight(a []Artifact) (Artifact, bool) {
	var (
		best  Artifact
		found bool
	)
	for _, art := range a {
		if art.Status != StatusPending && art.Status != StatusProcessing {
			continue
		}
		if !found || art.ChainPosition > best.ChainPosition {
			best, found = art, true
		}
	}
	return best, found
}

// NextPosition returns the position a new artifact appended to a takes.
// Positions start at 1.
func NextPosition(a []Artifact) int {
	next := 1
	for _, art := range a {
		if art.ChainPosition >= next {
			next = art.ChainPosition + 1
		}
	}
	return next
}
