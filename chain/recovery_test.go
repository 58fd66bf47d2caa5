package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	artifacts map[string][]Artifact
	err       error
	calls     int
}

func (f *fakeSource) ListArtifacts(_ context.Context, chainID string) ([]Artifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.artifacts[chainID], nil
}

func TestMonitorRecovers(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, Idle, m.State())

	processing := []Artifact{art("r1", 1, StatusCompleted), art("r2", 2, StatusProcessing)}
	assert.Equal(t, EventArmed, m.Observe("chain-1", processing))
	assert.Equal(t, Recovering, m.State())
	id, ok := m.Tracking()
	require.True(t, ok)
	assert.Equal(t, "r2", id)

	// same snapshot again: no second transition
	assert.Equal(t, EventNone, m.Observe("chain-1", processing))
	assert.Equal(t, Recovering, m.State())

	done := []Artifact{art("r1", 1, StatusCompleted), art("r2", 2, StatusCompleted)}
	assert.Equal(t, EventRecovered, m.Observe("chain-1", done))
	assert.Equal(t, Idle, m.State())

	// exactly one success signal
	assert.Equal(t, EventNone, m.Observe("chain-1", done))
	_, ok = m.Tracking()
	assert.False(t, ok)
}

func TestMonitorFailed(t *testing.T) {
	m := NewMonitor()
	require.Equal(t, EventArmed, m.Observe("c", []Artifact{art("r1", 1, StatusPending)}))
	assert.Equal(t, EventFailed, m.Observe("c", []Artifact{art("r1", 1, StatusFailed)}))
	assert.Equal(t, Idle, m.State())
}

func TestMonitorTracksMostRecent(t *testing.T) {
	m := NewMonitor()
	m.Observe("c", []Artifact{art("r3", 3, StatusProcessing), art("r5", 5, StatusPending), art("r4", 4, StatusProcessing)})
	id, _ := m.Tracking()
	assert.Equal(t, "r5", id)

	// another in-flight artifact finishing does not resolve the tracked one
	assert.Equal(t, EventNone, m.Observe("c", []Artifact{art("r3", 3, StatusCompleted), art("r5", 5, StatusProcessing)}))
	assert.Equal(t, Recovering, m.State())
}

func TestMonitorNoRearmWhileRecovering(t *testing.T) {
	m := NewMonitor()
	m.Observe("c", []Artifact{art("r1", 1, StatusProcessing)})

	// a newer in-flight artifact appears; the monitor keeps tracking r1
	assert.Equal(t, EventNone, m.Observe("c", []Artifact{art("r1", 1, StatusProcessing), art("r2", 2, StatusPending)}))
	id, _ := m.Tracking()
	assert.Equal(t, "r1", id)
}

func TestMonitorChainChangeResets(t *testing.T) {
	m := NewMonitor()
	m.Observe("a", []Artifact{art("r1", 1, StatusProcessing)})
	require.Equal(t, Recovering, m.State())

	assert.Equal(t, EventNone, m.Observe("b", []Artifact{art("x", 1, StatusCompleted)}))
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, "b", m.ChainID())

	assert.Equal(t, EventArmed, m.Observe("a", []Artifact{art("r1", 1, StatusProcessing)}))
}

func TestMonitorIdleWithoutInFlight(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, EventNone, m.Observe("c", []Artifact{art("r1", 1, StatusCompleted)}))
	assert.Equal(t, EventNone, m.Observe("c", nil))
	assert.Equal(t, Idle, m.State())
}

func TestMonitorIgnoresUnknownStatus(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, EventNone, m.Observe("c", []Artifact{art("r1", 1, Status(""))}))
	assert.Equal(t, EventNone, m.Observe("c", []Artifact{art("r1", 1, Status("queued"))}))
	assert.Equal(t, Idle, m.State())
	_, ok := m.Tracking()
	assert.False(t, ok)
}

func TestSync(t *testing.T) {
	src := &fakeSource{artifacts: map[string][]Artifact{
		"c": {art("r1", 1, StatusProcessing)},
	}}
	m := NewMonitor()

	ev, got, err := Sync(context.Background(), src, m, "c")
	require.NoError(t, err)
	assert.Equal(t, EventArmed, ev)
	assert.Len(t, got, 1)

	src.artifacts["c"] = []Artifact{art("r1", 1, StatusCompleted)}
	ev, _, err = Sync(context.Background(), src, m, "c")
	require.NoError(t, err)
	assert.Equal(t, EventRecovered, ev)
	assert.Equal(t, 2, src.calls)

	src.err = errors.New("offline")
	_, _, err = Sync(context.Background(), src, m, "c")
	assert.ErrorContains(t, err, "offline")
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "recovering", Recovering.String())
	assert.Equal(t, "recovered", EventRecovered.String())
}
