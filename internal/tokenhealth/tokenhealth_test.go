package tokenhealth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllHealthy(t *testing.T) {
	m := NewMonitor(
		Probe{Name: "jira", Check: func(context.Context) error { return nil }},
		Probe{Name: "llm", Check: func(context.Context) error { return nil }},
	)

	snap := m.Check(context.Background())
	assert.True(t, snap.Healthy)
	require.Len(t, snap.Statuses, 2)
	assert.True(t, snap.Statuses[0].OK)
}

func TestRequiredFailureMarksUnhealthy(t *testing.T) {
	m := NewMonitor(
		Probe{Name: "jira", Check: func(context.Context) error { return errors.New("401") }},
	)

	snap := m.Check(context.Background())
	assert.False(t, snap.Healthy)
	assert.Equal(t, "401", snap.Statuses[0].Detail)
}

func TestOptionalFailureStaysHealthy(t *testing.T) {
	m := NewMonitor(
		Probe{Name: "jira", Check: func(context.Context) error { return nil }},
		Probe{Name: "figma", Optional: true, Check: func(context.Context) error { return errors.New("no token") }},
	)

	snap := m.Check(context.Background())
	assert.True(t, snap.Healthy)
	assert.False(t, snap.Statuses[1].OK)
}

func TestSnapshotNilBeforeFirstCheck(t *testing.T) {
	m := NewMonitor()
	assert.Nil(t, m.Snapshot())

	m.Check(context.Background())
	assert.NotNil(t, m.Snapshot())
}

func TestSnapshotAtomicReplace(t *testing.T) {
	healthy := true
	m := NewMonitor(Probe{Name: "jira", Check: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("expired")
	}})

	m.Check(context.Background())
	assert.True(t, m.Snapshot().Healthy)

	healthy = false
	m.Check(context.Background())
	assert.False(t, m.Snapshot().Healthy)
}
