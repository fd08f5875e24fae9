// Package tokenhealth validates the configured credentials against their
// services and caches the result in an atomically replaced snapshot, so
// health endpoints never block on live upstream calls.
package tokenhealth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Probe checks one credential against its service.
type Probe struct {
	Name     string
	Optional bool // absence of an optional credential is not unhealthy
	Check    func(ctx context.Context) error
}

// Status is the outcome of one probe.
type Status struct {
	Source   string    `json:"source"`
	OK       bool      `json:"ok"`
	Optional bool      `json:"optional"`
	Detail   string    `json:"detail,omitempty"`
	Checked  time.Time `json:"checked"`
}

// Snapshot is the result of one full check pass.
type Snapshot struct {
	Healthy  bool      `json:"healthy"`
	Statuses []Status  `json:"statuses"`
	Taken    time.Time `json:"taken"`
}

// Monitor runs probes and holds the latest snapshot.
type Monitor struct {
	probes []Probe
	snap   atomic.Pointer[Snapshot]
}

// NewMonitor creates a monitor over the given probes. No check runs until
// Check is called.
func NewMonitor(probes ...Probe) *Monitor {
	return &Monitor{probes: probes}
}

// Check runs every probe sequentially and replaces the cached snapshot.
// A failing required probe marks the snapshot unhealthy; failing optional
// probes are reported but do not.
func (m *Monitor) Check(ctx context.Context) Snapshot {
	snap := Snapshot{Healthy: true, Taken: time.Now()}

	for _, probe := range m.probes {
		status := Status{Source: probe.Name, Optional: probe.Optional, OK: true, Checked: time.Now()}
		if err := probe.Check(ctx); err != nil {
			status.OK = false
			status.Detail = err.Error()
			if !probe.Optional {
				snap.Healthy = false
			}
			log.Warn().Str("source", probe.Name).Err(err).Msg("credential check failed")
		}
		snap.Statuses = append(snap.Statuses, status)
	}

	m.snap.Store(&snap)
	return snap
}

// Snapshot returns the latest cached snapshot, or nil before the first
// check.
func (m *Monitor) Snapshot() *Snapshot {
	return m.snap.Load()
}

// Run refreshes the snapshot on an interval until the context is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
