package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful local logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed local logins, any reason.
	MetricLoginFailure
	// MetricLoginLocked counts local logins rejected by the lockout policy.
	MetricLoginLocked
	// MetricLoginRateLimited counts logins denied by the pre-credential throttle.
	MetricLoginRateLimited
	// MetricExternalInitiated counts started external login flows.
	MetricExternalInitiated
	// MetricExternalSuccess counts completed external logins.
	MetricExternalSuccess
	// MetricExternalFailure counts failed external logins, any reason.
	MetricExternalFailure
	// MetricStateRejected counts PKCE state values rejected as unknown, reused, or expired.
	MetricStateRejected
	// MetricExchangeFailure counts failed provider token exchanges.
	MetricExchangeFailure
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricTokenVersionMismatch counts refresh tokens rejected for a stale token version.
	MetricTokenVersionMismatch
	// MetricTenantSwitch counts successful tenant switches.
	MetricTenantSwitch
	// MetricTenantSwitchDenied counts tenant switches outside the membership set.
	MetricTenantSwitchDenied
	// MetricSessionIssued counts every minted AuthSession.
	MetricSessionIssued
	// MetricSessionRevoked counts token version bumps from RevokeSession.
	MetricSessionRevoked

	metricIDCount
)

// Metrics holds the engine's atomic counters. When disabled, all operations
// are no-ops. The write path is allocation-free.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out.Counters[id] = m.counters[id].Load()
	}
	return out
}
