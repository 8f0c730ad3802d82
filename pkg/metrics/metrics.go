// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-securitykey.
//
// go-securitykey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for go-securitykey
// operations. It exposes ceremony counters, performance histograms, failure
// counters, and resource gauges to enable monitoring of registration server
// health and performance.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all security key metrics
	Namespace = "securitykey"

	// Label names
	LabelPhase      = "phase"
	LabelStatus     = "status"
	LabelReason     = "reason"
	LabelStore      = "store"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony phases
	PhaseBegin  = "begin"
	PhaseFinish = "finish"

	// Failure reasons
	ReasonExpiredChallenge  = "expired_challenge"
	ReasonCachedPayload     = "cached_payload"
	ReasonChallengeMismatch = "challenge_mismatch"
	ReasonOriginMismatch    = "origin_mismatch"
	ReasonRelyingParty      = "relying_party_mismatch"
	ReasonFormatUnsupported = "format_unsupported"
	ReasonSignatureInvalid  = "signature_invalid"
	ReasonDuplicate         = "duplicate_credential"
	ReasonPersistence       = "persistence_failure"
	ReasonAccount           = "invalid_account"
	ReasonAccountMismatch   = "account_mismatch"
	ReasonInternal          = "internal"
)

var (
	// CeremoniesTotal tracks registration ceremony phases by status.
	// Use RecordCeremony to increment this counter with the appropriate labels.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of registration ceremony phases by status",
		},
		[]string{LabelPhase, LabelStatus},
	)

	// CeremonyDuration tracks the duration of ceremony phases in seconds.
	// Buckets are optimized for challenge issuance and attestation
	// verification latencies.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of registration ceremony phases in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelPhase},
	)

	// FailuresTotal tracks ceremony failures by phase and reason.
	// Reasons should be specific (use Reason* constants).
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failures_total",
			Help:      "Total number of ceremony failures by phase and reason",
		},
		[]string{LabelPhase, LabelReason},
	)

	// ChallengesActive tracks the number of issued challenges awaiting
	// completion. Updated by the challenge store's housekeeping loop.
	ChallengesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "challenges_active",
			Help:      "Number of issued registration challenges awaiting completion",
		},
	)

	// KeysTotal tracks the total number of registered security keys per store.
	KeysTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keys_total",
			Help:      "Total number of registered security keys per store",
		},
		[]string{LabelStore},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// Goroutines tracks the current number of goroutines in the server.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	// Updated periodically by the resource collector.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC stop-the-world pauses.
	// Updated periodically by the resource collector.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordCeremony records a ceremony phase with its duration and status.
// This is the primary function for tracking ceremony metrics.
//
// Parameters:
//   - phase: The ceremony phase (use Phase* constants)
//   - status: The outcome (use Status* constants)
//   - duration: The phase duration in seconds
//
// Example:
//
//	start := time.Now()
//	_, err := svc.BeginRegistration(ctx, accountID, "")
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    RecordCeremony(PhaseBegin, StatusError, duration)
//	} else {
//	    RecordCeremony(PhaseBegin, StatusSuccess, duration)
//	}
func RecordCeremony(phase, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(phase, status).Inc()
	CeremonyDuration.WithLabelValues(phase).Observe(duration)
}

// RecordFailure records a ceremony failure with the gate that rejected it.
//
// Parameters:
//   - phase: The ceremony phase during which the failure occurred
//   - reason: A specific failure reason (use Reason* constants)
//
// Example:
//
//	if securitykey.IsExpiredChallenge(err) {
//	    RecordFailure(PhaseFinish, ReasonExpiredChallenge)
//	}
func RecordFailure(phase, reason string) {
	if !enabled.Load() {
		return
	}
	FailuresTotal.WithLabelValues(phase, reason).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
//
// Parameters:
//   - method: The HTTP method (GET, POST, etc.)
//   - statusCode: The HTTP status code as a string
//   - duration: The request duration in seconds
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// SetChallengesActive sets the number of pending registration challenges.
func SetChallengesActive(count float64) {
	if !enabled.Load() {
		return
	}
	ChallengesActive.Set(count)
}

// SetKeysTotal sets the total number of registered keys for a store.
func SetKeysTotal(store string, count float64) {
	if !enabled.Load() {
		return
	}
	KeysTotal.WithLabelValues(store).Set(count)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
