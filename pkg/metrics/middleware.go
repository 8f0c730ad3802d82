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

package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// HTTPMiddleware returns an HTTP middleware that records request metrics.
// It tracks request duration and total requests by method and status code.
//
// Usage:
//
//	router := chi.NewRouter()
//	router.Use(metrics.HTTPMiddleware)
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200
		}

		// Call the next handler
		next.ServeHTTP(wrapper, r)

		// Record metrics
		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapper.statusCode)
		RecordHTTPRequest(r.Method, statusCode, duration)
	})
}

// responseWriter is a wrapper around http.ResponseWriter that captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// CeremonyTimer measures one ceremony phase and records its outcome.
//
// Usage:
//
//	timer := metrics.NewCeremonyTimer(metrics.PhaseFinish)
//	key, err := svc.FinishRegistration(ctx, accountID, token, response, name)
//	timer.Done(err == nil)
type CeremonyTimer struct {
	phase   string
	started time.Time
}

// NewCeremonyTimer starts timing a ceremony phase.
func NewCeremonyTimer(phase string) *CeremonyTimer {
	return &CeremonyTimer{
		phase:   phase,
		started: time.Now(),
	}
}

// Done records the phase with its duration and outcome.
func (ct *CeremonyTimer) Done(success bool) {
	status := StatusError
	if success {
		status = StatusSuccess
	}
	RecordCeremony(ct.phase, status, time.Since(ct.started).Seconds())
}

// Duration returns the time elapsed since the timer was started.
func (ct *CeremonyTimer) Duration() time.Duration {
	return time.Since(ct.started)
}
