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

package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-securitykey/internal/config"
	"github.com/jeremyhahn/go-securitykey/pkg/metrics"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey/sqlite"
)

// Stores bundles the storage implementations backing the registration
// service. Challenges are always held in memory; the credential store is
// selected by configuration.
type Stores struct {
	backend    string
	challenges *securitykey.MemoryChallengeStore
	keys       securitykey.KeyStore

	// countKeys reports the number of persisted credentials for the
	// key inventory gauge. Nil when the backend cannot count cheaply.
	countKeys func(ctx context.Context) (int, error)

	// closer releases the underlying database, if any.
	closer func() error
}

// NewStores builds the storage layer from configuration. Supported backends
// are "memory" and "sqlite".
func NewStores(cfg config.StorageConfig) (*Stores, error) {
	stores := &Stores{
		backend:    cfg.Backend,
		challenges: securitykey.NewMemoryChallengeStore(),
	}

	switch cfg.Backend {
	case "memory":
		keys := securitykey.NewMemoryKeyStore()
		stores.keys = keys
		stores.countKeys = func(ctx context.Context) (int, error) {
			return keys.Count(), nil
		}

	case "sqlite":
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		stores.keys = store
		stores.countKeys = store.Count
		stores.closer = store.Close

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}

	return stores, nil
}

// ChallengeStore returns the ephemeral challenge store.
func (s *Stores) ChallengeStore() securitykey.ChallengeStore {
	return s.challenges
}

// KeyStore returns the credential persistence layer.
func (s *Stores) KeyStore() securitykey.KeyStore {
	return s.keys
}

// Backend returns the configured backend name.
func (s *Stores) Backend() string {
	return s.backend
}

// StartCleanupRoutine starts a background goroutine that periodically prunes
// expired challenges and refreshes the storage gauges. Call the returned
// cancel function to stop the routine.
func (s *Stores) StartCleanupRoutine(ctx context.Context, interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refreshGauges(ctx)
			}
		}
	}()

	return cancel
}

// refreshGauges prunes expired challenges and publishes the current counts.
func (s *Stores) refreshGauges(ctx context.Context) {
	s.challenges.Cleanup()
	metrics.SetChallengesActive(float64(s.challenges.Count()))

	if s.countKeys != nil {
		if count, err := s.countKeys(ctx); err == nil {
			metrics.SetKeysTotal(s.backend, float64(count))
		}
	}
}

// Close releases the underlying storage resources.
func (s *Stores) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
