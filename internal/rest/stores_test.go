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
	"path/filepath"
	"testing"
	"time"

	"github.com/jeremyhahn/go-securitykey/internal/config"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
)

func TestNewStores_Memory(t *testing.T) {
	stores, err := NewStores(config.StorageConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("NewStores() error = %v, want nil", err)
	}
	defer stores.Close()

	if stores.Backend() != "memory" {
		t.Errorf("Backend() = %v, want memory", stores.Backend())
	}
	if stores.ChallengeStore() == nil {
		t.Error("ChallengeStore() = nil")
	}
	if _, ok := stores.KeyStore().(*securitykey.MemoryKeyStore); !ok {
		t.Errorf("KeyStore() = %T, want *securitykey.MemoryKeyStore", stores.KeyStore())
	}

	count, err := stores.countKeys(context.Background())
	if err != nil {
		t.Fatalf("countKeys() error = %v, want nil", err)
	}
	if count != 0 {
		t.Errorf("countKeys() = %d, want 0", count)
	}
}

func TestNewStores_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")

	stores, err := NewStores(config.StorageConfig{Backend: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("NewStores() error = %v, want nil", err)
	}

	if stores.Backend() != "sqlite" {
		t.Errorf("Backend() = %v, want sqlite", stores.Backend())
	}

	count, err := stores.countKeys(context.Background())
	if err != nil {
		t.Fatalf("countKeys() error = %v, want nil", err)
	}
	if count != 0 {
		t.Errorf("countKeys() = %d, want 0", count)
	}

	if err := stores.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestNewStores_UnknownBackend(t *testing.T) {
	_, err := NewStores(config.StorageConfig{Backend: "redis"})
	if err == nil {
		t.Fatal("NewStores() error = nil, want error for unknown backend")
	}
}

func TestStores_CleanupRoutineStops(t *testing.T) {
	stores, err := NewStores(config.StorageConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("NewStores() error = %v, want nil", err)
	}
	defer stores.Close()

	cancel := stores.StartCleanupRoutine(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
}

func TestTrustedAccountStore(t *testing.T) {
	store := NewTrustedAccountStore()
	ctx := context.Background()

	account, err := store.GetAccount(ctx, "acct-42")
	if err != nil {
		t.Fatalf("GetAccount() error = %v, want nil", err)
	}
	if account.ID != "acct-42" {
		t.Errorf("account.ID = %v, want acct-42", account.ID)
	}
	if account.Username != "acct-42" {
		t.Errorf("account.Username = %v, want acct-42", account.Username)
	}

	if _, err := store.GetAccount(ctx, ""); err != securitykey.ErrInvalidAccountState {
		t.Errorf("GetAccount(\"\") error = %v, want ErrInvalidAccountState", err)
	}
	if _, err := store.GetAccount(ctx, "   "); err != securitykey.ErrInvalidAccountState {
		t.Errorf("GetAccount(blank) error = %v, want ErrInvalidAccountState", err)
	}
}
