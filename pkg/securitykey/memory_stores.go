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

package securitykey

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryChallengeStore is an in-memory implementation of ChallengeStore.
// Suitable for single-process deployments, development, and testing.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*RegistrationChallenge
	now        func() time.Time
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]*RegistrationChallenge),
		now:        time.Now,
	}
}

// Put stores a challenge under its token, overwriting any prior entry.
func (s *MemoryChallengeStore) Put(ctx context.Context, challenge *RegistrationChallenge) error {
	if challenge == nil || challenge.Token == "" {
		return NewError("put challenge", ErrUnexpectedCachedPayload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.Token] = challenge
	return nil
}

// Pull atomically retrieves and removes the challenge for a token. The map
// access and delete happen under one mutex hold, so exactly one concurrent
// caller can win a token.
func (s *MemoryChallengeStore) Pull(ctx context.Context, token string) (*RegistrationChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[token]
	if !ok {
		return nil, ErrExpiredChallenge
	}
	delete(s.challenges, token)

	// Expired entries are treated as absent; they were already unusable.
	if challenge.Expired(s.now()) {
		return nil, ErrExpiredChallenge
	}

	return challenge, nil
}

// Count returns the number of live entries, expired or not.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Cleanup removes expired entries and returns the count removed. Expiry is
// otherwise lazy; calling Cleanup is optional housekeeping.
func (s *MemoryChallengeStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, token)
			removed++
		}
	}
	return removed
}

// Clear removes all entries from the store.
func (s *MemoryChallengeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges = make(map[string]*RegistrationChallenge)
}

// MemoryAccountStore is an in-memory implementation of AccountStore.
// This is intended for development and testing only.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemoryAccountStore creates a new in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]*Account),
	}
}

// GetAccount retrieves an account by its identifier.
func (s *MemoryAccountStore) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrInvalidAccountState
	}
	copied := *account
	return &copied, nil
}

// PutAccount stores or replaces an account.
func (s *MemoryAccountStore) PutAccount(account *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *account
	s.accounts[account.ID] = &copied
}

// Clear removes all accounts from the store.
func (s *MemoryAccountStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]*Account)
}

// storedKey pairs a credential source with its account-facing record. Both
// are written in the same critical section so a reader never observes the
// credential without its name.
type storedKey struct {
	source *PublicKeyCredentialSource
	key    *SecurityKey
}

// MemoryKeyStore is an in-memory implementation of KeyStore.
// This is intended for development and testing only.
type MemoryKeyStore struct {
	mu        sync.RWMutex
	byKeyID   map[string]*storedKey
	byCredID  map[string]string   // hex credential id -> key id
	byAccount map[string][]string // account id -> key ids, insertion order
	now       func() time.Time
}

// NewMemoryKeyStore creates a new in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		byKeyID:   make(map[string]*storedKey),
		byCredID:  make(map[string]string),
		byAccount: make(map[string][]string),
		now:       time.Now,
	}
}

// SaveKey stores a verified credential source with its named SecurityKey
// record and returns the persisted record.
func (s *MemoryKeyStore) SaveKey(ctx context.Context, source *PublicKeyCredentialSource, accountID, name string) (*SecurityKey, error) {
	if source == nil || len(source.CredentialID) == 0 {
		return nil, NewError("save key", ErrPersistenceFailure)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(source.CredentialID)
	if _, ok := s.byCredID[credKey]; ok {
		return nil, ErrDuplicateCredential
	}

	now := s.now().UTC()
	key := &SecurityKey{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		PublicKeyID: EncodePublicKeyID(source.CredentialID),
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.byKeyID[key.ID] = &storedKey{source: source, key: key}
	s.byCredID[credKey] = key.ID
	s.byAccount[accountID] = append(s.byAccount[accountID], key.ID)

	copied := *key
	return &copied, nil
}

// GetKey retrieves one of an account's security keys.
func (s *MemoryKeyStore) GetKey(ctx context.Context, accountID, keyID string) (*SecurityKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byKeyID[keyID]
	if !ok || stored.key.AccountID != accountID {
		return nil, ErrKeyNotFound
	}
	copied := *stored.key
	return &copied, nil
}

// ListKeys returns all security keys registered to an account.
func (s *MemoryKeyStore) ListKeys(ctx context.Context, accountID string) ([]*SecurityKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAccount[accountID]
	keys := make([]*SecurityKey, 0, len(ids))
	for _, id := range ids {
		copied := *s.byKeyID[id].key
		keys = append(keys, &copied)
	}
	return keys, nil
}

// ListCredentialSources returns the credential sources registered to an account.
func (s *MemoryKeyStore) ListCredentialSources(ctx context.Context, accountID string) ([]*PublicKeyCredentialSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAccount[accountID]
	sources := make([]*PublicKeyCredentialSource, 0, len(ids))
	for _, id := range ids {
		copied := *s.byKeyID[id].source
		sources = append(sources, &copied)
	}
	return sources, nil
}

// RenameKey updates the label on a security key and returns the updated record.
func (s *MemoryKeyStore) RenameKey(ctx context.Context, accountID, keyID, name string) (*SecurityKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byKeyID[keyID]
	if !ok || stored.key.AccountID != accountID {
		return nil, ErrKeyNotFound
	}

	stored.key.Name = name
	stored.key.UpdatedAt = s.now().UTC()

	copied := *stored.key
	return &copied, nil
}

// DeleteKey removes a security key and its credential source.
func (s *MemoryKeyStore) DeleteKey(ctx context.Context, accountID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byKeyID[keyID]
	if !ok || stored.key.AccountID != accountID {
		return ErrKeyNotFound
	}

	delete(s.byKeyID, keyID)
	delete(s.byCredID, hex.EncodeToString(stored.source.CredentialID))

	ids := s.byAccount[accountID]
	for i, id := range ids {
		if id == keyID {
			s.byAccount[accountID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	return nil
}

// Count returns the total number of keys in the store.
func (s *MemoryKeyStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKeyID)
}

// Clear removes all keys from the store.
func (s *MemoryKeyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKeyID = make(map[string]*storedKey)
	s.byCredID = make(map[string]string)
	s.byAccount = make(map[string][]string)
}
