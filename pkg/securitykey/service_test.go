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
	"sync"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service    *Service
	accounts   *MemoryAccountStore
	challenges *MemoryChallengeStore
	keys       *MemoryKeyStore
}

func newServiceFixture(t *testing.T, cfg *Config) *serviceFixture {
	t.Helper()

	if cfg == nil {
		cfg = validTestConfig()
	}

	accounts := NewMemoryAccountStore()
	challenges := NewMemoryChallengeStore()
	keys := NewMemoryKeyStore()

	service, err := NewService(ServiceParams{
		Config:         cfg,
		AccountStore:   accounts,
		ChallengeStore: challenges,
		KeyStore:       keys,
	})
	require.NoError(t, err)

	accounts.PutAccount(&Account{ID: "a1", Username: "sam", DisplayName: "Sam Doe"})

	return &serviceFixture{
		service:    service,
		accounts:   accounts,
		challenges: challenges,
		keys:       keys,
	}
}

// attest runs the client half of the ceremony: decode the challenge from the
// creation options and produce a signed attestation response over it.
func attest(t *testing.T, f *serviceFixture, ceremony *RegistrationCeremony, opts ...MockAuthenticatorOption) *protocol.ParsedCredentialCreationData {
	t.Helper()

	mock, err := NewMockAuthenticator(f.service.Config().RPID, opts...)
	require.NoError(t, err)

	response, err := mock.CreateAttestationResponse([]byte(ceremony.Options.Response.Challenge), testOrigin)
	require.NoError(t, err)
	return response
}

func TestNewServiceValidation(t *testing.T) {
	cfg := validTestConfig()
	accounts := NewMemoryAccountStore()
	challenges := NewMemoryChallengeStore()
	keys := NewMemoryKeyStore()

	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name:    "missing config",
			params:  ServiceParams{AccountStore: accounts, ChallengeStore: challenges, KeyStore: keys},
			wantErr: "config is required",
		},
		{
			name:    "missing account store",
			params:  ServiceParams{Config: cfg, ChallengeStore: challenges, KeyStore: keys},
			wantErr: "account store is required",
		},
		{
			name:    "missing challenge store",
			params:  ServiceParams{Config: cfg, AccountStore: accounts, KeyStore: keys},
			wantErr: "challenge store is required",
		},
		{
			name:    "missing key store",
			params:  ServiceParams{Config: cfg, AccountStore: accounts, ChallengeStore: challenges},
			wantErr: "key store is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config:         &Config{RPDisplayName: "x", RPOrigins: []string{"https://x"}},
				AccountStore:   accounts,
				ChallengeStore: challenges,
				KeyStore:       keys,
			},
			wantErr: "invalid config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistrationCeremonyEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	ceremony, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)
	assert.Len(t, ceremony.Token, DefaultTokenLength)
	require.NotNil(t, ceremony.Options)
	assert.Equal(t, 1, f.challenges.Count())

	response := attest(t, f, ceremony)

	key, err := f.service.FinishRegistration(ctx, "a1", ceremony.Token, response, "laptop")
	require.NoError(t, err)

	assert.NotEmpty(t, key.ID)
	assert.Equal(t, "a1", key.AccountID)
	assert.Equal(t, "laptop", key.Name)
	assert.Equal(t, EncodePublicKeyID(response.RawID), key.PublicKeyID)

	// The token is spent.
	assert.Equal(t, 0, f.challenges.Count())

	keys, err := f.service.ListSecurityKeys(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
}

func TestBeginRegistrationUnknownAccount(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.BeginRegistration(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrInvalidAccountState)
	assert.Equal(t, 0, f.challenges.Count())
}

func TestFinishRegistrationEmptyToken(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.FinishRegistration(context.Background(), "a1", "", nil, "laptop")
	assert.ErrorIs(t, err, ErrExpiredChallenge)
}

func TestFinishRegistrationUnknownToken(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.FinishRegistration(context.Background(), "a1", "never-issued", nil, "laptop")
	assert.ErrorIs(t, err, ErrExpiredChallenge)
}

func TestFinishRegistrationTokenConsumedOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	ceremony, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)

	// A failing verification still burns the token.
	_, err = f.service.FinishRegistration(ctx, "a1", ceremony.Token, nil, "laptop")
	assert.ErrorIs(t, err, ErrAttestationSignatureInvalid)

	response := attest(t, f, ceremony)
	_, err = f.service.FinishRegistration(ctx, "a1", ceremony.Token, response, "laptop")
	assert.ErrorIs(t, err, ErrExpiredChallenge)
}

func TestFinishRegistrationTokenSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	ceremony, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)
	response := attest(t, f, ceremony)

	_, err = f.service.FinishRegistration(ctx, "a1", ceremony.Token, response, "laptop")
	require.NoError(t, err)

	// Replaying the same token and response fails closed.
	_, err = f.service.FinishRegistration(ctx, "a1", ceremony.Token, response, "laptop")
	assert.ErrorIs(t, err, ErrExpiredChallenge)
}

func TestFinishRegistrationAccountMismatch(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)
	f.accounts.PutAccount(&Account{ID: "a2", Username: "kim"})

	ceremony, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)
	response := attest(t, f, ceremony)

	// A token issued to a1 cannot be finished by a2, and nothing is
	// persisted for either account.
	_, err = f.service.FinishRegistration(ctx, "a2", ceremony.Token, response, "laptop")
	assert.ErrorIs(t, err, ErrAccountMismatch)

	for _, account := range []string{"a1", "a2"} {
		keys, err := f.service.ListSecurityKeys(ctx, account)
		require.NoError(t, err)
		assert.Empty(t, keys)
	}

	// The mismatch still burned the token.
	_, err = f.service.FinishRegistration(ctx, "a1", ceremony.Token, response, "laptop")
	assert.ErrorIs(t, err, ErrExpiredChallenge)
}

func TestFinishRegistrationCorruptCachedEntry(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	// An entry whose cached session lost its challenge, as a bad store
	// round-trip would produce.
	require.NoError(t, f.challenges.Put(ctx, testChallenge("corrupt", DefaultChallengeTTL)))

	_, err := f.service.FinishRegistration(ctx, "a1", "corrupt", nil, "laptop")
	assert.ErrorIs(t, err, ErrUnexpectedCachedPayload)
}

func TestFinishRegistrationDuplicateCredential(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)
	f.accounts.PutAccount(&Account{ID: "a2", Username: "kim"})

	credID := []byte("shared-authenticator-cred-id-0001")

	first, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)
	_, err = f.service.FinishRegistration(ctx, "a1", first.Token, attest(t, f, first, WithCredentialID(credID)), "laptop")
	require.NoError(t, err)

	// The same physical authenticator presented under a different account.
	second, err := f.service.BeginRegistration(ctx, "a2", "")
	require.NoError(t, err)
	_, err = f.service.FinishRegistration(ctx, "a2", second.Token, attest(t, f, second, WithCredentialID(credID)), "laptop")
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	keys, err := f.service.ListSecurityKeys(ctx, "a2")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestConcurrentCeremoniesIndependent(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	first, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)
	second, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, 2, f.challenges.Count())

	// Finishing the newer ceremony does not disturb the older one.
	_, err = f.service.FinishRegistration(ctx, "a1", second.Token, attest(t, f, second), "newer")
	require.NoError(t, err)

	_, err = f.service.FinishRegistration(ctx, "a1", first.Token, attest(t, f, first), "older")
	require.NoError(t, err)

	keys, err := f.service.ListSecurityKeys(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestConcurrentBeginRegistration(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	const callers = 8
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(n int) {
			defer wg.Done()
			ceremony, err := f.service.BeginRegistration(ctx, "a1", "")
			assert.NoError(t, err)
			if ceremony != nil {
				tokens[n] = ceremony.Token
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, callers)
	for _, token := range tokens {
		require.NotEmpty(t, token)
		assert.False(t, seen[token], "token issued twice")
		seen[token] = true
	}
	assert.Equal(t, callers, f.challenges.Count())
}

func TestSecurityKeyCRUD(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, nil)

	ceremony, err := f.service.BeginRegistration(ctx, "a1", "")
	require.NoError(t, err)
	key, err := f.service.FinishRegistration(ctx, "a1", ceremony.Token, attest(t, f, ceremony), "laptop")
	require.NoError(t, err)

	got, err := f.service.GetSecurityKey(ctx, "a1", key.ID)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKeyID, got.PublicKeyID)

	renamed, err := f.service.RenameSecurityKey(ctx, "a1", key.ID, "desk key")
	require.NoError(t, err)
	assert.Equal(t, "desk key", renamed.Name)

	require.NoError(t, f.service.DeleteSecurityKey(ctx, "a1", key.ID))

	_, err = f.service.GetSecurityKey(ctx, "a1", key.ID)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestUnconfiguredService(t *testing.T) {
	ctx := context.Background()
	s := &Service{}

	_, err := s.BeginRegistration(ctx, "a1", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = s.FinishRegistration(ctx, "a1", "t", nil, "n")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = s.ListSecurityKeys(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, s.DeleteSecurityKey(ctx, "a1", "k"), ErrNotConfigured)
}
