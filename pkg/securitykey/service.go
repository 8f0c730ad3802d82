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
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Service orchestrates the two-phase registration ceremony and the
// pass-through security key CRUD operations.
//
// The ceremony moves through Issued, Consumed, Verified, and Persisted, with
// any failure terminal: a consumed token is never restored, so a failed
// verification forces the client to restart from BeginRegistration.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	accounts   AccountStore
	challenges ChallengeStore
	keys       KeyStore
	issuer     *ChallengeIssuer
	verifier   *AttestationVerifier
	configured bool
}

// ServiceParams contains dependencies for creating a registration service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// AccountStore resolves owning accounts (required).
	AccountStore AccountStore

	// ChallengeStore holds issued challenges until consumed (required).
	ChallengeStore ChallengeStore

	// KeyStore is the durable credential persistence layer (required).
	KeyStore KeyStore
}

// RegistrationCeremony is the begin-phase result handed to the client: the
// one-time token and the credential creation options to sign over.
type RegistrationCeremony struct {
	Token   string                       `json:"token"`
	Options *protocol.CredentialCreation `json:"options"`
}

// NewService creates a new registration service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.AccountStore == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.KeyStore == nil {
		return nil, fmt.Errorf("key store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		accounts:   params.AccountStore,
		challenges: params.ChallengeStore,
		keys:       params.KeyStore,
		issuer:     NewChallengeIssuer(wa, params.Config, params.AccountStore, params.KeyStore),
		verifier:   NewAttestationVerifier(wa, params.Config),
		configured: true,
	}, nil
}

// BeginRegistration starts the registration ceremony for an account. It
// issues a fresh challenge, stores it under a new one-time token, and returns
// the token together with the credential creation options.
func (s *Service) BeginRegistration(ctx context.Context, accountID, displayName string) (*RegistrationCeremony, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	challenge, err := s.issuer.Issue(ctx, accountID, displayName)
	if err != nil {
		return nil, err
	}

	if err := s.challenges.Put(ctx, challenge); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return &RegistrationCeremony{
		Token:   challenge.Token,
		Options: challenge.Options,
	}, nil
}

// FinishRegistration completes the ceremony for the account that began it.
// The token is consumed atomically before anything else: whatever happens
// downstream, it cannot be replayed, and a failed verification forces a
// fresh BeginRegistration. A token issued to a different account is rejected
// before verification, so nothing is ever persisted for it. On success the
// persisted SecurityKey is returned.
func (s *Service) FinishRegistration(ctx context.Context, accountID, token string, response *protocol.ParsedCredentialCreationData, name string) (*SecurityKey, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if token == "" {
		return nil, NewError("pull challenge", ErrExpiredChallenge)
	}

	challenge, err := s.challenges.Pull(ctx, token)
	if err != nil {
		return nil, WrapError("pull challenge", err)
	}

	// Typed store entries make a wrong-type retrieval unreachable, but a
	// store implementation can still hand back a corrupt entry.
	if challenge == nil || challenge.Token != token || challenge.Session.Challenge == "" {
		return nil, NewError("validate cached challenge", ErrUnexpectedCachedPayload)
	}

	if challenge.AccountID != accountID {
		return nil, NewError("bind account", ErrAccountMismatch)
	}

	account, err := s.accounts.GetAccount(ctx, challenge.AccountID)
	if err != nil {
		return nil, WrapError("resolve account", err)
	}

	source, err := s.verifier.Verify(account, challenge, response)
	if err != nil {
		return nil, err
	}

	key, err := s.keys.SaveKey(ctx, source, account.ID, name)
	if err != nil {
		if IsDuplicateCredential(err) {
			return nil, WrapError("persist security key", err)
		}
		return nil, &CeremonyError{Op: "persist security key", Err: fmt.Errorf("%w: %v", ErrPersistenceFailure, err)}
	}

	return key, nil
}

// ListSecurityKeys returns all security keys registered to an account.
func (s *Service) ListSecurityKeys(ctx context.Context, accountID string) ([]*SecurityKey, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	return s.keys.ListKeys(ctx, accountID)
}

// GetSecurityKey retrieves one of an account's security keys.
func (s *Service) GetSecurityKey(ctx context.Context, accountID, keyID string) (*SecurityKey, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	return s.keys.GetKey(ctx, accountID, keyID)
}

// RenameSecurityKey updates the label on a security key.
func (s *Service) RenameSecurityKey(ctx context.Context, accountID, keyID, name string) (*SecurityKey, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	return s.keys.RenameKey(ctx, accountID, keyID, name)
}

// DeleteSecurityKey removes a security key from an account.
func (s *Service) DeleteSecurityKey(ctx context.Context, accountID, keyID string) error {
	if !s.configured {
		return ErrNotConfigured
	}

	return s.keys.DeleteKey(ctx, accountID, keyID)
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}
