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
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// ChallengeIssuer builds the cryptographic challenge and credential creation
// parameters for one registration attempt. Issue has no side effects; storing
// the challenge is the orchestrator's job.
type ChallengeIssuer struct {
	webauthn *webauthn.WebAuthn
	config   *Config
	accounts AccountStore
	keys     KeyStore
	now      func() time.Time
}

// NewChallengeIssuer creates a challenge issuer for the given relying party.
func NewChallengeIssuer(wa *webauthn.WebAuthn, config *Config, accounts AccountStore, keys KeyStore) *ChallengeIssuer {
	return &ChallengeIssuer{
		webauthn: wa,
		config:   config,
		accounts: accounts,
		keys:     keys,
		now:      time.Now,
	}
}

// Issue resolves the account, collects its registered credential ids for the
// exclusion list, and builds a fresh challenge bound to a new one-time token.
// Returns ErrInvalidAccountState if the account cannot be resolved.
func (i *ChallengeIssuer) Issue(ctx context.Context, accountID, displayName string) (*RegistrationChallenge, error) {
	account, err := i.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, WrapError("resolve account", err)
	}

	// Existing credentials populate the exclusion list so the same
	// authenticator cannot be registered twice.
	sources, err := i.keys.ListCredentialSources(ctx, account.ID)
	if err != nil {
		return nil, WrapError("list credential sources", err)
	}

	reg := &registrant{account: account, displayName: displayName, sources: sources}

	var opts []webauthn.RegistrationOption
	if len(sources) > 0 {
		exclusions := make([]protocol.CredentialDescriptor, len(sources))
		for n, s := range sources {
			exclusions[n] = s.Descriptor()
		}
		opts = append(opts, webauthn.WithExclusions(exclusions))
	}

	creation, session, err := i.webauthn.BeginRegistration(reg, opts...)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	token, err := NewRegistrationToken(i.config.TokenLength)
	if err != nil {
		return nil, WrapError("generate registration token", err)
	}

	now := i.now().UTC()
	expires := now.Add(i.config.ChallengeTTL)

	// The token TTL governs the whole ceremony; align the WebAuthn session
	// expiry with it so a live token is never rejected as a stale session.
	session.Expires = expires

	return &RegistrationChallenge{
		Token:     token,
		AccountID: account.ID,
		Session:   *session,
		Options:   creation,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}

// NewRegistrationToken generates a cryptographically random URL-safe token of
// the given length.
func NewRegistrationToken(length int) (string, error) {
	if length <= 0 {
		length = DefaultTokenLength
	}
	raw := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token[:length], nil
}
