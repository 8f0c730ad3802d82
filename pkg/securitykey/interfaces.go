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
)

// AccountStore resolves accounts for registration ceremonies. Applications
// bring their own account model; only resolution is required here.
type AccountStore interface {
	// GetAccount retrieves an account by its identifier.
	// Returns ErrInvalidAccountState if the account cannot be resolved.
	GetAccount(ctx context.Context, accountID string) (*Account, error)
}

// ChallengeStore holds issued registration challenges under their one-time
// token until they are consumed or expire. Entries are ephemeral and must
// never be persisted durably.
//
// The store is the only shared mutable state in the ceremony, so Pull must be
// atomic: under concurrent callers, exactly one Pull for a token may return
// the challenge.
type ChallengeStore interface {
	// Put stores a challenge under its token with the challenge's TTL.
	// A prior entry for the same token is overwritten; tokens are generated
	// fresh per attempt, so a collision must not corrupt state.
	Put(ctx context.Context, challenge *RegistrationChallenge) error

	// Pull atomically retrieves and removes the challenge for a token. Once
	// returned, no subsequent Pull for the same token returns a value, even
	// under concurrent callers. Returns ErrExpiredChallenge if the token is
	// absent, expired, or already consumed.
	Pull(ctx context.Context, token string) (*RegistrationChallenge, error)
}

// KeyStore persists verified credentials and their account-facing SecurityKey
// records, and serves the pass-through key CRUD operations.
type KeyStore interface {
	// SaveKey durably stores a verified credential source together with its
	// named SecurityKey record and returns the persisted record. The write is
	// effectively atomic: a reader never observes the credential without its
	// name. Returns ErrDuplicateCredential if the credential id is already
	// registered for any account.
	SaveKey(ctx context.Context, source *PublicKeyCredentialSource, accountID, name string) (*SecurityKey, error)

	// GetKey retrieves one of an account's security keys.
	// Returns ErrKeyNotFound if the key does not exist for that account.
	GetKey(ctx context.Context, accountID, keyID string) (*SecurityKey, error)

	// ListKeys returns all security keys registered to an account.
	// Returns an empty slice if the account has none.
	ListKeys(ctx context.Context, accountID string) ([]*SecurityKey, error)

	// ListCredentialSources returns the credential sources registered to an
	// account, used to populate exclusion lists.
	ListCredentialSources(ctx context.Context, accountID string) ([]*PublicKeyCredentialSource, error)

	// RenameKey updates the user-supplied label on a security key and returns
	// the updated record. Returns ErrKeyNotFound if the key does not exist
	// for that account.
	RenameKey(ctx context.Context, accountID, keyID, name string) (*SecurityKey, error)

	// DeleteKey removes a security key and its credential source.
	// Returns ErrKeyNotFound if the key does not exist for that account.
	DeleteKey(ctx context.Context, accountID, keyID string) error
}
