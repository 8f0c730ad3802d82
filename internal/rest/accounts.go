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
	"strings"

	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
)

// TrustedAccountStore resolves accounts from identifiers supplied by an
// upstream identity layer. The server does not hold its own account
// database; the gateway in front of it has already authenticated the user,
// so any well-formed identifier maps to a valid account.
type TrustedAccountStore struct{}

var _ securitykey.AccountStore = (*TrustedAccountStore)(nil)

// NewTrustedAccountStore creates an account store that accepts any
// non-empty account identifier.
func NewTrustedAccountStore() *TrustedAccountStore {
	return &TrustedAccountStore{}
}

// GetAccount resolves the identifier into an account. The account's
// username and display name default to the identifier; callers can override
// the display name per registration.
func (s *TrustedAccountStore) GetAccount(ctx context.Context, accountID string) (*securitykey.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, securitykey.ErrInvalidAccountState
	}
	return &securitykey.Account{
		ID:          accountID,
		Username:    accountID,
		DisplayName: accountID,
	}, nil
}
