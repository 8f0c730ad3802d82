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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeremonyError(t *testing.T) {
	base := errors.New("boom")

	t.Run("with op", func(t *testing.T) {
		err := NewError("pull challenge", base)
		assert.Equal(t, "pull challenge: boom", err.Error())
	})

	t.Run("without op", func(t *testing.T) {
		err := &CeremonyError{Err: base}
		assert.Equal(t, "boom", err.Error())
	})

	t.Run("unwrap", func(t *testing.T) {
		err := NewError("op", base)
		assert.Equal(t, base, errors.Unwrap(err))
	})

	t.Run("is matches wrapped sentinel", func(t *testing.T) {
		err := WrapError("pull challenge", ErrExpiredChallenge)
		assert.True(t, errors.Is(err, ErrExpiredChallenge))
		assert.False(t, errors.Is(err, ErrDuplicateCredential))
	})
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError("op", nil))
	assert.Error(t, WrapError("op", errors.New("x")))
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		helper  func(error) bool
		matches bool
	}{
		{"expired challenge", ErrExpiredChallenge, IsExpiredChallenge, true},
		{"expired challenge wrapped", WrapError("pull", ErrExpiredChallenge), IsExpiredChallenge, true},
		{"expired challenge mismatch", ErrDuplicateCredential, IsExpiredChallenge, false},
		{"duplicate credential", ErrDuplicateCredential, IsDuplicateCredential, true},
		{"key not found", WrapError("get key", ErrKeyNotFound), IsKeyNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.helper(tt.err))
		})
	}
}

func TestIsVerificationFailure(t *testing.T) {
	verificationErrs := []error{
		ErrChallengeMismatch,
		ErrOriginMismatch,
		ErrRelyingPartyMismatch,
		ErrAttestationFormatUnsupported,
		ErrAttestationSignatureInvalid,
	}
	for _, err := range verificationErrs {
		assert.True(t, IsVerificationFailure(err), err.Error())
		assert.True(t, IsVerificationFailure(WrapError("verify", err)), err.Error())
	}

	assert.False(t, IsVerificationFailure(ErrExpiredChallenge))
	assert.False(t, IsVerificationFailure(ErrDuplicateCredential))
	assert.False(t, IsVerificationFailure(ErrPersistenceFailure))
}
