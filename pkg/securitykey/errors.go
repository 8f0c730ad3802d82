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
	"fmt"
)

// Sentinel errors for the registration ceremony.
var (
	// ErrInvalidAccountState is returned when the owning account cannot be
	// resolved during the begin phase.
	ErrInvalidAccountState = errors.New("account cannot be resolved")

	// ErrExpiredChallenge is returned when a registration token is missing,
	// expired, or already consumed. The client must restart the ceremony.
	ErrExpiredChallenge = errors.New("registration challenge missing, expired, or already consumed")

	// ErrUnexpectedCachedPayload is returned when the challenge store yields a
	// value that violates the ceremony's invariants. This indicates a bug or
	// store corruption and is never expected in correct operation.
	ErrUnexpectedCachedPayload = errors.New("unexpected payload pulled from challenge store")

	// ErrAccountMismatch is returned when a registration token is finished by
	// an account other than the one it was issued to. The token is still
	// consumed; nothing is persisted.
	ErrAccountMismatch = errors.New("registration token belongs to a different account")

	// ErrChallengeMismatch is returned when the challenge embedded in the
	// client data does not match the issued challenge byte-for-byte.
	ErrChallengeMismatch = errors.New("client data challenge does not match issued challenge")

	// ErrOriginMismatch is returned when the client data's declared origin or
	// ceremony type does not match the relying party's expectations.
	ErrOriginMismatch = errors.New("client data origin or type does not match relying party")

	// ErrRelyingPartyMismatch is returned when the relying party ID hash in
	// the authenticator data does not match the configured relying party.
	ErrRelyingPartyMismatch = errors.New("authenticator data relying party hash mismatch")

	// ErrAttestationFormatUnsupported is returned when the attestation
	// statement declares a format this relying party does not accept.
	ErrAttestationFormatUnsupported = errors.New("attestation statement format not supported")

	// ErrAttestationSignatureInvalid is returned when the format-specific
	// attestation statement verification fails.
	ErrAttestationSignatureInvalid = errors.New("attestation statement verification failed")

	// ErrDuplicateCredential is returned when the credential id is already
	// registered, for any account.
	ErrDuplicateCredential = errors.New("credential already registered")

	// ErrKeyNotFound is returned when a security key cannot be found.
	ErrKeyNotFound = errors.New("security key not found")

	// ErrPersistenceFailure is returned on a storage-layer fault. Retrying is
	// at the caller's discretion; the ceremony itself is not retried.
	ErrPersistenceFailure = errors.New("failed to persist security key")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("security key service not configured")
)

// CeremonyError wraps an error with the ceremony operation that failed.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsExpiredChallenge returns true if the error indicates the registration
// token was missing, expired, or already consumed.
func IsExpiredChallenge(err error) bool {
	return errors.Is(err, ErrExpiredChallenge)
}

// IsDuplicateCredential returns true if the error indicates the credential is
// already registered.
func IsDuplicateCredential(err error) bool {
	return errors.Is(err, ErrDuplicateCredential)
}

// IsVerificationFailure returns true for any attestation verification
// failure. These are surfaced to clients as a generic registration failure
// but remain distinguishable for logging.
func IsVerificationFailure(err error) bool {
	return errors.Is(err, ErrChallengeMismatch) ||
		errors.Is(err, ErrOriginMismatch) ||
		errors.Is(err, ErrRelyingPartyMismatch) ||
		errors.Is(err, ErrAttestationFormatUnsupported) ||
		errors.Is(err, ErrAttestationSignatureInvalid)
}

// IsAccountMismatch returns true if the error indicates the registration
// token was finished by an account other than the one it was issued to.
func IsAccountMismatch(err error) bool {
	return errors.Is(err, ErrAccountMismatch)
}

// IsKeyNotFound returns true if the error indicates a security key was not found.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
