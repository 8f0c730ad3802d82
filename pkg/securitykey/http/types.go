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

package http

import (
	"encoding/json"
	"time"
)

// HeaderAccountID is the header the default account resolver reads.
const HeaderAccountID = "X-Account-Id"

// BeginRegistrationRequest is the request body for starting a ceremony.
type BeginRegistrationRequest struct {
	// DisplayName overrides the account's display name in the authenticator
	// prompt (optional).
	DisplayName string `json:"display_name,omitempty"`
}

// FinishRegistrationRequest is the request body for completing a ceremony.
type FinishRegistrationRequest struct {
	// Token is the one-time registration token from the begin step (required).
	Token string `json:"token"`

	// Name is the user-facing label for the new key (required).
	Name string `json:"name"`

	// Registration is the raw credential creation response produced by
	// navigator.credentials.create (required).
	Registration json.RawMessage `json:"registration"`
}

// RenameKeyRequest is the request body for renaming a security key.
type RenameKeyRequest struct {
	// Name is the new label (required).
	Name string `json:"name"`
}

// SecurityKeyResponse is the JSON shape of a registered security key. The
// credential itself is never exposed, only its encoded identifier.
type SecurityKeyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PublicKeyID string    `json:"public_key_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListKeysResponse is the response body for the list endpoint.
type ListKeysResponse struct {
	Keys []SecurityKeyResponse `json:"keys"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeChallengeExpired    = "challenge_expired"
	ErrorCodeVerificationFailed  = "verification_failed"
	ErrorCodeDuplicateCredential = "duplicate_credential"
	ErrorCodeAccountNotFound     = "account_not_found"
	ErrorCodeKeyNotFound         = "key_not_found"
	ErrorCodeInternalError       = "internal_error"
)
