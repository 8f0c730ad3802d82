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
	"encoding/base64"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Account identifies the account registering a new security key. The ID is
// used as the WebAuthn user handle; Username and DisplayName populate the
// user entry in the credential creation options.
type Account struct {
	// ID is the stable account identifier.
	ID string `json:"id"`

	// Username is the account's login name.
	Username string `json:"username"`

	// DisplayName is the account's human-readable name.
	DisplayName string `json:"display_name"`
}

// RegistrationChallenge is one issued registration attempt, held by the
// challenge store for the lifetime of the ceremony. It is a typed store entry
// so a wrong-type retrieval is unreachable by construction; it is never
// persisted durably.
type RegistrationChallenge struct {
	// Token is the opaque one-time token the challenge is stored under.
	Token string `json:"token"`

	// AccountID is the account the challenge was issued for.
	AccountID string `json:"account_id"`

	// Session is the WebAuthn session data bound to the challenge: the
	// challenge bytes, user handle, and ceremony expiry.
	Session webauthn.SessionData `json:"session"`

	// Options are the credential creation options handed to the client.
	Options *protocol.CredentialCreation `json:"options"`

	// IssuedAt is when the challenge was created.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is when the challenge becomes unavailable, consumed or not.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its TTL at the given instant.
func (c *RegistrationChallenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Challenge returns the raw challenge bytes the client must sign over.
func (c *RegistrationChallenge) Challenge() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(c.Session.Challenge)
}

// PublicKeyCredentialSource is the verified, durable result of a successful
// registration: the public key material and metadata representing one
// registered authenticator.
type PublicKeyCredentialSource struct {
	// CredentialID is the credential identifier assigned by the authenticator.
	// Globally unique across all accounts.
	CredentialID []byte `json:"credential_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// SignatureCounter is the authenticator's signature counter, starting at
	// the value reported during registration.
	SignatureCounter uint32 `json:"signature_counter"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transports lists the transports supported by the authenticator.
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`

	// Flags contains the authenticator capability flags.
	Flags webauthn.CredentialFlags `json:"flags"`

	// AAGUID is the authenticator's model identifier.
	AAGUID []byte `json:"aaguid"`

	// OwnerUserHandle is the WebAuthn user handle of the owning account.
	OwnerUserHandle []byte `json:"owner_user_handle"`

	// CreatedAt is when the credential was verified and persisted.
	CreatedAt time.Time `json:"created_at"`
}

// ToWebAuthn converts the credential source to the go-webauthn library's
// Credential type, e.g. for exclusion lists.
func (s *PublicKeyCredentialSource) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              s.CredentialID,
		PublicKey:       s.PublicKey,
		AttestationType: s.AttestationType,
		Transport:       s.Transports,
		Flags:           s.Flags,
		Authenticator: webauthn.Authenticator{
			AAGUID:    s.AAGUID,
			SignCount: s.SignatureCounter,
		},
	}
}

// Descriptor returns the credential descriptor for exclusion lists.
func (s *PublicKeyCredentialSource) Descriptor() protocol.CredentialDescriptor {
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: s.CredentialID,
		Transport:    s.Transports,
	}
}

// FromWebAuthnCredential creates a PublicKeyCredentialSource from a verified
// go-webauthn credential owned by the given user handle.
func FromWebAuthnCredential(ownerUserHandle []byte, wc *webauthn.Credential) *PublicKeyCredentialSource {
	return &PublicKeyCredentialSource{
		CredentialID:     wc.ID,
		PublicKey:        wc.PublicKey,
		SignatureCounter: wc.Authenticator.SignCount,
		AttestationType:  wc.AttestationType,
		Transports:       wc.Transport,
		Flags:            wc.Flags,
		AAGUID:           wc.Authenticator.AAGUID,
		OwnerUserHandle:  ownerUserHandle,
		CreatedAt:        time.Now().UTC(),
	}
}

// SecurityKey is the account-facing record of a registered authenticator.
// It is created transactionally with its credential source and is never
// visible without its name.
type SecurityKey struct {
	// ID is the record identifier.
	ID string `json:"id"`

	// AccountID is the owning account.
	AccountID string `json:"account_id"`

	// PublicKeyID is the standard base64 encoding of the credential id.
	PublicKeyID string `json:"public_key_id"`

	// Name is the user-supplied label for the key.
	Name string `json:"name"`

	// CreatedAt is when the key was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the key record was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// EncodePublicKeyID returns the standard base64 encoding of a credential id,
// the wire representation used in SecurityKey records.
func EncodePublicKeyID(credentialID []byte) string {
	return base64.StdEncoding.EncodeToString(credentialID)
}

// registrant adapts an Account and its registered credential sources to the
// webauthn.User interface for the duration of one ceremony.
type registrant struct {
	account     *Account
	displayName string
	sources     []*PublicKeyCredentialSource
}

// WebAuthnID returns the account's WebAuthn user handle.
func (r *registrant) WebAuthnID() []byte {
	return []byte(r.account.ID)
}

// WebAuthnName returns the account's login name.
func (r *registrant) WebAuthnName() string {
	if r.account.Username != "" {
		return r.account.Username
	}
	return r.account.ID
}

// WebAuthnDisplayName returns the display name requested for this ceremony,
// falling back to the account's display name.
func (r *registrant) WebAuthnDisplayName() string {
	if r.displayName != "" {
		return r.displayName
	}
	if r.account.DisplayName != "" {
		return r.account.DisplayName
	}
	return r.WebAuthnName()
}

// WebAuthnCredentials returns the account's registered credentials.
func (r *registrant) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(r.sources))
	for i, s := range r.sources {
		creds[i] = s.ToWebAuthn()
	}
	return creds
}
