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
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// attestationFormats are the attestation statement formats the underlying
// verification library knows how to check.
var attestationFormats = map[string]bool{
	"none":              true,
	"packed":            true,
	"fido-u2f":          true,
	"tpm":               true,
	"android-key":       true,
	"android-safetynet": true,
	"apple":             true,
}

// AttestationVerifier validates a client's attestation response against a
// previously issued registration challenge. Verification is pure: the checks
// run sequentially, each one a hard gate, and the first failure aborts with a
// specific error. No state is touched.
type AttestationVerifier struct {
	webauthn *webauthn.WebAuthn
	config   *Config
}

// NewAttestationVerifier creates an attestation verifier for the relying party.
func NewAttestationVerifier(wa *webauthn.WebAuthn, config *Config) *AttestationVerifier {
	return &AttestationVerifier{
		webauthn: wa,
		config:   config,
	}
}

// Verify checks the attestation response against the issued challenge and
// returns the verified credential source.
//
// Gates, in order:
//  1. client data challenge equals the issued challenge byte-for-byte
//  2. client data declares a webauthn.create ceremony from an allowed origin
//  3. authenticator data carries the relying party's ID hash
//  4. the attestation statement passes its format-specific check
func (v *AttestationVerifier) Verify(account *Account, challenge *RegistrationChallenge, response *protocol.ParsedCredentialCreationData) (*PublicKeyCredentialSource, error) {
	if response == nil {
		return nil, NewError("verify attestation", ErrAttestationSignatureInvalid)
	}

	clientData := response.Response.CollectedClientData

	// Gate 1: challenge equality. Both sides are base64url; compare the
	// decoded bytes so an encoding variant cannot slip past the check.
	issued, err := challenge.Challenge()
	if err != nil {
		return nil, NewError("decode issued challenge", ErrUnexpectedCachedPayload)
	}
	presented, err := base64.RawURLEncoding.DecodeString(clientData.Challenge)
	if err != nil {
		return nil, NewError("decode client data challenge", ErrChallengeMismatch)
	}
	if subtle.ConstantTimeCompare(issued, presented) != 1 {
		return nil, NewError("compare challenge", ErrChallengeMismatch)
	}

	// Gate 2: ceremony type and origin.
	if clientData.Type != protocol.CreateCeremony {
		return nil, NewError("check ceremony type", ErrOriginMismatch)
	}
	if !v.allowedOrigin(clientData.Origin) {
		return nil, NewError("check origin", ErrOriginMismatch)
	}

	// Gate 3: relying party ID hash.
	rpIDHash := sha256.Sum256([]byte(v.config.RPID))
	if !bytes.Equal(rpIDHash[:], response.Response.AttestationObject.AuthData.RPIDHash) {
		return nil, NewError("check relying party hash", ErrRelyingPartyMismatch)
	}

	// Gate 4: format-specific attestation statement verification. Unknown or
	// policy-rejected formats fail closed before any cryptographic check.
	format := response.Response.AttestationObject.Format
	if !attestationFormats[format] || !v.config.AcceptsAttestationFormat(format) {
		return nil, NewError("check attestation format", ErrAttestationFormatUnsupported)
	}

	reg := &registrant{account: account}
	credential, err := v.webauthn.CreateCredential(reg, challenge.Session, response)
	if err != nil {
		return nil, classifyAttestationError(err)
	}

	if v.config.RequireSignatureCounter && credential.Authenticator.SignCount == 0 {
		return nil, NewError("check signature counter", ErrAttestationSignatureInvalid)
	}

	return FromWebAuthnCredential(challenge.Session.UserID, credential), nil
}

// allowedOrigin reports whether the client data origin matches one of the
// relying party's configured origins.
func (v *AttestationVerifier) allowedOrigin(origin string) bool {
	for _, o := range v.config.RPOrigins {
		if strings.EqualFold(strings.TrimSuffix(o, "/"), strings.TrimSuffix(origin, "/")) {
			return true
		}
	}
	return false
}

// classifyAttestationError maps verification library failures onto the
// ceremony's error taxonomy. Format handler failures surface as unsupported
// formats; everything else is a statement verification failure.
func classifyAttestationError(err error) error {
	var protoErr *protocol.Error
	if errors.As(err, &protoErr) {
		details := strings.ToLower(protoErr.Details + " " + protoErr.DevInfo)
		if strings.Contains(details, "attestation format") {
			return NewError("verify attestation statement", ErrAttestationFormatUnsupported)
		}
	}
	return &CeremonyError{Op: "verify attestation statement", Err: fmt.Errorf("%w: %v", ErrAttestationSignatureInvalid, err)}
}
