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

// Package securitykey implements the server side of the WebAuthn registration
// ceremony for hardware and platform authenticators.
//
// The ceremony is two-phase. BeginRegistration issues a cryptographic
// challenge bound to a short-lived one-time token and returns the standard
// credential creation options for the browser. FinishRegistration atomically
// consumes the token, verifies the authenticator's attestation response
// against the issued challenge, and persists the resulting credential exactly
// once as a named SecurityKey.
//
// The package is built around small injected stores:
//
//   - ChallengeStore holds issued challenges under their token with a TTL and
//     supports atomic single-use retrieval (Pull). Once pulled, a token is
//     dead regardless of the downstream outcome.
//   - AccountStore resolves the owning account.
//   - KeyStore persists verified credentials, enforcing global credential-id
//     uniqueness, and serves the pass-through key CRUD operations.
//
// In-memory implementations of all three stores are provided for development
// and testing. Production deployments typically use the SQLite-backed store
// from the sqlite subpackage, or bring their own.
package securitykey
