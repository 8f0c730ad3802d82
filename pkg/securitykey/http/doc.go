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

// Package http provides composable HTTP handlers for security key
// registration and management.
//
// This package allows applications to add hardware security key enrollment
// to their existing HTTP servers without coupling to go-securitykey's
// internal REST implementation. The caller supplies an AccountResolver that
// maps an authenticated request to its account ID; the handlers never do
// authentication themselves.
//
// # Usage
//
// Create a handler from a registration service and mount it on your router:
//
//	svc, _ := securitykey.NewService(...)
//	handler := skhttp.NewHandler(svc, resolver)
//
//	// For chi router:
//	r.Route("/api/v1/security-keys", func(r chi.Router) {
//	    skhttp.MountChi(r, handler)
//	})
//
//	// For stdlib http.ServeMux (Go 1.22+):
//	skhttp.MountStdlib(mux, "/api/v1/security-keys", handler)
//
// # Endpoints
//
// The handler provides the following endpoints:
//
//	POST   /register/begin   - Start a registration ceremony
//	POST   /register/finish  - Complete a registration ceremony
//	GET    /                 - List the account's security keys
//	GET    /{keyID}          - Retrieve one security key
//	PATCH  /{keyID}          - Rename a security key
//	DELETE /{keyID}          - Remove a security key
//
// # Response Format
//
// All responses are JSON. Successful responses include the data directly.
// Error responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
//
// A failed attestation always produces the same generic verification_failed
// response regardless of which check rejected it; the precise reason is only
// logged server-side.
package http
