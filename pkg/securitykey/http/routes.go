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
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts security key routes on a chi router.
//
// Example:
//
//	handler := skhttp.NewHandler(svc, resolver)
//	r.Route("/api/v1/security-keys", func(r chi.Router) {
//	    skhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/register/begin", h.BeginRegistration)
	r.Post("/register/finish", h.FinishRegistration)
	r.Get("/", h.ListKeys)
	r.Get("/{keyID}", h.GetKey)
	r.Patch("/{keyID}", h.RenameKey)
	r.Delete("/{keyID}", h.DeleteKey)
}

// MountStdlib mounts security key routes on a stdlib http.ServeMux.
// The prefix should not include a trailing slash. Requires Go 1.22+ method
// and wildcard patterns.
//
// Example:
//
//	handler := skhttp.NewHandler(svc, resolver)
//	skhttp.MountStdlib(mux, "/api/v1/security-keys", handler)
func MountStdlib(mux *http.ServeMux, prefix string, h *Handler) {
	mux.HandleFunc("POST "+prefix+"/register/begin", h.BeginRegistration)
	mux.HandleFunc("POST "+prefix+"/register/finish", h.FinishRegistration)
	mux.HandleFunc("GET "+prefix+"/{$}", h.ListKeys)
	mux.HandleFunc("GET "+prefix+"/{keyID}", h.GetKey)
	mux.HandleFunc("PATCH "+prefix+"/{keyID}", h.RenameKey)
	mux.HandleFunc("DELETE "+prefix+"/{keyID}", h.DeleteKey)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting.
// Useful for frameworks not directly supported.
//
// Example:
//
//	handler := skhttp.NewHandler(svc, resolver)
//	for _, route := range handler.Routes() {
//	    router.Add(route.Method, "/security-keys"+route.Path, route.Handler)
//	}
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/register/begin", Handler: h.BeginRegistration},
		{Method: "POST", Path: "/register/finish", Handler: h.FinishRegistration},
		{Method: "GET", Path: "/", Handler: h.ListKeys},
		{Method: "GET", Path: "/{keyID}", Handler: h.GetKey},
		{Method: "PATCH", Path: "/{keyID}", Handler: h.RenameKey},
		{Method: "DELETE", Path: "/{keyID}", Handler: h.DeleteKey},
	}
}
