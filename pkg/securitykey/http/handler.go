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
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-securitykey/pkg/metrics"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
)

// AccountResolver maps an authenticated request to its account ID. The
// surrounding application owns authentication; handlers only ever operate on
// the account the resolver returns.
type AccountResolver func(r *http.Request) (string, error)

// AccountFromHeader resolves the account ID from the X-Account-Id header.
// Intended for development and for deployments where an auth proxy injects
// the header; production services should supply their own resolver.
func AccountFromHeader(r *http.Request) (string, error) {
	accountID := r.Header.Get(HeaderAccountID)
	if accountID == "" {
		return "", errors.New("missing account header")
	}
	return accountID, nil
}

// Handler provides HTTP handlers for security key operations.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service  *securitykey.Service
	resolver AccountResolver
	logger   *slog.Logger
}

// NewHandler creates a new security key HTTP handler.
func NewHandler(service *securitykey.Service, resolver AccountResolver) *Handler {
	if resolver == nil {
		resolver = AccountFromHeader
	}
	return &Handler{
		service:  service,
		resolver: resolver,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// BeginRegistration handles POST /register/begin
//
// Request body (optional):
//
//	{
//	    "display_name": "Sam Doe"
//	}
//
// Response: {"token": "...", "options": <PublicKeyCredentialCreationOptions>}
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	accountID, err := h.resolver(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeInvalidRequest, "unable to resolve account")
		return
	}

	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// An empty body is fine; the display name is optional.
		req = BeginRegistrationRequest{}
	}

	timer := metrics.NewCeremonyTimer(metrics.PhaseBegin)
	ceremony, err := h.service.BeginRegistration(r.Context(), accountID, req.DisplayName)
	if err != nil {
		timer.Done(false)
		metrics.RecordFailure(metrics.PhaseBegin, ceremonyFailureReason(err))
		h.handleServiceError(w, r, err)
		return
	}
	timer.Done(true)

	h.writeJSON(w, http.StatusOK, ceremony)
}

// FinishRegistration handles POST /register/finish
//
// Request body:
//
//	{
//	    "token": "one-time token from begin",
//	    "name": "yubikey 5c",
//	    "registration": <credential creation response>
//	}
//
// Response: the persisted security key.
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	accountID, err := h.resolver(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeInvalidRequest, "unable to resolve account")
		return
	}

	var req FinishRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "token is required")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "name is required")
		return
	}
	if len(req.Registration) == 0 {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "registration response is required")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Registration))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	timer := metrics.NewCeremonyTimer(metrics.PhaseFinish)
	key, err := h.service.FinishRegistration(r.Context(), accountID, req.Token, response, req.Name)
	if err != nil {
		timer.Done(false)
		metrics.RecordFailure(metrics.PhaseFinish, ceremonyFailureReason(err))
		h.handleServiceError(w, r, err)
		return
	}
	timer.Done(true)

	h.writeJSON(w, http.StatusCreated, toKeyResponse(key))
}

// ListKeys handles GET /
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed")
		return
	}

	accountID, err := h.resolver(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeInvalidRequest, "unable to resolve account")
		return
	}

	keys, err := h.service.ListSecurityKeys(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := ListKeysResponse{Keys: make([]SecurityKeyResponse, len(keys))}
	for i, key := range keys {
		resp.Keys[i] = toKeyResponse(key)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetKey handles GET /{keyID}
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.resolver(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeInvalidRequest, "unable to resolve account")
		return
	}

	key, err := h.service.GetSecurityKey(r.Context(), accountID, r.PathValue("keyID"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toKeyResponse(key))
}

// RenameKey handles PATCH /{keyID}
//
// Request body:
//
//	{
//	    "name": "new label"
//	}
func (h *Handler) RenameKey(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.resolver(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeInvalidRequest, "unable to resolve account")
		return
	}

	var req RenameKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "name is required")
		return
	}

	key, err := h.service.RenameSecurityKey(r.Context(), accountID, r.PathValue("keyID"), req.Name)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toKeyResponse(key))
}

// DeleteKey handles DELETE /{keyID}
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.resolver(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeInvalidRequest, "unable to resolve account")
		return
	}

	if err := h.service.DeleteSecurityKey(r.Context(), accountID, r.PathValue("keyID")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps service errors to HTTP responses. Verification
// failures collapse into one generic response so a probing client learns
// nothing about which gate rejected it; the specific cause is logged.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case securitykey.IsExpiredChallenge(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeExpired,
			"the registration window has expired, start a new registration")
	case securitykey.IsVerificationFailure(err),
		securitykey.IsAccountMismatch(err),
		errors.Is(err, securitykey.ErrUnexpectedCachedPayload):
		h.logger.Warn("security key verification failed",
			"path", r.URL.Path,
			"error", err)
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed,
			"security key verification failed")
	case securitykey.IsDuplicateCredential(err):
		h.writeError(w, http.StatusConflict, ErrorCodeDuplicateCredential,
			"this security key is already registered")
	case errors.Is(err, securitykey.ErrInvalidAccountState):
		h.writeError(w, http.StatusNotFound, ErrorCodeAccountNotFound, "account not found")
	case securitykey.IsKeyNotFound(err):
		h.writeError(w, http.StatusNotFound, ErrorCodeKeyNotFound, "security key not found")
	default:
		h.logger.Error("security key operation failed",
			"path", r.URL.Path,
			"error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// ceremonyFailureReason maps a ceremony error to its failure-counter reason.
func ceremonyFailureReason(err error) string {
	switch {
	case securitykey.IsExpiredChallenge(err):
		return metrics.ReasonExpiredChallenge
	case securitykey.IsAccountMismatch(err):
		return metrics.ReasonAccountMismatch
	case errors.Is(err, securitykey.ErrUnexpectedCachedPayload):
		return metrics.ReasonCachedPayload
	case errors.Is(err, securitykey.ErrChallengeMismatch):
		return metrics.ReasonChallengeMismatch
	case errors.Is(err, securitykey.ErrOriginMismatch):
		return metrics.ReasonOriginMismatch
	case errors.Is(err, securitykey.ErrRelyingPartyMismatch):
		return metrics.ReasonRelyingParty
	case errors.Is(err, securitykey.ErrAttestationFormatUnsupported):
		return metrics.ReasonFormatUnsupported
	case errors.Is(err, securitykey.ErrAttestationSignatureInvalid):
		return metrics.ReasonSignatureInvalid
	case securitykey.IsDuplicateCredential(err):
		return metrics.ReasonDuplicate
	case errors.Is(err, securitykey.ErrPersistenceFailure):
		return metrics.ReasonPersistence
	case errors.Is(err, securitykey.ErrInvalidAccountState):
		return metrics.ReasonAccount
	default:
		return metrics.ReasonInternal
	}
}

func toKeyResponse(key *securitykey.SecurityKey) SecurityKeyResponse {
	return SecurityKeyResponse{
		ID:          key.ID,
		Name:        key.Name,
		PublicKeyID: key.PublicKeyID,
		CreatedAt:   key.CreatedAt,
		UpdatedAt:   key.UpdatedAt,
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
