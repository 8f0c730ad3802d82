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
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-securitykey/internal/config"
	"github.com/jeremyhahn/go-securitykey/pkg/logging"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
)

const (
	testAccountID = "acct-1"
	testOrigin    = "https://example.com"
)

// testConfig returns a server configuration backed by in-memory storage.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Backend: "memory"}
	cfg.Metrics.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.WebAuthn.RPID = "example.com"
	cfg.WebAuthn.RPDisplayName = "Example Corp"
	cfg.WebAuthn.RPOrigins = []string{testOrigin}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	server, err := NewServer(cfg, logging.NewLogger(false))
	if err != nil {
		t.Fatalf("NewServer() error = %v, want nil", err)
	}
	t.Cleanup(func() {
		if err := server.stores.Close(); err != nil {
			t.Errorf("failed to close stores: %v", err)
		}
	})
	return server
}

func TestNewServer_NilConfig(t *testing.T) {
	_, err := NewServer(nil, nil)
	if err == nil {
		t.Fatal("NewServer(nil) error = nil, want error")
	}
}

func TestNewServer_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "postgres"

	_, err := NewServer(cfg, nil)
	if err == nil {
		t.Fatal("NewServer() error = nil, want error for unknown backend")
	}
	if !strings.Contains(err.Error(), "unknown storage backend") {
		t.Errorf("NewServer() error = %v, want 'unknown storage backend'", err)
	}
}

func TestNewServer_InvalidRelyingParty(t *testing.T) {
	cfg := testConfig()
	cfg.WebAuthn.RPID = ""

	_, err := NewServer(cfg, nil)
	if err == nil {
		t.Fatal("NewServer() error = nil, want error for missing relying party id")
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	server := newTestServer(t, testConfig())

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/healthz", wantStatus: http.StatusOK},
		{path: "/healthz/live", wantStatus: http.StatusOK},
		{path: "/healthz/ready", wantStatus: http.StatusOK},
		// MarkStarted only happens in Start, so the startup probe fails.
		{path: "/healthz/startup", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	server := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") &&
		!strings.Contains(rec.Body.String(), "securitykey") {
		t.Error("metrics endpoint does not expose any known collectors")
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	server := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, BasePath+"/register/begin", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("OPTIONS status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Account-Id") {
		t.Errorf("Access-Control-Allow-Headers = %q, want X-Account-Id allowed", got)
	}
}

func TestServer_CorrelationIDOnResponses(t *testing.T) {
	server := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("response missing X-Correlation-ID header")
	}
}

// beginResponse is the shape of the begin endpoint payload needed by tests.
type beginResponse struct {
	Token   string `json:"token"`
	Options struct {
		PublicKey struct {
			Challenge string `json:"challenge"`
		} `json:"publicKey"`
	} `json:"options"`
}

// beginRegistration drives the begin endpoint and returns the token and the
// raw challenge bytes.
func beginRegistration(t *testing.T, server *Server, accountID string) (string, []byte) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, BasePath+"/register/begin",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-Id", accountID)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("begin status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp beginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode begin response: %v", err)
	}

	challenge, err := base64.RawURLEncoding.DecodeString(resp.Options.PublicKey.Challenge)
	if err != nil {
		t.Fatalf("failed to decode challenge: %v", err)
	}

	return resp.Token, challenge
}

func TestServer_RegistrationFlow(t *testing.T) {
	server := newTestServer(t, testConfig())

	token, challenge := beginRegistration(t, server, testAccountID)

	authenticator, err := securitykey.NewMockAuthenticator("example.com")
	if err != nil {
		t.Fatalf("failed to create authenticator: %v", err)
	}
	attestation, err := authenticator.CreateAttestationResponseJSON(challenge, testOrigin)
	if err != nil {
		t.Fatalf("failed to create attestation: %v", err)
	}

	body, err := json.Marshal(map[string]json.RawMessage{
		"token":        json.RawMessage(fmt.Sprintf("%q", token)),
		"name":         json.RawMessage(`"YubiKey 5"`),
		"registration": attestation,
	})
	if err != nil {
		t.Fatalf("failed to marshal finish request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, BasePath+"/register/finish", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-Id", testAccountID)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("finish status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var key struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &key); err != nil {
		t.Fatalf("failed to decode finish response: %v", err)
	}
	if key.Name != "YubiKey 5" {
		t.Errorf("key name = %q, want YubiKey 5", key.Name)
	}

	// The key is listed for the account afterwards.
	listReq := httptest.NewRequest(http.MethodGet, BasePath, nil)
	listReq.Header.Set("X-Account-Id", testAccountID)
	listRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(listRec, listReq)

	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", listRec.Code)
	}
	var list struct {
		Keys []struct {
			ID string `json:"id"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if len(list.Keys) != 1 || list.Keys[0].ID != key.ID {
		t.Errorf("list = %+v, want the registered key", list)
	}
}

func TestServer_MissingAccountHeader(t *testing.T) {
	server := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, BasePath+"/register/begin",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("begin without account header status = %d, want 401", rec.Code)
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1}
	server := newTestServer(t, cfg)

	// First request consumes the single token in the bucket.
	req := httptest.NewRequest(http.MethodGet, BasePath, nil)
	req.Header.Set("X-Account-Id", testAccountID)
	req.RemoteAddr = "10.1.2.3:40000"
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, BasePath, nil)
	req.Header.Set("X-Account-Id", testAccountID)
	req.RemoteAddr = "10.1.2.3:40001"
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}

	// Rate limiting never blocks health probes.
	healthReq := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	healthReq.RemoteAddr = "10.1.2.3:40002"
	healthRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(healthRec, healthReq)
	if healthRec.Code != http.StatusOK {
		t.Errorf("health probe status = %d, want 200", healthRec.Code)
	}
}
