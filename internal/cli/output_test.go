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

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
)

func testKey() *securitykey.SecurityKey {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &securitykey.SecurityKey{
		ID:          "key-1",
		AccountID:   "acct-1",
		PublicKeyID: "cHVibGljLWtleS1pZA==",
		Name:        "YubiKey 5",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestPrintKeyList_Text(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("text", &buf)

	if err := printer.PrintKeyList([]*securitykey.SecurityKey{testKey()}); err != nil {
		t.Fatalf("PrintKeyList() error = %v, want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, "YubiKey 5") || !strings.Contains(out, "key-1") {
		t.Errorf("text output missing key details: %q", out)
	}
}

func TestPrintKeyList_Empty(t *testing.T) {
	for _, format := range []string{"text", "table"} {
		var buf bytes.Buffer
		if err := NewPrinter(format, &buf).PrintKeyList(nil); err != nil {
			t.Fatalf("PrintKeyList() error = %v, want nil", err)
		}
		if !strings.Contains(buf.String(), "No security keys found") {
			t.Errorf("%s output = %q, want 'No security keys found'", format, buf.String())
		}
	}
}

func TestPrintKeyList_JSON(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("json", &buf)

	if err := printer.PrintKeyList([]*securitykey.SecurityKey{testKey()}); err != nil {
		t.Fatalf("PrintKeyList() error = %v, want nil", err)
	}

	var decoded struct {
		Keys []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Keys) != 1 || decoded.Keys[0].Name != "YubiKey 5" {
		t.Errorf("decoded = %+v, want one YubiKey 5 entry", decoded)
	}
}

func TestPrintKeyList_Table(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("table", &buf)

	if err := printer.PrintKeyList([]*securitykey.SecurityKey{testKey()}); err != nil {
		t.Fatalf("PrintKeyList() error = %v, want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ID") || !strings.Contains(out, "NAME") {
		t.Errorf("table output missing header: %q", out)
	}
	if !strings.Contains(out, "key-1") {
		t.Errorf("table output missing row: %q", out)
	}
}

func TestPrintKeyInfo(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("text", &buf)

	if err := printer.PrintKeyInfo(testKey()); err != nil {
		t.Fatalf("PrintKeyInfo() error = %v, want nil", err)
	}
	out := buf.String()
	for _, want := range []string{"key-1", "acct-1", "YubiKey 5", "cHVibGljLWtleS1pZA=="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestPrintError_JSON(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("json", &buf)

	if err := printer.PrintError(errors.New("boom")); err != nil {
		t.Fatalf("PrintError() error = %v, want nil", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["status"] != "error" || decoded["error"] != "boom" {
		t.Errorf("decoded = %v, want status=error error=boom", decoded)
	}
}

func TestPrinter_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter("yaml", &buf)

	if err := printer.PrintKeyList(nil); err == nil {
		t.Error("PrintKeyList() error = nil, want error for unknown format")
	}
	if err := printer.PrintSuccess("ok"); err == nil {
		t.Error("PrintSuccess() error = nil, want error for unknown format")
	}
}
