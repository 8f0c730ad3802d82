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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintKeyList prints a list of security keys
func (p *Printer) PrintKeyList(keys []*securitykey.SecurityKey) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"keys": keys,
		})
	case OutputFormatTable:
		if len(keys) == 0 {
			fmt.Fprintln(p.writer, "No security keys found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-36s %-25s %-20s\n", "ID", "NAME", "REGISTERED")
		fmt.Fprintln(p.writer, strings.Repeat("-", 83))
		for _, key := range keys {
			fmt.Fprintf(p.writer, "%-36s %-25s %-20s\n",
				key.ID, key.Name, key.CreatedAt.Format(time.RFC3339))
		}
		return nil
	case OutputFormatText:
		if len(keys) == 0 {
			fmt.Fprintln(p.writer, "No security keys found")
			return nil
		}
		fmt.Fprintln(p.writer, "Security keys:")
		for _, key := range keys {
			fmt.Fprintf(p.writer, "  - %s (%s, registered %s)\n",
				key.Name, key.ID, key.CreatedAt.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintKeyInfo prints detailed security key information
func (p *Printer) PrintKeyInfo(key *securitykey.SecurityKey) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(key)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "ID:            %s\n", key.ID)
		fmt.Fprintf(p.writer, "Name:          %s\n", key.Name)
		fmt.Fprintf(p.writer, "Account:       %s\n", key.AccountID)
		fmt.Fprintf(p.writer, "Public Key ID: %s\n", key.PublicKeyID)
		fmt.Fprintf(p.writer, "Registered:    %s\n", key.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(p.writer, "Updated:       %s\n", key.UpdatedAt.Format(time.RFC3339))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON marshals data as indented JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
