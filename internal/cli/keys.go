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
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-securitykey/internal/rest"
	"github.com/jeremyhahn/go-securitykey/pkg/securitykey"
)

var keysAccountID string

// keysCmd groups the key administration commands. They operate directly on
// the configured storage backend, so run them against the same config file
// the server uses. With the sqlite backend the server can stay running; the
// database handles concurrent access.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Administer registered security keys",
	Long: `Inspect and manage the security keys persisted in the configured
storage backend.

All subcommands require the owning account via --account.`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an account's security keys",
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, keys securitykey.KeyStore) error {
			list, err := keys.ListKeys(ctx, keysAccountID)
			if err != nil {
				return err
			}
			printVerbose("Found %d keys for account %s", len(list), keysAccountID)
			return NewPrinter(outputFormat, os.Stdout).PrintKeyList(list)
		})
	},
}

var keysInfoCmd = &cobra.Command{
	Use:   "info <key-id>",
	Short: "Show a security key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, keys securitykey.KeyStore) error {
			key, err := keys.GetKey(ctx, keysAccountID, args[0])
			if err != nil {
				return err
			}
			return NewPrinter(outputFormat, os.Stdout).PrintKeyInfo(key)
		})
	},
}

var keysRenameCmd = &cobra.Command{
	Use:   "rename <key-id> <name>",
	Short: "Rename a security key",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, keys securitykey.KeyStore) error {
			key, err := keys.RenameKey(ctx, keysAccountID, args[0], args[1])
			if err != nil {
				return err
			}
			return NewPrinter(outputFormat, os.Stdout).PrintKeyInfo(key)
		})
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <key-id>",
	Short: "Delete a security key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withKeyStore(func(ctx context.Context, keys securitykey.KeyStore) error {
			if err := keys.DeleteKey(ctx, keysAccountID, args[0]); err != nil {
				return err
			}
			return NewPrinter(outputFormat, os.Stdout).
				PrintSuccess(fmt.Sprintf("Deleted security key %s", args[0]))
		})
	},
}

// withKeyStore opens the configured storage backend, runs fn, and closes it.
func withKeyStore(fn func(ctx context.Context, keys securitykey.KeyStore) error) {
	cfg, err := loadServerConfig()
	if err != nil {
		handleError(err)
	}

	stores, err := rest.NewStores(cfg.Storage)
	if err != nil {
		handleError(err)
	}
	defer func() { _ = stores.Close() }()

	if err := fn(context.Background(), stores.KeyStore()); err != nil {
		handleError(err)
	}
}

func init() {
	keysCmd.PersistentFlags().StringVar(&keysAccountID, "account", "",
		"account identifier owning the keys (required)")
	_ = keysCmd.MarkPersistentFlagRequired("account")

	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysInfoCmd)
	keysCmd.AddCommand(keysRenameCmd)
	keysCmd.AddCommand(keysDeleteCmd)
}
