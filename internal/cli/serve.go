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
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-securitykey/internal/rest"
	"github.com/jeremyhahn/go-securitykey/pkg/logging"
)

// serveCmd starts the registration server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the security key registration server",
	Long: `Start the REST server that runs WebAuthn registration ceremonies and
manages registered security keys.

The server reads its configuration from the file given with --config,
falling back to /etc/securitykey/config.yaml and $HOME/.securitykey.yaml.
SECURITYKEY_* environment variables override file settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServerConfig()
		if err != nil {
			return err
		}

		debug := verbose || strings.EqualFold(cfg.Logging.Level, "debug")
		logger := logging.NewLogger(debug)

		server, err := rest.NewServer(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			cfg.Server.ShutdownTimeout)
		defer cancel()

		return server.Stop(shutdownCtx)
	},
}
