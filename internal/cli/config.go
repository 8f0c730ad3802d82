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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-securitykey/internal/config"
)

// loadServerConfig loads the server configuration for CLI commands.
//
// Resolution order: the --config flag, then /etc/securitykey/config.yaml,
// then $HOME/.securitykey.yaml. A missing file is not an error; defaults
// plus SECURITYKEY_* environment overrides still apply.
func loadServerConfig() (*config.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigFile("/etc/securitykey/config.yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if home, homeErr := os.UserHomeDir(); homeErr == nil {
				v.SetConfigFile(filepath.Join(home, ".securitykey.yaml"))
				if err := v.ReadInConfig(); err != nil &&
					!errors.As(err, &notFound) && !os.IsNotExist(err) {
					return nil, fmt.Errorf("failed to read config file: %w", err)
				}
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		printVerbose("Using config file: %s", used)
	}

	cfg := config.Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	config.ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
