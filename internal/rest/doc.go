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

// Package rest provides the security key registration REST server.
//
// The server wires the securitykey registration service to HTTP: it builds
// the challenge and credential stores from configuration, mounts the ceremony
// and key management endpoints under /api/v1/security-keys, and adds the
// operational surface around them (request logging, correlation IDs, rate
// limiting, Prometheus metrics, and Kubernetes-style health probes).
//
// # Server Setup
//
//	cfg, _ := config.Load("config.yaml")
//	server, _ := rest.NewServer(cfg, logging.NewLogger(false))
//
//	go server.Start()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # Account Resolution
//
// The server trusts the X-Account-Id request header to carry the identity of
// an already-authenticated account. Deploy it behind an authenticating
// reverse proxy or API gateway that strips the header from client requests
// and injects the verified account identifier.
package rest
