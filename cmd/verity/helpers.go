package main

import (
	"context"
	"fmt"
	"os"

	"verity/internal/artifact"
	"verity/internal/investigate"
	"verity/internal/logging"
	"verity/internal/store"
	"verity/internal/toolserver"
)

// signingKeyEnv holds the HMAC key for artifact signing. When unset, a
// random per-process key is used; artifacts then verify only within the
// process that created them.
const signingKeyEnv = "VERITY_SIGNING_KEY"

// defaultConfigPaths are tried in order when --config is not given.
var defaultConfigPaths = []string{".verity/servers.yaml", ".verity/servers.yml", "servers.yaml"}

// app bundles the wired components behind every CLI command.
type app struct {
	registry *toolserver.Registry
	store    store.Store
	orch     *investigate.Orchestrator
}

// Close releases the fleet first, then the store that outlives it.
func (a *app) Close() {
	a.orch.Shutdown()
	_ = a.store.Close()
}

// buildApp wires the registry, store, signer, and orchestrator from global
// flags. connect=true dials the whole fleet before returning.
func buildApp(ctx context.Context, connect bool) (*app, error) {
	registry, err := buildRegistry()
	if err != nil {
		return nil, err
	}

	st, err := openStore()
	if err != nil {
		return nil, err
	}

	orch := investigate.New(registry, buildSigner(), st)

	if connect {
		connected, total := registry.ConnectAll(ctx)
		if total > 0 && connected == 0 {
			logging.New("cli").Warn("no tool servers reachable; investigations will degrade",
				"configured", total)
		}
	}

	return &app{registry: registry, store: st, orch: orch}, nil
}

// buildRegistry loads the fleet config and registers every server. A missing
// config is not an error: the fleet is simply empty.
func buildRegistry() (*toolserver.Registry, error) {
	registry := toolserver.NewRegistry()

	path := rootFlags.config
	if path == "" {
		for _, candidate := range defaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		logging.New("cli").Warn("no fleet config found; running with an empty fleet")
		return registry, nil
	}

	fc, err := toolserver.LoadFleetConfig(path)
	if err != nil {
		return nil, err
	}
	for _, cfg := range fc.Servers {
		if err := registry.AddServerConfig(cfg); err != nil {
			return nil, fmt.Errorf("register %s: %w", cfg.Name, err)
		}
	}
	return registry, nil
}

// openStore picks sqlite when --db is set, in-memory otherwise.
func openStore() (store.Store, error) {
	if rootFlags.db == "" {
		return store.NewMemStore(), nil
	}
	st, err := store.Open(rootFlags.db)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// buildSigner reads the HMAC key from the environment, falling back to an
// ephemeral per-process key.
func buildSigner() artifact.Signer {
	if key := os.Getenv(signingKeyEnv); key != "" {
		signer, err := artifact.NewHMACSigner([]byte(key))
		if err == nil {
			return signer
		}
		logging.New("cli").Warn("invalid signing key in environment, using ephemeral key", "env", signingKeyEnv)
	}
	return artifact.NewEphemeralSigner()
}
