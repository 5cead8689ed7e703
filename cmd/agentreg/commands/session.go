// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/bureau-foundation/agentreg/cmd/agentreg/cli"
	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/agent"
	"github.com/bureau-foundation/agentreg/lib/config"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/registry"
	"github.com/bureau-foundation/agentreg/lib/replica"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

// configFlags is embedded in every command's params that reads the
// config file.
type configFlags struct {
	ConfigPath string `json:"-" flag:"config" desc:"config file (default: $AGENTREG_CONFIG)"`
}

// load reads, validates, and applies the configuration.
func (f configFlags) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.ConfigPath != "" {
		cfg, err = config.LoadFile(f.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &cli.ToolError{Category: cli.CategoryValidation, Err: fmt.Errorf("loading config: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &cli.ToolError{Category: cli.CategoryValidation, Err: fmt.Errorf("invalid config: %w", err)}
	}
	if err := cli.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openBackend opens the configured entry store.
func openBackend(cfg *config.Config, logger *slog.Logger) (entrystore.Backend, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using the in-memory store; nothing will persist")
		return entrystore.NewMemory(), nil
	default:
		return entrystore.OpenSQLite(entrystore.SQLiteConfig{
			Path:     cfg.Paths.Database,
			PoolSize: cfg.Store.PoolSize,
			Logger:   logger,
		})
	}
}

// loadIdentity reads this agent's key.
func loadIdentity(cfg *config.Config) (*agent.Identity, error) {
	identity, err := agent.Load(cfg.Paths.KeyFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cli.NotFound("no agent key at %s", cfg.Paths.KeyFile).
			WithHint("Run 'agentreg keygen' to create one.")
	}
	return identity, err
}

// session is an opened store and, for commands that author entries,
// this agent's replica.
type session struct {
	config   *config.Config
	backend  entrystore.Backend
	identity *agent.Identity
	replica  *replica.Replica
	logger   *slog.Logger
}

// openStore opens the store without loading the agent key.
func openStore(flags configFlags, logger *slog.Logger) (*session, error) {
	cfg, err := flags.load()
	if err != nil {
		return nil, err
	}
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return nil, classify(err)
	}
	return &session{config: cfg, backend: backend, logger: logger}, nil
}

// openReplica opens the store and this agent's replica over it.
func openReplica(flags configFlags, logger *slog.Logger) (*session, error) {
	s, err := openStore(flags, logger)
	if err != nil {
		return nil, err
	}
	s.identity, err = loadIdentity(s.config)
	if err != nil {
		s.Close()
		return nil, err
	}
	policy, err := validation.ParsePolicy(s.config.Validation.PartialEvidence)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.replica, err = replica.New(replica.Config{
		Identity:  s.identity,
		Store:     s.backend,
		Chains:    s.backend,
		Logger:    logger,
		Validator: validation.Validator{PartialEvidence: policy},
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.logger = logger.With("agent", address.Agent.Short(s.identity.Address()))
	return s, nil
}

func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
}

func (s *session) writer() (*registry.Writer, error) {
	initial, ceiling, err := s.config.Registration.Backoff()
	if err != nil {
		return nil, err
	}
	return registry.NewWriter(registry.WriterConfig{
		Replica: s.replica,
		Logger:  s.logger,
		Retry: registry.RetryPolicy{
			Attempts:     s.config.Registration.RetryAttempts,
			InitialDelay: initial,
			MaxDelay:     ceiling,
		},
	})
}

func (s *session) reader() (*registry.Reader, error) {
	return registry.NewReader(registry.ReaderConfig{Store: s.backend, Logger: s.logger})
}

// classify maps library errors to categorized command errors so the
// process exit code reflects what went wrong.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var toolError *cli.ToolError
	if errors.As(err, &toolError) {
		return err
	}

	var partial *registry.PartialRegistrationError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &partial):
		return (&cli.ToolError{Category: cli.CategoryTransient, Err: err}).
			WithHint("The record is stored but not yet listed. Run 'agentreg repair' to finish.")
	case errors.Is(err, validation.ErrDuplicateAgent), errors.Is(err, validation.ErrImmutable),
		errors.Is(err, entrystore.ErrChainFork):
		return &cli.ToolError{Category: cli.CategoryConflict, Err: err}
	case validation.IsRejection(err):
		return &cli.ToolError{Category: cli.CategoryValidation, Err: err}
	case errors.Is(err, registry.ErrNotRegistered), errors.Is(err, entrystore.ErrNotFound):
		return &cli.ToolError{Category: cli.CategoryNotFound, Err: err}
	case entrystore.IsTransient(err):
		return &cli.ToolError{Category: cli.CategoryTransient, Err: err}
	}
	return err
}

// requireArgs checks the positional argument count.
func requireArgs(args []string, want int, usage string) error {
	if len(args) != want {
		return cli.Validation("expected %d argument(s), got %d\n\nUsage: %s", want, len(args), usage)
	}
	return nil
}
