// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/agentreg/cmd/agentreg/cli"
	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/agent"
	"github.com/bureau-foundation/agentreg/lib/registry"
)

type keygenParams struct {
	configFlags
	cli.JSONOutput
	Force bool `json:"force" flag:"force" desc:"replace an existing key (the old agent identity is lost)"`
}

type keygenResult struct {
	Agent   address.Address `json:"agent"`
	KeyFile string          `json:"key_file"`
}

func keygenCommand() *cli.Command {
	var params keygenParams
	return &cli.Command{
		Name:    "keygen",
		Summary: "Create this agent's signing key",
		Description: `Generate an Ed25519 key and write it to paths.key_file with mode 0600.

The agent identifier is derived from the public key. Refuses to
overwrite an existing key unless --force is given.`,
		Usage:  "agentreg keygen [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 0, "agentreg keygen [flags]"); err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}

			path := cfg.Paths.KeyFile
			if _, err := os.Stat(path); err == nil && !params.Force {
				return cli.Conflict("key file %s already exists", path).
					WithHint("Pass --force to replace it; the current agent identity will be lost.")
			}

			identity, err := agent.Generate(nil)
			if err != nil {
				return err
			}
			if err := agent.Save(path, identity); err != nil {
				return err
			}
			logger.Info("generated agent key", "agent", address.Agent.Short(identity.Address()), "path", path)

			result := keygenResult{Agent: identity.Address(), KeyFile: path}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "agent %s\nkey   %s\n", result.Agent, result.KeyFile)
			return nil
		},
	}
}

type whoamiParams struct {
	configFlags
	cli.JSONOutput
}

type whoamiResult struct {
	Agent      address.Address   `json:"agent"`
	Registered bool              `json:"registered"`
	Users      []registry.Listed `json:"users"`
}

func whoamiCommand() *cli.Command {
	var params whoamiParams
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show this agent's identifier and registration",
		Usage:   "agentreg whoami [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 0, "agentreg whoami [flags]"); err != nil {
				return err
			}
			s, err := openReplica(params.configFlags, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			reader, err := s.reader()
			if err != nil {
				return err
			}
			result := whoamiResult{Agent: s.identity.Address()}
			result.Users, err = reader.FindByAgent(ctx, result.Agent)
			switch {
			case err == nil:
				result.Registered = true
			case errors.Is(err, registry.ErrNotRegistered):
			default:
				return classify(err)
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "agent %s\n", result.Agent)
			if !result.Registered {
				fmt.Fprintln(cli.Stdout, styled(cli.Stdout, faintStyle, "not registered"))
				return nil
			}
			for _, listed := range result.Users {
				fmt.Fprintf(cli.Stdout, "user  %s (%s)\n", listed.User.Name, listed.Address)
			}
			return nil
		},
	}
}
