// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the agentreg command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/agentreg/cmd/agentreg/cli"
	"github.com/bureau-foundation/agentreg/lib/version"
)

// Root builds and returns the complete agentreg command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "agentreg",
		Description: `agentreg: agent user registration over a content-addressed store.

Each agent signs its own source chain and registers at most one user
record. Registrations are linked from a well-known anchor so any
replica can list the directory.

Configuration is read from the file named by $AGENTREG_CONFIG or
--config.`,
		Subcommands: []*cli.Command{
			keygenCommand(),
			whoamiCommand(),
			registerCommand(),
			repairCommand(),
			usersCommand(),
			lookupCommand(),
			validateNameCommand(),
			snapshotCommand(),
			versionCommand(),
		},
	}
}

type versionParams struct {
	cli.JSONOutput
}

func versionCommand() *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			build := version.Current()
			if done, err := params.EmitJSON(build); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "agentreg %s\n", build.Full())
			return nil
		},
	}
}
