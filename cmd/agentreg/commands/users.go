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
	"github.com/bureau-foundation/agentreg/lib/codec"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/registry"
)

type usersParams struct {
	configFlags
	cli.JSONOutput
	Sort string `json:"sort" flag:"sort" desc:"sort order: name or address" default:"name"`
}

type warningOutput struct {
	Address address.Address `json:"address"`
	Error   string          `json:"error"`
}

type usersResult struct {
	Users    []registry.Listed `json:"users"`
	Warnings []warningOutput   `json:"warnings"`
}

func usersCommand() *cli.Command {
	var params usersParams
	return &cli.Command{
		Name:    "users",
		Summary: "List registered users",
		Description: `List every user linked from the anchor in this replica's store.

Registrations whose records are missing or unreadable are reported as
warnings on stderr and skipped.`,
		Usage: "agentreg users [flags]",
		Examples: []cli.Example{
			{Description: "Machine-readable listing", Command: "agentreg users --json"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 0, "agentreg users [flags]"); err != nil {
				return err
			}
			switch params.Sort {
			case "name", "address":
			default:
				return cli.Validation("--sort must be name or address, got %q", params.Sort)
			}

			s, err := openStore(params.configFlags, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			reader, err := s.reader()
			if err != nil {
				return err
			}
			listing, err := reader.ListUsers(ctx)
			if err != nil {
				return classify(err)
			}
			if params.Sort == "address" {
				registry.SortByAddress(listing.Users)
			} else {
				registry.SortByName(listing.Users)
			}

			result := usersResult{Users: listing.Users, Warnings: []warningOutput{}}
			for _, warning := range listing.Warnings {
				result.Warnings = append(result.Warnings, warningOutput{Address: warning.Address, Error: warning.Err.Error()})
			}
			if result.Users == nil {
				result.Users = []registry.Listed{}
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}

			if len(listing.Users) == 0 {
				fmt.Fprintln(cli.Stdout, "no registered users")
			} else {
				t := &table{headers: []string{"NAME", "AGENT", "ADDRESS"}, faint: map[int]bool{2: true}}
				for _, listed := range listing.Users {
					t.add(listed.User.Name, address.Agent.Short(listed.User.Agent), address.Short(listed.Address))
				}
				t.render(cli.Stdout)
			}
			for _, warning := range listing.Warnings {
				fmt.Fprintf(os.Stderr, "%s %s\n", styled(os.Stderr, warningStyle, "warning:"), warning)
			}
			return nil
		},
	}
}

type lookupParams struct {
	configFlags
	cli.JSONOutput
	Agent bool `json:"agent" flag:"agent" desc:"treat the argument as an agent identifier and find its registration"`
	Raw   bool `json:"raw" flag:"raw" desc:"print the stored record in CBOR diagnostic notation"`
}

func lookupCommand() *cli.Command {
	var params lookupParams
	return &cli.Command{
		Name:    "lookup",
		Summary: "Show one registration",
		Description: `Resolve a user record by its entry address, or with --agent, find the
registration of an agent identifier. Addresses are the full 64-digit
hex form.`,
		Usage: "agentreg lookup <address> [flags]",
		Examples: []cli.Example{
			{Description: "Find an agent's registration", Command: "agentreg lookup --agent 3f9a..."},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agentreg lookup <address> [flags]"); err != nil {
				return err
			}
			target, err := address.Parse(args[0])
			if err != nil {
				return cli.Validation("%v", err)
			}

			s, err := openStore(params.configFlags, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			if params.Raw {
				return printRaw(ctx, s.backend, target)
			}

			reader, err := s.reader()
			if err != nil {
				return err
			}

			var found []registry.Listed
			if params.Agent {
				found, err = reader.FindByAgent(ctx, target)
				if errors.Is(err, registry.ErrNotRegistered) {
					return cli.NotFound("agent %s is not registered", address.Agent.Short(target))
				}
				if err != nil {
					return classify(err)
				}
			} else {
				user, err := reader.Lookup(ctx, target)
				if errors.Is(err, entrystore.ErrNotFound) {
					return cli.NotFound("no entry at %s", address.Short(target))
				}
				if err != nil {
					return classify(err)
				}
				found = []registry.Listed{{Address: target, User: user}}
			}

			if done, err := params.EmitJSON(found); done {
				return err
			}
			for _, listed := range found {
				fmt.Fprintf(cli.Stdout, "name    %s\nagent   %s\naddress %s\n", listed.User.Name, listed.User.Agent, listed.Address)
			}
			return nil
		},
	}
}

// printRaw prints the stored bytes at addr in diagnostic notation,
// which works for records that no longer decode.
func printRaw(ctx context.Context, store entrystore.Store, addr address.Address) error {
	data, err := store.Get(ctx, addr)
	if errors.Is(err, entrystore.ErrNotFound) {
		return cli.NotFound("no entry at %s", address.Short(addr))
	}
	if err != nil {
		return classify(err)
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		return &cli.ToolError{Category: cli.CategoryInternal, Err: &record.DecodeError{Address: addr, Err: err}}
	}
	fmt.Fprintln(cli.Stdout, diagnostic)
	return nil
}
