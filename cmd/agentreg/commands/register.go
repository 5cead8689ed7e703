// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/agentreg/cmd/agentreg/cli"
	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/registry"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

type registerParams struct {
	configFlags
	cli.JSONOutput
}

type registrationResult struct {
	Address     address.Address `json:"address"`
	Agent       address.Address `json:"agent"`
	Name        string          `json:"name,omitempty"`
	Seq         uint64          `json:"seq"`
	Replayed    bool            `json:"replayed"`
	Provisional bool            `json:"provisional"`
}

func newRegistrationResult(s *session, name string, registration registry.Registration) registrationResult {
	return registrationResult{
		Address:     registration.Address,
		Agent:       s.identity.Address(),
		Name:        name,
		Seq:         registration.Header.Seq,
		Replayed:    registration.Replayed,
		Provisional: registration.Provisional,
	}
}

func (r registrationResult) print() {
	verb := "registered"
	if r.Replayed {
		verb = "already registered"
	}
	if r.Name != "" {
		fmt.Fprintf(cli.Stdout, "%s %q as %s\n", verb, r.Name, r.Address)
	} else {
		fmt.Fprintf(cli.Stdout, "%s as %s\n", verb, r.Address)
	}
	if r.Provisional {
		fmt.Fprintln(cli.Stdout, styled(cli.Stdout, faintStyle,
			"provisional: validated by this replica only; replicas holding a conflicting registration may reject it"))
	}
}

func registerCommand() *cli.Command {
	var params registerParams
	return &cli.Command{
		Name:    "register",
		Summary: "Register this agent under a user name",
		Description: `Commit a user record for this agent and link it from the anchor.

Each agent may register once. Names are 1 to 50 characters. Repeating
the exact same registration is a no-op; a different name after a
successful registration is rejected.

If the record is committed but the anchor link cannot be written, the
command exits with status 75; run 'agentreg repair' to finish.`,
		Usage: "agentreg register <name> [flags]",
		Examples: []cli.Example{
			{Description: "Register as Alice", Command: "agentreg register Alice"},
			{Description: "Names may contain spaces", Command: `agentreg register "Alice Liddell"`},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agentreg register <name> [flags]"); err != nil {
				return err
			}
			name := args[0]
			if err := validation.CheckName(name); err != nil {
				return classify(err)
			}

			s, err := openReplica(params.configFlags, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			writer, err := s.writer()
			if err != nil {
				return err
			}
			registration, err := writer.Register(ctx, name)
			if err != nil {
				return classify(err)
			}

			result := newRegistrationResult(s, name, registration)
			if done, err := params.EmitJSON(result); done {
				return err
			}
			result.print()
			return nil
		},
	}
}

type repairParams struct {
	configFlags
	cli.JSONOutput
}

func repairCommand() *cli.Command {
	var params repairParams
	return &cli.Command{
		Name:    "repair",
		Summary: "Finish a registration whose anchor link is missing",
		Description: `Re-run the anchor phase of this agent's registration: ensure the anchor
exists and link the registration from it. Safe to run at any time.`,
		Usage:  "agentreg repair [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 0, "agentreg repair [flags]"); err != nil {
				return err
			}
			s, err := openReplica(params.configFlags, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			writer, err := s.writer()
			if err != nil {
				return err
			}
			registration, err := writer.Repair(ctx)
			if errors.Is(err, registry.ErrNotRegistered) {
				return cli.NotFound("this agent has no registration to repair").
					WithHint("Run 'agentreg register <name>'.")
			}
			if err != nil {
				return classify(err)
			}

			result := newRegistrationResult(s, "", registration)
			result.Replayed = false
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "registration %s is linked from the anchor\n", result.Address)
			return nil
		},
	}
}

type validateNameParams struct {
	cli.JSONOutput
}

type nameCheck struct {
	Name   string `json:"name"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func validateNameCommand() *cli.Command {
	var params validateNameParams
	return &cli.Command{
		Name:    "validate-name",
		Summary: "Check a user name against the registration rules",
		Description: `Report whether a name would pass validation, without touching the store.
Exits with status 2 when the name is invalid.`,
		Usage:  "agentreg validate-name <name> [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if err := requireArgs(args, 1, "agentreg validate-name <name> [flags]"); err != nil {
				return err
			}
			result := nameCheck{Name: args[0], Valid: true}
			if err := validation.CheckName(args[0]); err != nil {
				result.Valid = false
				result.Reason = err.Error()
			}

			if done, err := params.EmitJSON(result); done {
				if err != nil {
					return err
				}
			} else if result.Valid {
				fmt.Fprintf(cli.Stdout, "%s %q\n", styled(cli.Stdout, successStyle, "valid"), result.Name)
			} else {
				fmt.Fprintf(cli.Stdout, "%s %q: %s\n", styled(cli.Stdout, warningStyle, "invalid"), result.Name, result.Reason)
			}
			if !result.Valid {
				return &cli.ExitError{Code: cli.ExitValidation}
			}
			return nil
		},
	}
}
