// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"filippo.io/age"

	"github.com/bureau-foundation/agentreg/cmd/agentreg/cli"
	"github.com/bureau-foundation/agentreg/lib/snapshot"
)

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Export or import registry snapshots",
		Description: `Exchange the registry with another replica as a file.

A snapshot holds entries, source chain headers, and links. Importing
replays every chain through validation, so a snapshot cannot smuggle in
a second registration for an agent. Snapshots may be compressed and
sealed to age recipients.`,
		Subcommands: []*cli.Command{
			snapshotExportCommand(),
			snapshotImportCommand(),
		},
	}
}

type exportParams struct {
	configFlags
	cli.JSONOutput
	Compression string   `json:"compression" flag:"compression" desc:"none, lz4, or zstd (default: snapshot.compression from config)"`
	Recipients  []string `json:"recipients" flag:"recipient,r" desc:"seal to this age X25519 recipient (repeatable)"`
	EntriesOnly bool     `json:"entries_only" flag:"entries-only" desc:"omit source chains except the headers that created each registration"`
}

func snapshotExportCommand() *cli.Command {
	var params exportParams
	return &cli.Command{
		Name:    "export",
		Summary: "Write a snapshot of the local store",
		Usage:   "agentreg snapshot export <file|-> [flags]",
		Examples: []cli.Example{
			{Description: "Sealed export", Command: "agentreg snapshot export registry.agrs -r age1..."},
			{Description: "Uncompressed to stdout", Command: "agentreg snapshot export - --compression none"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agentreg snapshot export <file|-> [flags]"); err != nil {
				return err
			}

			var recipients []age.Recipient
			for _, text := range params.Recipients {
				recipient, err := age.ParseX25519Recipient(text)
				if err != nil {
					return cli.Validation("--recipient %q: %v", text, err)
				}
				recipients = append(recipients, recipient)
			}

			s, err := openStore(params.configFlags, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			compressionName := params.Compression
			if compressionName == "" {
				compressionName = s.config.Snapshot.Compression
			}
			compression, err := snapshot.ParseCompression(compressionName)
			if err != nil {
				return cli.Validation("%v", err)
			}

			output, finish, err := openOutput(args[0])
			if err != nil {
				return err
			}
			stats, err := snapshot.Export(ctx, output, s.backend, snapshot.ExportOptions{
				Compression: compression,
				Recipients:  recipients,
				EntriesOnly: params.EntriesOnly,
			})
			if err := finish(err); err != nil {
				return classify(err)
			}
			logger.Info("snapshot exported",
				"entries", stats.Entries,
				"headers", stats.Headers,
				"links", stats.Links,
				"compression", compression,
				"sealed", len(recipients) > 0,
			)

			if args[0] == "-" {
				return nil
			}
			if done, err := params.EmitJSON(stats); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "wrote %s: %d entries, %d headers, %d links\n",
				args[0], stats.Entries, stats.Headers, stats.Links)
			return nil
		},
	}
}

// openOutput opens path for writing, or stdout for "-". finish closes
// the output and, for files, removes it if err is non-nil.
func openOutput(path string) (io.Writer, func(error) error, error) {
	if path == "-" {
		return cli.Stdout, func(err error) error { return err }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	finish := func(err error) error {
		closeErr := file.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
		}
		return err
	}
	return file, finish, nil
}

type importParams struct {
	configFlags
	cli.JSONOutput
	IdentityFiles []string `json:"identity_files" flag:"identity,i" desc:"age identity file for sealed snapshots (repeatable)"`
}

func snapshotImportCommand() *cli.Command {
	var params importParams
	return &cli.Command{
		Name:    "import",
		Summary: "Validate and merge a snapshot into the local store",
		Description: `Replay a snapshot's source chains through this replica's validation and
store what passes. Registrations that conflict with what this replica
knows are rejected; registrations whose chains are missing from the
snapshot are accepted provisionally, or rejected when
validation.partial_evidence is "reject".`,
		Usage:  "agentreg snapshot import <file|-> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 1, "agentreg snapshot import <file|-> [flags]"); err != nil {
				return err
			}

			identities, err := readIdentities(params.IdentityFiles)
			if err != nil {
				return err
			}

			s, err := openReplica(params.configFlags, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			var input io.Reader = os.Stdin
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				input = file
			}

			report, err := snapshot.Import(ctx, input, s.replica, snapshot.ImportOptions{
				Identities: identities,
				Logger:     s.logger,
			})
			switch {
			case errors.Is(err, snapshot.ErrSealed):
				return (&cli.ToolError{Category: cli.CategoryValidation, Err: err}).
					WithHint("Pass --identity with an age identity file.")
			case errors.Is(err, snapshot.ErrNotSnapshot), errors.Is(err, snapshot.ErrTruncated):
				return &cli.ToolError{Category: cli.CategoryValidation, Err: err}
			case err != nil:
				return classify(err)
			}

			if done, err := params.EmitJSON(report); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "accepted %d (%d provisional, %d already present), rejected %d, skipped %d, links %d\n",
				report.Accepted, report.Provisional, report.Duplicates, report.Rejected, report.Skipped, report.Links)
			return nil
		},
	}
}

// readIdentities parses age identity files.
func readIdentities(paths []string) ([]age.Identity, error) {
	var identities []age.Identity
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		parsed, err := age.ParseIdentities(file)
		file.Close()
		if err != nil {
			return nil, cli.Validation("identity file %s: %v", path, err)
		}
		identities = append(identities, parsed...)
	}
	return identities, nil
}
