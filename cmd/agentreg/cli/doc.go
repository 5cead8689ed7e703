// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for agentreg.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a parameter struct whose tagged fields
// become pflag flags (see [BindFlags]), and a Run function receiving a
// context and a logger. Commands are assembled into a tree by the
// commands package and dispatched via [Command.Execute], which handles
// flag parsing, subcommand routing, and help output with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// Commands report failures as [ToolError] values carrying an
// [ErrorCategory]; [ExitCode] maps the category to the process exit
// status. [ExitError] requests a specific exit status for commands
// that have already printed their own output.
package cli
