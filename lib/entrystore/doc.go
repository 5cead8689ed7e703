// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package entrystore holds the content-addressed entries, the typed
// link graph between them, and the agents' source chains.
//
// [Store] is the entry and link half: Commit is idempotent for
// identical bytes, Get returns [ErrNotFound] for unknown addresses,
// and Link creates a typed, tagged edge between two committed entries.
// Links are themselves content addressed, so creating the same edge
// twice yields the same [LinkHandle] and no duplicate. [ChainStore]
// holds the per-agent header sequences and refuses forks.
//
// Two implementations are provided. [Memory] keeps everything in maps
// and is what tests and short-lived tools use. [SQLite] persists to a
// database file through lib/sqlitepool and is what the CLI opens.
// Both satisfy [Backend].
package entrystore
