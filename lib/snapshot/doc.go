// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot moves entries, chains, and links between replicas as
// a single file.
//
// A snapshot stands in for gossip: one replica [Export]s what it holds
// and another [Import]s it. Import never writes directly. Every
// authored entry goes through the receiving replica's acceptance
// pipeline, so a snapshot cannot smuggle in a registration the
// receiver would reject.
//
// # Format
//
// An optional age layer seals the whole stream to X25519 recipients.
// Inside it:
//
//	"AGRS" | version (1 byte) | compression (1 byte) | body
//
// The body is compressed with nothing, LZ4 frames, or zstd, and holds
// a sequence of CBOR frames: a meta frame, then entries, chain headers,
// and links, then an end frame. A stream without its end frame is
// truncated and rejected.
//
// # Entries-only snapshots
//
// With [ExportOptions.EntriesOnly] a snapshot carries registrations
// and the headers that created them, but not the rest of the authors'
// chains. Receivers must validate those registrations with whatever
// chain evidence they already hold, which exercises the
// partial-evidence policy.
package snapshot
