// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package record defines the two record shapes stored in the entry
// store, users and the anchor, and their content addressing.
//
// An [Entry] is a tagged union: Kind names the variant and exactly one
// of User or Anchor is set. The wire form is a deterministic CBOR map
// {"kind": ..., "user"|"anchor": {...}}, and an entry's address is the
// entry-domain BLAKE3 hash of those bytes ([AddressOf]). Two users with
// the same agent and name therefore share one address, and the same
// agent under two names yields two addresses.
//
// [Decode] is strict about shape: an unknown kind, a missing body, or a
// body for the wrong kind is a [DecodeError], never a panic. Readers
// skip such entries and report them as warnings.
package record
