// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent holds an agent's signing identity.
//
// An [Identity] is an Ed25519 key pair. The agent identifier that
// appears in user records and chain headers is the agent-domain hash of
// the public key ([address.OfAgentKey]), so identifiers have the same
// shape as entry addresses but can never collide with them.
//
// Keys are stored as a CBOR document in a 0600 file. [LoadOrGenerate]
// is the usual entry point; [Load] wraps [fs.ErrNotExist] so callers
// can tell a missing key from a corrupt one.
package agent
