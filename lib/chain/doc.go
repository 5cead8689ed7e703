// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chain implements agent source chains: the signed, append-only
// sequence of actions each agent has authored.
//
// Every commit an agent makes is described by a [Header] naming the
// operation, the entry kind, and the entry address, linked to the
// previous header by address and signed with the agent's Ed25519 key.
// The chain is the evidence a validator inspects when deciding whether
// an agent has already registered: a replica that holds an agent's
// full chain can check uniqueness with certainty, one that has only
// the proposed header cannot.
//
// A [Package] is the portion of a chain an author ships alongside a
// replicated entry so that receivers without the chain can still
// validate with full evidence. [VerifyChain] checks a header sequence
// for contiguity, linkage, single authorship, and valid signatures.
package chain
