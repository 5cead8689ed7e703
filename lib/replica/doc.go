// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package replica is one agent's node: its identity, its local store,
// and the acceptance pipeline every entry passes through.
//
// Validation is not a callback the store invokes. [Replica.Commit]
// (entries this agent authors) and [Replica.Receive] (entries other
// agents author) gather evidence with [ContextFor], call
// lib/validation synchronously, and write to the store only on
// acceptance. A rejected entry leaves no trace.
//
// Evidence is replica-local. A replica always has full evidence for
// its own chain. For another agent's entry it has full evidence if it
// already holds that agent's chain up to the proposal, or if the
// proposal arrives with a [chain.Package] that verifies and ends
// immediately before it. Otherwise the entry is judged on its own and
// [Acceptance.FullEvidence] is false: the acceptance is local and may
// be contradicted once the author's chain propagates.
package replica
