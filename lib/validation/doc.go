// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package validation decides whether a proposed registration may be
// accepted by a replica.
//
// [Validate] is a pure function of a [Proposal] (the signed header and
// the decoded entry) and a [Context] (the evidence this replica holds
// about the authoring agent). It never touches a store: the replica
// gathers the evidence, calls Validate synchronously on its commit
// path, and only writes when Validate returns nil.
//
// The checks run in order and stop at the first failure:
//
//  1. Only creates are accepted. Registrations are immutable, and so
//     is the anchor.
//  2. The user name must be 1 to 50 code points of valid UTF-8.
//  3. The user's agent field must be the header's verified author.
//  4. The agent must not already have a user record in its chain.
//
// Uniqueness is only certain when the replica holds the author's full
// chain ([FullChain]). With only the proposed entry ([EntryOnly]) the
// [PartialEvidencePolicy] decides: [AcceptPartial] accepts and relies
// on full-evidence replicas to catch duplicates as the chain
// propagates, [RejectPartial] refuses until the evidence arrives.
// Under either policy, a prior registration that does appear in the
// supplied history still rejects, since it is conclusive on its own.
//
// Every rejection is a [*Rejection] that unwraps to one of the
// sentinel errors, so callers match with errors.Is.
package validation
