// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry registers agents as users and lists who has
// registered.
//
// [Writer.Register] is a two-phase publish. The user record is first
// committed through the agent's replica, which validates it. Only
// after acceptance is the anchor ensured and the record linked from
// it. A rejected registration therefore never appears in the listing.
// If the second phase fails, the record exists but is not yet
// discoverable; Register returns a [*PartialRegistrationError] and
// [Writer.Repair] re-runs the second phase, which is idempotent.
// Transient store failures in the second phase are retried with
// backoff per [RetryPolicy].
//
// [Reader.ListUsers] walks the anchor's registration links and decodes
// every target. Targets that are missing or malformed are reported as
// [Warning] values and skipped, never as an error. Order follows the
// store and is not meaningful across replicas; use [SortByName] or
// [SortByAddress] for a stable order.
package registry
