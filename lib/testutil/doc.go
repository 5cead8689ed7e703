// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for agentreg packages.
//
// [RequireReceive] and [RequireClosed] wrap the
// select-with-timeout pattern so that concurrency tests (racing anchor
// commits, writers blocked in backoff) fail instead of hanging.
//
// [UniqueID] generates distinct names for tests that register many
// agents against one store.
//
// All helpers call t.Fatalf on failure rather than returning errors.
// This package has no agentreg-internal dependencies.
package testutil
