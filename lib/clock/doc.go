// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Chain headers are stamped with Clock.Now and the registration writer
// backs off between store retries with Clock.After. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a clock that advances only when Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { result <- writer.Register(ctx, "Alice") }()
//	c.WaitForTimers(1)         // writer is backing off
//	c.Advance(time.Second)     // release the retry
package clock
