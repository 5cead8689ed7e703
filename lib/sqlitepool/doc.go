// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the SQLite connection pool behind the
// persistent entry store.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the same
// pragmas to every connection: WAL journaling so listings never block
// registrations, NORMAL synchronous, a five second busy timeout, and
// in-memory temp storage. An optional idempotent schema script runs on
// each connection before it is handed out.
//
// [Pool.Do] and [Pool.Transact] cover the two common shapes: a
// borrowed connection for reads, and an IMMEDIATE transaction for
// read-modify-write sequences such as appending to a source chain.
// [IsBusy] and [TakeError] let callers classify failures as retryable.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(stateDir, "entries.db"),
//	    Logger: logger,
//	    Schema: schema,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
