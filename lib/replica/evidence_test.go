// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"context"
	"testing"

	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

func TestContextFor(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)

	first, firstData := forge(t, alice, nil, record.UserEntry(alice.Address(), "Alice"))
	anchorHeader, _ := forge(t, alice, []chain.Header{first}, record.AnchorEntry())
	third, _ := forge(t, alice, []chain.Header{first, anchorHeader}, record.UserEntry(alice.Address(), "Alicia"))

	t.Run("genesis is full", func(t *testing.T) {
		store := entrystore.NewMemory()
		evidence, err := ContextFor(ctx, store, store, first, nil)
		if err != nil {
			t.Fatal(err)
		}
		if evidence.Lifecycle != validation.FullChain || len(evidence.History) != 0 {
			t.Errorf("evidence = %v with %d items, want full and empty", evidence.Lifecycle, len(evidence.History))
		}
		if evidence.Agent != alice.Address() {
			t.Errorf("Agent = %s, want %s", evidence.Agent, alice.Address())
		}
	})

	t.Run("unknown chain is entry only", func(t *testing.T) {
		store := entrystore.NewMemory()
		evidence, err := ContextFor(ctx, store, store, third, nil)
		if err != nil {
			t.Fatal(err)
		}
		if evidence.Lifecycle != validation.EntryOnly {
			t.Errorf("Lifecycle = %v, want entry-only", evidence.Lifecycle)
		}
	})

	t.Run("stored chain is full", func(t *testing.T) {
		store := entrystore.NewMemory()
		if _, err := store.Commit(ctx, firstData); err != nil {
			t.Fatal(err)
		}
		for _, header := range []chain.Header{first, anchorHeader} {
			if err := store.Append(ctx, header); err != nil {
				t.Fatal(err)
			}
		}
		evidence, err := ContextFor(ctx, store, store, third, nil)
		if err != nil {
			t.Fatal(err)
		}
		if evidence.Lifecycle != validation.FullChain {
			t.Errorf("Lifecycle = %v, want full-chain", evidence.Lifecycle)
		}
		if len(evidence.History) != 1 || evidence.History[0].Entry.User.Name != "Alice" {
			t.Errorf("History = %+v, want the Alice registration", evidence.History)
		}
	})

	t.Run("stored chain missing entry falls back", func(t *testing.T) {
		store := entrystore.NewMemory()
		for _, header := range []chain.Header{first, anchorHeader} {
			if err := store.Append(ctx, header); err != nil {
				t.Fatal(err)
			}
		}
		evidence, err := ContextFor(ctx, store, store, third, nil)
		if err != nil {
			t.Fatal(err)
		}
		if evidence.Lifecycle != validation.EntryOnly {
			t.Errorf("Lifecycle = %v, want entry-only", evidence.Lifecycle)
		}
	})

	t.Run("package without user entry is not evidence", func(t *testing.T) {
		store := entrystore.NewMemory()
		pkg := &chain.Package{Headers: []chain.Header{first, anchorHeader}}
		evidence, err := ContextFor(ctx, store, store, third, pkg)
		if err != nil {
			t.Fatal(err)
		}
		if evidence.Lifecycle != validation.EntryOnly {
			t.Errorf("Lifecycle = %v, want entry-only", evidence.Lifecycle)
		}
	})

	t.Run("short package is not evidence", func(t *testing.T) {
		store := entrystore.NewMemory()
		pkg := &chain.Package{Headers: []chain.Header{first}, Entries: [][]byte{firstData}}
		evidence, err := ContextFor(ctx, store, store, third, pkg)
		if err != nil {
			t.Fatal(err)
		}
		if evidence.Lifecycle != validation.EntryOnly {
			t.Errorf("Lifecycle = %v, want entry-only", evidence.Lifecycle)
		}
	})

	t.Run("complete package is full", func(t *testing.T) {
		store := entrystore.NewMemory()
		pkg := &chain.Package{Headers: []chain.Header{first, anchorHeader}, Entries: [][]byte{firstData}}
		evidence, err := ContextFor(ctx, store, store, third, pkg)
		if err != nil {
			t.Fatal(err)
		}
		if evidence.Lifecycle != validation.FullChain || len(evidence.History) != 1 {
			t.Errorf("evidence = %v with %d items, want full with one", evidence.Lifecycle, len(evidence.History))
		}
	})
}
