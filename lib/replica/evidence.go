// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

// ContextFor assembles the evidence this replica has for a proposal
// with the given header. pkg is the chain package shipped with the
// proposal, or nil.
//
// The result is FullChain when every header before header.Seq is known
// (from the local chain store or a verified package) together with the
// user entries they reference. Otherwise it is EntryOnly, and History
// holds whatever prior user entries were found, since a duplicate that
// is visible is conclusive even when others might be missing.
//
// A header that conflicts with the stored chain at its position is an
// error wrapping entrystore.ErrChainFork.
func ContextFor(ctx context.Context, store entrystore.Store, chains entrystore.ChainStore, header chain.Header, pkg *chain.Package) (validation.Context, error) {
	author := header.AuthorAddress()
	result := validation.Context{Agent: author, Lifecycle: validation.EntryOnly}

	stored, err := chains.Headers(ctx, author)
	if err != nil {
		return validation.Context{}, fmt.Errorf("loading chain of %s: %w", address.Agent.Short(author), err)
	}

	if uint64(len(stored)) > header.Seq {
		if err := sameAt(stored[header.Seq], header); err != nil {
			return validation.Context{}, err
		}
	}

	if uint64(len(stored)) >= header.Seq {
		prior := stored[:header.Seq]
		if err := checkPosition(prior, header); err != nil {
			return validation.Context{}, err
		}
		history, complete, err := historyFromStore(ctx, store, prior)
		if err != nil {
			return validation.Context{}, err
		}
		result.History = history
		if complete {
			result.Lifecycle = validation.FullChain
			return result, nil
		}
	} else {
		history, _, err := historyFromStore(ctx, store, stored)
		if err != nil {
			return validation.Context{}, err
		}
		result.History = history
	}

	if pkg != nil {
		if history, ok := historyFromPackage(*pkg, header); ok {
			result.History = history
			result.Lifecycle = validation.FullChain
		}
	}
	return result, nil
}

// checkPosition verifies that header extends prior, the stored chain
// up to its sequence number.
func checkPosition(prior []chain.Header, header chain.Header) error {
	var last *chain.Header
	if len(prior) > 0 {
		last = &prior[len(prior)-1]
	}
	if err := chain.FollowsFrom(last, header); err != nil {
		return fmt.Errorf("%w: %w", entrystore.ErrChainFork, err)
	}
	return nil
}

// sameAt checks that header is the one already stored at its position.
func sameAt(stored, header chain.Header) error {
	storedAddress, err := stored.Address()
	if err != nil {
		return err
	}
	headerAddress, err := header.Address()
	if err != nil {
		return err
	}
	if storedAddress != headerAddress {
		return fmt.Errorf("%w: %s already has a different header at seq %d",
			entrystore.ErrChainFork, address.Agent.Short(header.AuthorAddress()), header.Seq)
	}
	return nil
}

// historyFromStore resolves the user entries referenced by headers.
// complete is false if any of them is missing from the store.
func historyFromStore(ctx context.Context, store entrystore.Store, headers []chain.Header) (history []validation.HistoryItem, complete bool, err error) {
	complete = true
	for _, header := range headers {
		if header.Kind != record.KindUser {
			continue
		}
		data, err := store.Get(ctx, header.Entry)
		if errors.Is(err, entrystore.ErrNotFound) {
			complete = false
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("loading history entry %s: %w", address.Short(header.Entry), err)
		}
		entry, err := record.Decode(data)
		if err != nil {
			complete = false
			continue
		}
		history = append(history, validation.HistoryItem{Address: header.Entry, Op: header.Op, Entry: entry})
	}
	return history, complete, nil
}

// historyFromPackage returns the history a package proves, if the
// package verifies, ends right before header, and carries every user
// entry its headers reference.
func historyFromPackage(pkg chain.Package, header chain.Header) ([]validation.HistoryItem, bool) {
	if uint64(len(pkg.Headers)) != header.Seq {
		return nil, false
	}
	items, err := pkg.Verified()
	if err != nil {
		return nil, false
	}
	if err := checkPosition(pkg.Headers, header); err != nil {
		return nil, false
	}

	var history []validation.HistoryItem
	for _, item := range items {
		if item.Header.Kind != record.KindUser {
			continue
		}
		if item.Entry == nil {
			return nil, false
		}
		history = append(history, validation.HistoryItem{Address: item.Address, Op: item.Header.Op, Entry: *item.Entry})
	}
	return history, true
}
