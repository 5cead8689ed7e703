// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package anchor maintains the well-known record that every
// registration links from.
//
// The anchor's content is fixed, so its address is a constant anyone
// can compute. There is no directory keeper: the first writer to
// commit it creates it, and every later commit of the same bytes is a
// no-op in a content-addressed store. Registrations attach to it with
// typed links rather than by editing a shared list, so concurrent
// registrations never contend on a single writable record.
package anchor

import (
	"context"
	"fmt"
	"sync"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
)

const (
	// LinkTypeRegistration labels anchor -> user edges.
	LinkTypeRegistration = "user_registration"

	// LinkTypeTransaction labels edges from a user to the transactions
	// it authors. Nothing in this module creates them; readers filter
	// by type so that they never mistake one for a registration.
	LinkTypeTransaction = "from_user"

	// RegistrationTag is the tag on registration links.
	RegistrationTag = ""
)

var canonical = sync.OnceValues(func() ([]byte, error) {
	return record.Encode(record.AnchorEntry())
})

// Bytes returns the canonical encoding of the anchor entry.
func Bytes() []byte {
	data, err := canonical()
	if err != nil {
		// The anchor is a constant; failing to encode it is a build
		// defect, not a runtime condition.
		panic("anchor: encoding canonical anchor: " + err.Error())
	}
	return data
}

// Address returns the anchor's address.
func Address() address.Address {
	return record.AddressOfBytes(Bytes())
}

// IsCanonical reports whether data is the canonical anchor.
func IsCanonical(data []byte) bool {
	return record.AddressOfBytes(data) == Address()
}

// Committer is the subset of the entry store EnsureCommitted needs.
type Committer interface {
	Commit(ctx context.Context, data []byte) (address.Address, error)
}

// EnsureCommitted commits the anchor and returns its address. It is
// safe to call any number of times, concurrently, from any agent.
func EnsureCommitted(ctx context.Context, store Committer) (address.Address, error) {
	addr, err := store.Commit(ctx, Bytes())
	if err != nil {
		return address.Address{}, fmt.Errorf("committing anchor: %w", err)
	}
	if addr != Address() {
		return address.Address{}, fmt.Errorf("store committed the anchor at %s, expected %s",
			address.Short(addr), address.Short(Address()))
	}
	return addr, nil
}

// Linker is the subset of the entry store Attach needs.
type Linker interface {
	Link(ctx context.Context, base, target address.Address, linkType, tag string) (entrystore.LinkHandle, error)
}

// Attach links user from anchor with a registration link. It checks
// nothing about the user record: the caller must already have
// committed it and had it accepted. Attaching twice returns the same
// handle.
func Attach(ctx context.Context, store Linker, anchor, user address.Address) (entrystore.LinkHandle, error) {
	handle, err := store.Link(ctx, anchor, user, LinkTypeRegistration, RegistrationTag)
	if err != nil {
		return entrystore.LinkHandle{}, fmt.Errorf("attaching %s to anchor: %w", address.Short(user), err)
	}
	return handle, nil
}

// Lister is the subset of the entry store Targets needs.
type Lister interface {
	Links(ctx context.Context, base address.Address, linkType, tag entrystore.Match) ([]address.Address, error)
}

// Targets returns the registrations attached to the anchor, with
// duplicates removed, in the order the store returned them.
func Targets(ctx context.Context, store Lister) ([]address.Address, error) {
	links, err := store.Links(ctx, Address(), entrystore.Exactly(LinkTypeRegistration), entrystore.Any())
	if err != nil {
		return nil, fmt.Errorf("listing anchor links: %w", err)
	}
	seen := make(map[address.Address]bool, len(links))
	targets := links[:0]
	for _, target := range links {
		if seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return targets, nil
}
