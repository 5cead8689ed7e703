// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entrystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/codec"
	"github.com/bureau-foundation/agentreg/lib/sqlitepool"
)

var (
	// ErrNotFound is returned for an address the store does not hold.
	ErrNotFound = errors.New("not found")

	// ErrChainFork is returned when appending a header at a sequence
	// number already occupied by a different header.
	ErrChainFork = errors.New("source chain fork")
)

// Store is the content-addressed entry store and its link graph.
type Store interface {
	// Commit stores data and returns its entry address. Committing
	// bytes that are already present is a no-op returning the same
	// address.
	Commit(ctx context.Context, data []byte) (address.Address, error)

	// Get returns the bytes stored at addr, or ErrNotFound.
	Get(ctx context.Context, addr address.Address) ([]byte, error)

	// Link creates the edge base -> target. Both ends must be
	// committed (ErrNotFound otherwise). Creating an existing edge
	// returns the existing handle.
	Link(ctx context.Context, base, target address.Address, linkType, tag string) (LinkHandle, error)

	// Links returns the targets of edges from base whose type and tag
	// match, in creation order. An unknown base has no links.
	Links(ctx context.Context, base address.Address, linkType, tag Match) ([]address.Address, error)
}

// ChainStore holds agents' source chains.
type ChainStore interface {
	// Append adds header to its author's chain. The header must sit at
	// the next sequence number and link to the current last header.
	// Appending a header identical to the one already at its sequence
	// is a no-op; a different header there is ErrChainFork.
	Append(ctx context.Context, header chain.Header) error

	// Headers returns an author's chain in sequence order, empty if
	// the author is unknown.
	Headers(ctx context.Context, author address.Address) ([]chain.Header, error)

	// Authors returns every agent with a stored chain.
	Authors(ctx context.Context) ([]address.Address, error)
}

// Dumper enumerates a store's full contents. Snapshot export uses it.
type Dumper interface {
	Addresses(ctx context.Context) ([]address.Address, error)
	AllLinks(ctx context.Context) ([]LinkHandle, error)
}

// Backend is a complete local store.
type Backend interface {
	Store
	ChainStore
	Dumper
	Close() error
}

// LinkHandle identifies one edge.
type LinkHandle struct {
	Address address.Address `cbor:"address"`
	Base    address.Address `cbor:"base"`
	Target  address.Address `cbor:"target"`
	Type    string          `cbor:"type"`
	Tag     string          `cbor:"tag"`
}

// linkKey is the hashed body of an edge.
type linkKey struct {
	Base   address.Address `cbor:"base"`
	Target address.Address `cbor:"target"`
	Type   string          `cbor:"type"`
	Tag    string          `cbor:"tag"`
}

// NewLinkHandle computes the handle for an edge. The address is the
// link-domain hash of the edge's fields, so it is the same on every
// replica.
func NewLinkHandle(base, target address.Address, linkType, tag string) (LinkHandle, error) {
	data, err := codec.Marshal(linkKey{Base: base, Target: target, Type: linkType, Tag: tag})
	if err != nil {
		return LinkHandle{}, fmt.Errorf("encoding link: %w", err)
	}
	return LinkHandle{
		Address: address.Link.Hash(data),
		Base:    base,
		Target:  target,
		Type:    linkType,
		Tag:     tag,
	}, nil
}

// Match filters link types and tags.
type Match struct {
	value string
	any   bool
}

// Exactly matches only value. Exactly("") matches the empty tag.
func Exactly(value string) Match {
	return Match{value: value}
}

// Any matches every value.
func Any() Match {
	return Match{any: true}
}

// Matches reports whether value passes the filter.
func (m Match) Matches(value string) bool {
	return m.any || m.value == value
}

func (m Match) String() string {
	if m.any {
		return "*"
	}
	return fmt.Sprintf("%q", m.value)
}

// StoreError wraps a backend failure with the operation that hit it.
// Lookups that simply miss return ErrNotFound unwrapped.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "entrystore: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a store failure that may succeed
// on retry: lock contention or a failure to obtain a connection. A
// cancelled or expired context is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var storeError *StoreError
	if !errors.As(err, &storeError) {
		return false
	}
	if sqlitepool.IsBusy(storeError.Err) {
		return true
	}
	var takeError *sqlitepool.TakeError
	if errors.As(storeError.Err, &takeError) {
		return true
	}
	var transient interface{ Transient() bool }
	return errors.As(storeError.Err, &transient) && transient.Transient()
}
