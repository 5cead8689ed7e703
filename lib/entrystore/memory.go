// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entrystore

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/record"
)

// Memory is an in-process Backend. It is safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	entries map[address.Address][]byte
	order   []address.Address

	// outgoing maps a base address to its edges in creation order.
	outgoing map[address.Address][]LinkHandle
	links    map[address.Address]LinkHandle
	linkLog  []LinkHandle

	chains map[address.Address][]chain.Header
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[address.Address][]byte),
		outgoing: make(map[address.Address][]LinkHandle),
		links:    make(map[address.Address]LinkHandle),
		chains:   make(map[address.Address][]chain.Header),
	}
}

func (m *Memory) Commit(ctx context.Context, data []byte) (address.Address, error) {
	if err := ctx.Err(); err != nil {
		return address.Address{}, err
	}
	addr := record.AddressOfBytes(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[addr]; !exists {
		m.entries[addr] = slices.Clone(data)
		m.order = append(m.order, addr)
	}
	return addr, nil
}

func (m *Memory) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, exists := m.entries[addr]
	if !exists {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *Memory) Link(ctx context.Context, base, target address.Address, linkType, tag string) (LinkHandle, error) {
	if err := ctx.Err(); err != nil {
		return LinkHandle{}, err
	}
	handle, err := NewLinkHandle(base, target, linkType, tag)
	if err != nil {
		return LinkHandle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[base]; !exists {
		return LinkHandle{}, &StoreError{Op: "link", Err: missing("base", base)}
	}
	if _, exists := m.entries[target]; !exists {
		return LinkHandle{}, &StoreError{Op: "link", Err: missing("target", target)}
	}
	if _, exists := m.links[handle.Address]; exists {
		return handle, nil
	}
	m.links[handle.Address] = handle
	m.outgoing[base] = append(m.outgoing[base], handle)
	m.linkLog = append(m.linkLog, handle)
	return handle, nil
}

func (m *Memory) Links(ctx context.Context, base address.Address, linkType, tag Match) ([]address.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var targets []address.Address
	for _, handle := range m.outgoing[base] {
		if linkType.Matches(handle.Type) && tag.Matches(handle.Tag) {
			targets = append(targets, handle.Target)
		}
	}
	return targets, nil
}

func (m *Memory) Append(ctx context.Context, header chain.Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	author := header.AuthorAddress()

	m.mu.Lock()
	defer m.mu.Unlock()
	duplicate, err := checkAppend(m.chains[author], header)
	if err != nil || duplicate {
		return err
	}
	m.chains[author] = append(m.chains[author], header)
	return nil
}

func (m *Memory) Headers(ctx context.Context, author address.Address) ([]chain.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.chains[author]), nil
}

func (m *Memory) Authors(ctx context.Context) ([]address.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	authors := make([]address.Address, 0, len(m.chains))
	for author := range m.chains {
		authors = append(authors, author)
	}
	slices.SortFunc(authors, compareAddresses)
	return authors, nil
}

func (m *Memory) Addresses(ctx context.Context) ([]address.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order), nil
}

func (m *Memory) AllLinks(ctx context.Context) ([]LinkHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.linkLog), nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func compareAddresses(a, b address.Address) int {
	return bytes.Compare(a[:], b[:])
}
