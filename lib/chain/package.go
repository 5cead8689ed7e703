// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"fmt"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/record"
)

// Package is a chain prefix shipped with a replicated entry: the
// author's headers and the encoded entries they reference. Only entries
// a validator needs (users) have to be present.
type Package struct {
	Headers []Header `cbor:"headers"`
	Entries [][]byte `cbor:"entries"`
}

// Item is one verified element of a chain: its header and, when the
// entry bytes were available, the decoded entry.
type Item struct {
	Header  Header
	Address address.Address
	Entry   *record.Entry
}

// Verified checks the package and returns its items. The package must
// be a complete chain prefix (see VerifyChain). Entry bytes are matched
// to headers by address; headers whose entry is absent yield items with
// a nil Entry, and entries that fail to decode are an error since they
// were signed by the author.
func (p Package) Verified() ([]Item, error) {
	if err := VerifyChain(p.Headers); err != nil {
		return nil, err
	}

	entries := make(map[address.Address][]byte, len(p.Entries))
	for _, data := range p.Entries {
		entries[record.AddressOfBytes(data)] = data
	}

	items := make([]Item, len(p.Headers))
	for i, header := range p.Headers {
		items[i] = Item{Header: header, Address: header.Entry}
		data, ok := entries[header.Entry]
		if !ok {
			continue
		}
		entry, err := record.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("package entry for header %d: %w", header.Seq, err)
		}
		if entry.Kind != header.Kind {
			return nil, fmt.Errorf("package entry for header %d is %s, header says %s", header.Seq, entry.Kind, header.Kind)
		}
		items[i].Entry = &entry
	}
	return items, nil
}
