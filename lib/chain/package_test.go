// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/record"
)

func TestPackageVerified(t *testing.T) {
	id := testIdentity(t, 1)

	user := record.UserEntry(id.Address(), "Alice")
	userData, err := record.Encode(user)
	if err != nil {
		t.Fatal(err)
	}
	userAddress := record.AddressOfBytes(userData)

	first, err := Next(nil, OpCreate, record.KindUser, userAddress, address.Address{}, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Sign(id); err != nil {
		t.Fatal(err)
	}
	// An anchor header whose entry is not shipped.
	anchorAddress, err := record.AddressOf(record.AnchorEntry())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Next([]Header{first}, OpCreate, record.KindAnchor, anchorAddress, address.Address{}, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Sign(id); err != nil {
		t.Fatal(err)
	}

	pkg := Package{Headers: []Header{first, second}, Entries: [][]byte{userData}}
	items, err := pkg.Verified()
	if err != nil {
		t.Fatalf("Verified: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Entry == nil || items[0].Entry.User.Name != "Alice" {
		t.Errorf("item 0 entry = %+v, want the Alice user", items[0].Entry)
	}
	if items[0].Address != userAddress {
		t.Errorf("item 0 address = %s, want %s", items[0].Address, userAddress)
	}
	if items[1].Entry != nil {
		t.Error("item 1 has an entry although none was shipped")
	}
}

func TestPackageRejectsKindMismatch(t *testing.T) {
	id := testIdentity(t, 1)

	userData, err := record.Encode(record.UserEntry(id.Address(), "Alice"))
	if err != nil {
		t.Fatal(err)
	}
	header, err := Next(nil, OpCreate, record.KindAnchor, record.AddressOfBytes(userData), address.Address{}, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if err := header.Sign(id); err != nil {
		t.Fatal(err)
	}

	pkg := Package{Headers: []Header{header}, Entries: [][]byte{userData}}
	if _, err := pkg.Verified(); err == nil {
		t.Error("Verified accepted an entry whose kind disagrees with its header")
	}
}

func TestPackageRejectsBrokenChain(t *testing.T) {
	id := testIdentity(t, 1)
	headers := buildChain(t, id, 3)

	pkg := Package{Headers: headers[1:]}
	if _, err := pkg.Verified(); !errors.Is(err, ErrBrokenChain) {
		t.Errorf("Verified = %v, want ErrBrokenChain", err)
	}
}
