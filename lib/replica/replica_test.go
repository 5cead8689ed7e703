// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/agent"
	"github.com/bureau-foundation/agentreg/lib/anchor"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/clock"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testIdentity(t *testing.T, fill byte) *agent.Identity {
	t.Helper()
	id, err := agent.FromSeed(bytes.Repeat([]byte{fill}, ed25519.SeedSize))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newReplica(t *testing.T, id *agent.Identity, policy validation.PartialEvidencePolicy) (*Replica, *entrystore.Memory) {
	t.Helper()
	store := entrystore.NewMemory()
	r, err := New(Config{
		Identity:  id,
		Store:     store,
		Chains:    store,
		Clock:     clock.Fake(epoch),
		Validator: validation.Validator{PartialEvidence: policy},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, store
}

// forge builds a signed header for entry on top of headers without any
// validation, the way a misbehaving author would.
func forge(t *testing.T, id *agent.Identity, headers []chain.Header, entry record.Entry) (chain.Header, []byte) {
	t.Helper()
	data, err := record.Encode(entry)
	if err != nil {
		t.Fatal(err)
	}
	header, err := chain.Next(headers, chain.OpCreate, entry.Kind, record.AddressOfBytes(data), address.Address{}, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if err := header.Sign(id); err != nil {
		t.Fatal(err)
	}
	return header, data
}

func TestNewRequiresCollaborators(t *testing.T) {
	store := entrystore.NewMemory()
	id := testIdentity(t, 1)
	for name, cfg := range map[string]Config{
		"identity": {Store: store, Chains: store},
		"store":    {Identity: id, Chains: store},
		"chains":   {Identity: id, Store: store},
	} {
		if _, err := New(cfg); err == nil {
			t.Errorf("New without %s succeeded", name)
		}
	}
}

func TestCommitUser(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	r, store := newReplica(t, alice, validation.AcceptPartial)

	committed, err := r.Commit(ctx, chain.OpCreate, record.UserEntry(alice.Address(), "Alice"))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed.Replayed {
		t.Error("first commit reported as a replay")
	}
	if committed.Header.Seq != 0 || committed.Header.Entry != committed.Address {
		t.Errorf("header = seq %d entry %s, want seq 0 for %s", committed.Header.Seq, committed.Header.Entry, committed.Address)
	}

	data, err := store.Get(ctx, committed.Address)
	if err != nil {
		t.Fatalf("entry not stored: %v", err)
	}
	user, err := record.DecodeUser(data)
	if err != nil || user.Name != "Alice" {
		t.Errorf("stored user = %+v, %v", user, err)
	}

	headers, err := r.Chain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 1 {
		t.Errorf("own chain has %d headers, want 1", len(headers))
	}
}

func TestCommitReplay(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	r, _ := newReplica(t, alice, validation.AcceptPartial)
	entry := record.UserEntry(alice.Address(), "Alice")

	first, err := r.Commit(ctx, chain.OpCreate, entry)
	if err != nil {
		t.Fatal(err)
	}
	again, err := r.Commit(ctx, chain.OpCreate, entry)
	if err != nil {
		t.Fatalf("replayed Commit: %v", err)
	}
	if !again.Replayed || again.Address != first.Address || again.Header.Seq != first.Header.Seq {
		t.Errorf("replay = %+v, want a replay of seq %d", again, first.Header.Seq)
	}
	headers, err := r.Chain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 1 {
		t.Errorf("replay appended a header: chain length %d", len(headers))
	}
}

func TestCommitDuplicateLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	r, store := newReplica(t, alice, validation.AcceptPartial)

	if _, err := r.Commit(ctx, chain.OpCreate, record.UserEntry(alice.Address(), "Alice")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Commit(ctx, chain.OpCreate, record.UserEntry(alice.Address(), "Alicia"))
	if !errors.Is(err, validation.ErrDuplicateAgent) {
		t.Fatalf("second registration = %v, want ErrDuplicateAgent", err)
	}

	alicia, err := record.AddressOf(record.UserEntry(alice.Address(), "Alicia"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, alicia); !errors.Is(err, entrystore.ErrNotFound) {
		t.Errorf("rejected entry was stored (Get = %v)", err)
	}
	headers, err := r.Chain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 1 {
		t.Errorf("rejected commit appended a header: chain length %d", len(headers))
	}
}

func TestCommitRejectsModification(t *testing.T) {
	alice := testIdentity(t, 1)
	r, _ := newReplica(t, alice, validation.AcceptPartial)

	_, err := r.Commit(context.Background(), chain.OpDelete, record.UserEntry(alice.Address(), "Alice"))
	if !errors.Is(err, validation.ErrImmutable) {
		t.Errorf("delete = %v, want ErrImmutable", err)
	}
}

func TestCommitRejectsImpersonation(t *testing.T) {
	alice := testIdentity(t, 1)
	bob := testIdentity(t, 2)
	r, _ := newReplica(t, alice, validation.AcceptPartial)

	_, err := r.Commit(context.Background(), chain.OpCreate, record.UserEntry(bob.Address(), "Bob"))
	if !errors.Is(err, validation.ErrAuthorship) {
		t.Errorf("registering for another agent = %v, want ErrAuthorship", err)
	}
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	r, _ := newReplica(t, alice, validation.AcceptPartial)

	addr, err := r.Publish(ctx, record.AnchorEntry())
	if err != nil {
		t.Fatalf("Publish(anchor): %v", err)
	}
	if addr != anchor.Address() {
		t.Errorf("Publish = %s, want the anchor address", addr)
	}

	forged := record.Entry{Kind: record.KindAnchor, Anchor: &record.Anchor{Payload: "admins"}}
	if _, err := r.Publish(ctx, forged); !validation.IsRejection(err) {
		t.Errorf("Publish(non-canonical anchor) = %v, want a rejection", err)
	}
	if _, err := r.Publish(ctx, record.UserEntry(alice.Address(), "Alice")); !validation.IsRejection(err) {
		t.Errorf("Publish(user) = %v, want a rejection", err)
	}
}

func TestReceiveWithPackage(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	bob := testIdentity(t, 2)
	aliceReplica, _ := newReplica(t, alice, validation.AcceptPartial)
	bobReplica, bobStore := newReplica(t, bob, validation.RejectPartial)

	committed, err := aliceReplica.Commit(ctx, chain.OpCreate, record.UserEntry(alice.Address(), "Alice"))
	if err != nil {
		t.Fatal(err)
	}
	incoming, err := aliceReplica.Share(ctx, committed.Address)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	acceptance, err := bobReplica.Receive(ctx, incoming)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !acceptance.FullEvidence {
		t.Error("seq 0 entry should be accepted with full evidence")
	}
	if acceptance.Duplicate {
		t.Error("first receipt reported as duplicate")
	}

	headers, err := bobStore.Headers(ctx, alice.Address())
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 1 {
		t.Errorf("bob holds %d of alice's headers, want 1", len(headers))
	}

	again, err := bobReplica.Receive(ctx, incoming)
	if err != nil {
		t.Fatalf("second Receive: %v", err)
	}
	if !again.Duplicate {
		t.Error("second receipt not reported as duplicate")
	}
}

func TestReceiveDuplicateWithFullEvidence(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	bob := testIdentity(t, 2)
	bobReplica, bobStore := newReplica(t, bob, validation.AcceptPartial)

	// Alice bypasses her own validator and authors two registrations.
	first, firstData := forge(t, alice, nil, record.UserEntry(alice.Address(), "Alice"))
	second, secondData := forge(t, alice, []chain.Header{first}, record.UserEntry(alice.Address(), "Alicia"))

	pkg := &chain.Package{Headers: []chain.Header{first}, Entries: [][]byte{firstData}}
	_, err := bobReplica.Receive(ctx, Incoming{Header: second, Entry: secondData, Package: pkg})
	if !errors.Is(err, validation.ErrDuplicateAgent) {
		t.Fatalf("Receive(second registration with package) = %v, want ErrDuplicateAgent", err)
	}
	if _, err := bobStore.Get(ctx, second.Entry); !errors.Is(err, entrystore.ErrNotFound) {
		t.Error("rejected entry was stored")
	}
}

func TestReceiveDuplicateFromStoredChain(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	bob := testIdentity(t, 2)
	bobReplica, _ := newReplica(t, bob, validation.AcceptPartial)

	first, firstData := forge(t, alice, nil, record.UserEntry(alice.Address(), "Alice"))
	second, secondData := forge(t, alice, []chain.Header{first}, record.UserEntry(alice.Address(), "Alicia"))

	if _, err := bobReplica.Receive(ctx, Incoming{Header: first, Entry: firstData}); err != nil {
		t.Fatalf("Receive(first): %v", err)
	}
	// No package this time: bob already holds alice's chain.
	_, err := bobReplica.Receive(ctx, Incoming{Header: second, Entry: secondData})
	if !errors.Is(err, validation.ErrDuplicateAgent) {
		t.Fatalf("Receive(second) = %v, want ErrDuplicateAgent", err)
	}
}

func TestReceivePartialEvidence(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)

	first, _ := forge(t, alice, nil, record.UserEntry(alice.Address(), "Alice"))
	second, secondData := forge(t, alice, []chain.Header{first}, record.UserEntry(alice.Address(), "Alicia"))
	incoming := Incoming{Header: second, Entry: secondData}

	t.Run("accept", func(t *testing.T) {
		r, store := newReplica(t, testIdentity(t, 2), validation.AcceptPartial)
		acceptance, err := r.Receive(ctx, incoming)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if acceptance.FullEvidence {
			t.Error("acceptance without alice's chain claims full evidence")
		}
		// The header is not stored: its predecessor is unknown.
		headers, err := store.Headers(ctx, alice.Address())
		if err != nil {
			t.Fatal(err)
		}
		if len(headers) != 0 {
			t.Errorf("stored %d headers across a gap", len(headers))
		}
	})

	t.Run("reject", func(t *testing.T) {
		r, _ := newReplica(t, testIdentity(t, 2), validation.RejectPartial)
		_, err := r.Receive(ctx, incoming)
		if !errors.Is(err, validation.ErrInsufficientEvidence) {
			t.Errorf("Receive = %v, want ErrInsufficientEvidence", err)
		}
	})
}

func TestReceiveFork(t *testing.T) {
	ctx := context.Background()
	alice := testIdentity(t, 1)
	bobReplica, _ := newReplica(t, testIdentity(t, 2), validation.AcceptPartial)

	// Two processes with alice's key each authored a seq 0.
	left, leftData := forge(t, alice, nil, record.UserEntry(alice.Address(), "Alice"))
	right, rightData := forge(t, alice, nil, record.UserEntry(alice.Address(), "Alicia"))

	if _, err := bobReplica.Receive(ctx, Incoming{Header: left, Entry: leftData}); err != nil {
		t.Fatal(err)
	}
	_, err := bobReplica.Receive(ctx, Incoming{Header: right, Entry: rightData})
	if !errors.Is(err, entrystore.ErrChainFork) {
		t.Errorf("Receive(fork) = %v, want ErrChainFork", err)
	}
}

func TestReceiveMalformedEntry(t *testing.T) {
	alice := testIdentity(t, 1)
	r, _ := newReplica(t, testIdentity(t, 2), validation.AcceptPartial)
	header, _ := forge(t, alice, nil, record.UserEntry(alice.Address(), "Alice"))

	_, err := r.Receive(context.Background(), Incoming{Header: header, Entry: []byte{0xff}})
	var decodeError *record.DecodeError
	if !errors.As(err, &decodeError) {
		t.Fatalf("Receive(garbage) = %v, want *record.DecodeError", err)
	}
	if decodeError.Address.IsZero() {
		t.Error("DecodeError does not carry the entry address")
	}
}

func TestReceiveRejectsBadProvenanceWithoutWriting(t *testing.T) {
	alice := testIdentity(t, 1)
	spam := record.Entry{Kind: record.KindAnchor, Anchor: &record.Anchor{Payload: "spam"}}
	data, err := record.Encode(spam)
	if err != nil {
		t.Fatal(err)
	}
	spamAddress := record.AddressOfBytes(data)

	signed, _ := forge(t, alice, nil, spam)
	tampered := signed
	tampered.Signature = bytes.Clone(signed.Signature)
	tampered.Signature[0] ^= 0xff

	tests := []struct {
		name   string
		header chain.Header
		want   error
	}{
		{
			name:   "unsigned",
			header: chain.Header{Seq: 0, Op: chain.OpCreate, Kind: record.KindAnchor, Entry: spamAddress, Timestamp: epoch},
			want:   validation.ErrAuthorship,
		},
		{"tampered signature", tampered, validation.ErrAuthorship},
		{"signed non-canonical anchor", signed, validation.ErrMalformed},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r, store := newReplica(t, testIdentity(t, 2), validation.AcceptPartial)

			_, err := r.Receive(context.Background(), Incoming{Header: test.header, Entry: data})
			if !validation.IsRejection(err) || !errors.Is(err, test.want) {
				t.Fatalf("Receive = %v, want a rejection wrapping %v", err, test.want)
			}
			if _, err := store.Get(context.Background(), spamAddress); !errors.Is(err, entrystore.ErrNotFound) {
				t.Errorf("rejected entry was stored: Get = %v", err)
			}
			headers, err := store.Headers(context.Background(), alice.Address())
			if err != nil {
				t.Fatal(err)
			}
			if len(headers) != 0 {
				t.Errorf("rejected header was appended: %d headers", len(headers))
			}
		})
	}
}

func TestShareUnknownEntry(t *testing.T) {
	alice := testIdentity(t, 1)
	r, _ := newReplica(t, alice, validation.AcceptPartial)
	_, err := r.Share(context.Background(), address.Entry.Hash([]byte("nothing")))
	if !errors.Is(err, entrystore.ErrNotFound) {
		t.Errorf("Share(unknown) = %v, want ErrNotFound", err)
	}
}
