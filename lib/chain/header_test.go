// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/agent"
	"github.com/bureau-foundation/agentreg/lib/record"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testIdentity(t *testing.T, fill byte) *agent.Identity {
	t.Helper()
	id, err := agent.FromSeed(bytes.Repeat([]byte{fill}, ed25519.SeedSize))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	return id
}

// buildChain signs count create headers for id, each over a distinct
// user entry address.
func buildChain(t *testing.T, id *agent.Identity, count int) []Header {
	t.Helper()
	var headers []Header
	for i := 0; i < count; i++ {
		entry := address.Entry.Hash([]byte{byte(i)})
		header, err := Next(headers, OpCreate, record.KindUser, entry, address.Address{}, epoch.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if err := header.Sign(id); err != nil {
			t.Fatalf("Sign: %v", err)
		}
		headers = append(headers, header)
	}
	return headers
}

func TestSignVerify(t *testing.T) {
	id := testIdentity(t, 1)
	headers := buildChain(t, id, 1)
	header := headers[0]

	if err := header.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if header.AuthorAddress() != id.Address() {
		t.Errorf("AuthorAddress = %s, want %s", header.AuthorAddress(), id.Address())
	}
	sources := header.Sources()
	if len(sources) != 1 || sources[0] != id.Address() {
		t.Errorf("Sources = %v, want [%s]", sources, id.Address())
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	id := testIdentity(t, 1)
	header := buildChain(t, id, 1)[0]

	tampered := header
	tampered.Entry = address.Entry.Hash([]byte("other"))
	if err := tampered.Verify(); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify(tampered entry) = %v, want ErrBadSignature", err)
	}
	if len(tampered.Sources()) != 0 {
		t.Error("tampered header still reports a verified source")
	}

	// Swapping in another agent's key without re-signing.
	impostor := header
	impostor.Author = testIdentity(t, 2).PublicKey()
	if err := impostor.Verify(); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify(swapped author) = %v, want ErrBadSignature", err)
	}

	truncated := header
	truncated.Author = truncated.Author[:10]
	if err := truncated.Verify(); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify(short key) = %v, want ErrBadSignature", err)
	}
	if !truncated.AuthorAddress().IsZero() {
		t.Error("AuthorAddress of a short key should be zero")
	}
}

func TestAddressExcludesSignature(t *testing.T) {
	id := testIdentity(t, 1)
	header := buildChain(t, id, 1)[0]

	signed, err := header.Address()
	if err != nil {
		t.Fatal(err)
	}
	header.Signature = nil
	unsigned, err := header.Address()
	if err != nil {
		t.Fatal(err)
	}
	if signed != unsigned {
		t.Error("header address depends on the signature")
	}
}

func TestEncodeDecode(t *testing.T) {
	id := testIdentity(t, 3)
	header := buildChain(t, id, 2)[1]

	data, err := Encode(header)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := decoded.Verify(); err != nil {
		t.Errorf("decoded header does not verify: %v", err)
	}
	if !decoded.Timestamp.Equal(header.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, header.Timestamp)
	}
	want, _ := header.Address()
	got, _ := decoded.Address()
	if got != want {
		t.Error("address changed across encode/decode")
	}

	if _, err := Decode([]byte{0xff, 0x00}); err == nil {
		t.Error("Decode accepted garbage")
	}
}

func TestNextTruncatesTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 999_000_000, time.FixedZone("x", 3600))
	header, err := Next(nil, OpCreate, record.KindUser, address.Address{}, address.Address{}, now)
	if err != nil {
		t.Fatal(err)
	}
	if header.Timestamp.Nanosecond() != 0 {
		t.Errorf("Timestamp = %v, want whole seconds", header.Timestamp)
	}
	if header.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", header.Timestamp.Location())
	}
	if header.Seq != 0 || !header.Prev.IsZero() {
		t.Errorf("first header = seq %d prev %s, want seq 0 and zero prev", header.Seq, header.Prev)
	}
}

func TestVerifyChain(t *testing.T) {
	alice := testIdentity(t, 1)
	bob := testIdentity(t, 2)

	t.Run("valid", func(t *testing.T) {
		if err := VerifyChain(buildChain(t, alice, 4)); err != nil {
			t.Errorf("VerifyChain: %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if err := VerifyChain(nil); err != nil {
			t.Errorf("VerifyChain(nil): %v", err)
		}
	})

	t.Run("gap", func(t *testing.T) {
		headers := buildChain(t, alice, 3)
		gapped := []Header{headers[0], headers[2]}
		if err := VerifyChain(gapped); !errors.Is(err, ErrBrokenChain) {
			t.Errorf("VerifyChain(gap) = %v, want ErrBrokenChain", err)
		}
	})

	t.Run("missing genesis", func(t *testing.T) {
		headers := buildChain(t, alice, 3)
		if err := VerifyChain(headers[1:]); !errors.Is(err, ErrBrokenChain) {
			t.Errorf("VerifyChain(no genesis) = %v, want ErrBrokenChain", err)
		}
	})

	t.Run("mixed authors", func(t *testing.T) {
		aliceChain := buildChain(t, alice, 2)
		bobChain := buildChain(t, bob, 2)
		if err := VerifyChain([]Header{aliceChain[0], bobChain[1]}); !errors.Is(err, ErrBrokenChain) {
			t.Errorf("VerifyChain(mixed) = %v, want ErrBrokenChain", err)
		}
	})

	t.Run("forged link", func(t *testing.T) {
		headers := buildChain(t, alice, 2)
		headers[1].Prev = address.Header.Hash([]byte("elsewhere"))
		if err := headers[1].Sign(alice); err != nil {
			t.Fatal(err)
		}
		if err := VerifyChain(headers); !errors.Is(err, ErrBrokenChain) {
			t.Errorf("VerifyChain(forged prev) = %v, want ErrBrokenChain", err)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		headers := buildChain(t, alice, 2)
		headers[1].Signature[0] ^= 0xff
		if err := VerifyChain(headers); !errors.Is(err, ErrBadSignature) {
			t.Errorf("VerifyChain(bad sig) = %v, want ErrBadSignature", err)
		}
	})
}

func TestOperationValid(t *testing.T) {
	for _, op := range []Operation{OpCreate, OpUpdate, OpDelete} {
		if !op.Valid() {
			t.Errorf("%q.Valid() = false", op)
		}
	}
	if Operation("rename").Valid() {
		t.Error(`"rename".Valid() = true`)
	}
}
