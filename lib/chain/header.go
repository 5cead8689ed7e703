// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/agent"
	"github.com/bureau-foundation/agentreg/lib/codec"
	"github.com/bureau-foundation/agentreg/lib/record"
)

// Operation is the action a header records.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

var (
	// ErrBadSignature means a header's signature does not verify
	// under its author key.
	ErrBadSignature = errors.New("header signature does not verify")

	// ErrBrokenChain means a header sequence is not contiguous, not
	// linked by Prev, or not authored by a single agent.
	ErrBrokenChain = errors.New("broken source chain")
)

// Header records one authored action.
type Header struct {
	// Author is the Ed25519 public key of the authoring agent.
	Author ed25519.PublicKey `cbor:"author"`

	// Seq is the position in the author's chain, starting at 0.
	Seq uint64 `cbor:"seq"`

	// Prev is the address of the header at Seq-1, zero for Seq 0.
	Prev address.Address `cbor:"prev"`

	Op    Operation       `cbor:"op"`
	Kind  record.Kind     `cbor:"kind"`
	Entry address.Address `cbor:"entry"`

	// Target is the entry an update or delete applies to. Zero for
	// creates.
	Target address.Address `cbor:"target"`

	// Timestamp is the author's clock at commit time, in whole
	// seconds (the CBOR time encoding drops sub-second precision).
	Timestamp time.Time `cbor:"timestamp"`

	Signature []byte `cbor:"signature,omitempty"`
}

// body returns the bytes the signature and the header address cover.
func (h Header) body() ([]byte, error) {
	unsigned := h
	unsigned.Signature = nil
	data, err := codec.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("encoding header body: %w", err)
	}
	return data, nil
}

// Address returns the header-domain address of the unsigned body.
// The signature is excluded so that the address can be computed before
// signing and used as the next header's Prev.
func (h Header) Address() (address.Address, error) {
	data, err := h.body()
	if err != nil {
		return address.Address{}, err
	}
	return address.Header.Hash(data), nil
}

// AuthorAddress returns the agent identifier of the header's author,
// or the zero address if the author key is malformed.
func (h Header) AuthorAddress() address.Address {
	if len(h.Author) != ed25519.PublicKeySize {
		return address.Address{}
	}
	return address.OfAgentKey(h.Author)
}

// Sign sets Author to the identity's public key and signs the body.
func (h *Header) Sign(id *agent.Identity) error {
	h.Author = id.PublicKey()
	h.Signature = nil
	data, err := h.body()
	if err != nil {
		return err
	}
	h.Signature = id.Sign(data)
	return nil
}

// Verify checks the signature against the header's own author key.
func (h Header) Verify() error {
	if len(h.Author) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: author key is %d bytes", ErrBadSignature, len(h.Author))
	}
	data, err := h.body()
	if err != nil {
		return err
	}
	if !ed25519.Verify(h.Author, data, h.Signature) {
		return ErrBadSignature
	}
	return nil
}

// Sources returns the agents whose provenance on this header verifies.
// A header has a single author, so the result is that author or
// nothing.
func (h Header) Sources() []address.Address {
	if h.Verify() != nil {
		return nil
	}
	return []address.Address{h.AuthorAddress()}
}

// Encode serializes a signed header.
func Encode(h Header) ([]byte, error) {
	data, err := codec.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	return data, nil
}

// Decode parses a header written by Encode.
func Decode(data []byte) (Header, error) {
	var h Header
	if err := codec.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("decoding header: %w", err)
	}
	return h, nil
}

// Next builds the unsigned header that follows the last header in
// headers. With an empty slice it builds the first header of a chain.
func Next(headers []Header, op Operation, kind record.Kind, entry, target address.Address, now time.Time) (Header, error) {
	next := Header{
		Seq:       uint64(len(headers)),
		Op:        op,
		Kind:      kind,
		Entry:     entry,
		Target:    target,
		Timestamp: now.UTC().Truncate(time.Second),
	}
	if len(headers) > 0 {
		prev, err := headers[len(headers)-1].Address()
		if err != nil {
			return Header{}, err
		}
		next.Prev = prev
	}
	return next, nil
}

// FollowsFrom checks that h can be appended to a chain whose current
// last header is prev (nil for an empty chain). It checks position and
// linkage only, not signatures.
func FollowsFrom(prev *Header, h Header) error {
	if prev == nil {
		if h.Seq != 0 {
			return fmt.Errorf("%w: first header has seq %d", ErrBrokenChain, h.Seq)
		}
		if !h.Prev.IsZero() {
			return fmt.Errorf("%w: first header has a prev link", ErrBrokenChain)
		}
		return nil
	}
	if h.Seq != prev.Seq+1 {
		return fmt.Errorf("%w: seq %d does not follow %d", ErrBrokenChain, h.Seq, prev.Seq)
	}
	prevAddress, err := prev.Address()
	if err != nil {
		return err
	}
	if h.Prev != prevAddress {
		return fmt.Errorf("%w: header %d does not link to header %d", ErrBrokenChain, h.Seq, prev.Seq)
	}
	if h.AuthorAddress() != prev.AuthorAddress() {
		return fmt.Errorf("%w: header %d has a different author", ErrBrokenChain, h.Seq)
	}
	return nil
}

// VerifyChain checks that headers form a complete chain prefix: seq
// 0..n-1, each linked to its predecessor, one author, all signatures
// valid.
func VerifyChain(headers []Header) error {
	var prev *Header
	for i := range headers {
		if err := FollowsFrom(prev, headers[i]); err != nil {
			return err
		}
		if err := headers[i].Verify(); err != nil {
			return fmt.Errorf("header %d: %w", headers[i].Seq, err)
		}
		prev = &headers[i]
	}
	return nil
}
