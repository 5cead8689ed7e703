// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/codec"
)

// Kind discriminates the entry variants.
type Kind string

const (
	// KindUser marks a user registration.
	KindUser Kind = "user"

	// KindAnchor marks the well-known anchor record.
	KindAnchor Kind = "user_anchor"
)

// AnchorPayload is the fixed payload of the canonical anchor. Anyone
// can compute the anchor's address from it without a lookup.
const AnchorPayload = "users"

// MaxNameLength is the maximum length of a user name in Unicode code
// points.
const MaxNameLength = 50

// User represents one registered agent.
type User struct {
	// Agent is the identifier of the registering agent: the
	// agent-domain hash of its public key.
	Agent address.Address `cbor:"agent"`

	// Name is a human-readable label, 1 to MaxNameLength characters.
	Name string `cbor:"name"`
}

// Anchor is the fan-in record that registration links hang off.
type Anchor struct {
	Payload string `cbor:"payload"`
}

// Entry is a record of one of the known kinds.
type Entry struct {
	Kind   Kind    `cbor:"kind"`
	User   *User   `cbor:"user,omitempty"`
	Anchor *Anchor `cbor:"anchor,omitempty"`
}

// UserEntry wraps a user in an Entry.
func UserEntry(agent address.Address, name string) Entry {
	return Entry{Kind: KindUser, User: &User{Agent: agent, Name: name}}
}

// AnchorEntry returns the canonical anchor entry.
func AnchorEntry() Entry {
	return Entry{Kind: KindAnchor, Anchor: &Anchor{Payload: AnchorPayload}}
}

// check verifies that exactly the body matching Kind is present.
func (e Entry) check() error {
	switch e.Kind {
	case KindUser:
		if e.User == nil {
			return errors.New("user entry has no user body")
		}
		if e.Anchor != nil {
			return errors.New("user entry carries an anchor body")
		}
	case KindAnchor:
		if e.Anchor == nil {
			return errors.New("anchor entry has no anchor body")
		}
		if e.User != nil {
			return errors.New("anchor entry carries a user body")
		}
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
	return nil
}

// Encode serializes an entry to its canonical bytes.
func Encode(entry Entry) ([]byte, error) {
	if err := entry.check(); err != nil {
		return nil, fmt.Errorf("encoding entry: %w", err)
	}
	data, err := codec.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding %s entry: %w", entry.Kind, err)
	}
	return data, nil
}

// Decode parses canonical entry bytes. Any failure is a *DecodeError.
func Decode(data []byte) (Entry, error) {
	var entry Entry
	if err := codec.Unmarshal(data, &entry); err != nil {
		return Entry{}, &DecodeError{Err: err}
	}
	if err := entry.check(); err != nil {
		return Entry{}, &DecodeError{Err: err}
	}
	return entry, nil
}

// DecodeUser parses entry bytes that must hold a user.
func DecodeUser(data []byte) (User, error) {
	entry, err := Decode(data)
	if err != nil {
		return User{}, err
	}
	if entry.Kind != KindUser {
		return User{}, &DecodeError{Err: fmt.Errorf("expected %s entry, got %s", KindUser, entry.Kind)}
	}
	return *entry.User, nil
}

// AddressOf returns the content address of an entry.
func AddressOf(entry Entry) (address.Address, error) {
	data, err := Encode(entry)
	if err != nil {
		return address.Address{}, err
	}
	return address.Entry.Hash(data), nil
}

// AddressOfBytes returns the content address of already-encoded bytes.
// Stores use this so that the address they assign and the address a
// writer computes agree.
func AddressOfBytes(data []byte) address.Address {
	return address.Entry.Hash(data)
}

// NameLength returns the length of name in code points, or -1 if name
// is not valid UTF-8.
func NameLength(name string) int {
	if !utf8.ValidString(name) {
		return -1
	}
	return utf8.RuneCountInString(name)
}

// DecodeError reports an entry whose bytes do not decode to a
// well-formed record. Address is set by callers that know where the
// bytes came from.
type DecodeError struct {
	Address address.Address
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Address.IsZero() {
		return fmt.Sprintf("decoding entry: %v", e.Err)
	}
	return fmt.Sprintf("decoding entry %s: %v", address.Short(e.Address), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
