// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Address is a 32-byte BLAKE3 keyed digest identifying a record,
// header, link, or agent.
type Address [32]byte

// Domain selects the BLAKE3 key used when hashing. Each domain key is
// the ASCII domain name zero-padded to 32 bytes, which keeps keys
// readable in hex dumps. Changing a key invalidates every address in
// that domain.
type Domain struct {
	key    [32]byte
	prefix string
}

var (
	// Entry addresses users and anchors.
	Entry = newDomain("agentreg.entry", "ent-")

	// Header addresses signed source chain headers.
	Header = newDomain("agentreg.header", "hdr-")

	// Link addresses typed base→target edges.
	Link = newDomain("agentreg.link", "lnk-")

	// Agent addresses Ed25519 public keys. An agent's identifier is
	// the Agent-domain hash of its public key.
	Agent = newDomain("agentreg.agent", "agt-")
)

func newDomain(name, prefix string) Domain {
	if len(name) > 32 {
		panic("address: domain name longer than 32 bytes: " + name)
	}
	var domain Domain
	copy(domain.key[:], name)
	domain.prefix = prefix
	return domain
}

// Hash computes the keyed BLAKE3 digest of data in this domain.
func (d Domain) Hash(data []byte) Address {
	// NewKeyed only fails for keys that are not 32 bytes, which the
	// array type rules out.
	hasher, err := blake3.NewKeyed(d.key[:])
	if err != nil {
		panic("address: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var result Address
	copy(result[:], hasher.Sum(nil))
	return result
}

// Short returns the prefixed short form of an address in this domain.
func (d Domain) Short(addr Address) string {
	return d.prefix + hex.EncodeToString(addr[:6])
}

// OfAgentKey returns the agent identifier for an Ed25519 public key.
func OfAgentKey(publicKey ed25519.PublicKey) Address {
	return Agent.Hash(publicKey)
}

// IsZero reports whether addr is the zero address. The zero address is
// never produced by hashing in practice and marks unset fields.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// String returns the full hex form.
func (addr Address) String() string {
	return Format(addr)
}

// MarshalText encodes the address as 64 hex characters. The codec
// package serializes TextMarshalers as CBOR text, so records carry the
// same form that appears in logs and CLI output.
func (addr Address) MarshalText() ([]byte, error) {
	return []byte(Format(addr)), nil
}

// UnmarshalText parses the 64-hex form.
func (addr *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

// Format returns the hex-encoded string form of addr.
func Format(addr Address) string {
	return hex.EncodeToString(addr[:])
}

// Parse parses a 64-character hex string into an Address.
func Parse(hexString string) (Address, error) {
	var addr Address
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return addr, fmt.Errorf("parsing address: %w", err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("address is %d bytes, want %d", len(decoded), len(addr))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// Short returns the entry-domain short form, the common case in
// user-facing output.
func Short(addr Address) string {
	return Entry.Short(addr)
}
