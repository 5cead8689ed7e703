// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"crypto/ed25519"
	"strings"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	first := Entry.Hash([]byte("user record"))
	second := Entry.Hash([]byte("user record"))
	if first != second {
		t.Errorf("same input hashed to %s and %s", first, second)
	}
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("identical bytes")
	domains := map[string]Domain{
		"entry":  Entry,
		"header": Header,
		"link":   Link,
		"agent":  Agent,
	}

	seen := make(map[Address]string)
	for name, domain := range domains {
		hash := domain.Hash(data)
		if other, exists := seen[hash]; exists {
			t.Errorf("domains %s and %s produced the same address", name, other)
		}
		seen[hash] = name
	}
}

func TestFormatParseRoundtrip(t *testing.T) {
	original := Entry.Hash([]byte("roundtrip"))

	text := Format(original)
	if len(text) != 64 {
		t.Fatalf("Format length = %d, want 64", len(text))
	}

	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != original {
		t.Errorf("Parse(Format(a)) = %s, want %s", parsed, original)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not hex", strings.Repeat("zz", 32)},
		{"too short", "abcd"},
		{"too long", strings.Repeat("ab", 33)},
		{"empty", ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse(test.input); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", test.input)
			}
		})
	}
}

func TestTextMarshaling(t *testing.T) {
	original := Header.Hash([]byte("header"))

	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded Address
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded != original {
		t.Errorf("text roundtrip = %s, want %s", decoded, original)
	}
}

func TestShortForms(t *testing.T) {
	addr := Entry.Hash([]byte("short"))
	tests := []struct {
		domain Domain
		prefix string
	}{
		{Entry, "ent-"},
		{Header, "hdr-"},
		{Link, "lnk-"},
		{Agent, "agt-"},
	}
	for _, test := range tests {
		short := test.domain.Short(addr)
		if !strings.HasPrefix(short, test.prefix) {
			t.Errorf("Short = %q, want prefix %q", short, test.prefix)
		}
		if len(short) != len(test.prefix)+12 {
			t.Errorf("Short = %q, want %d hex characters after prefix", short, 12)
		}
		if !strings.HasPrefix(Format(addr), short[len(test.prefix):]) {
			t.Errorf("Short = %q is not a prefix of the full address", short)
		}
	}
}

func TestOfAgentKey(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	agent := OfAgentKey(publicKey)
	if agent != Agent.Hash(publicKey) {
		t.Error("OfAgentKey does not use the agent domain")
	}
	if agent == Entry.Hash(publicKey) {
		t.Error("agent address collides with entry address of the same key")
	}
	if agent.IsZero() {
		t.Error("agent address is zero")
	}
}
