// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/record"
)

func TestStateTransitions(t *testing.T) {
	first := address.Entry.Hash([]byte("first"))
	second := address.Entry.Hash([]byte("second"))

	var state State
	if state.Registered {
		t.Fatal("zero State is registered")
	}

	state, err := state.Create(first)
	if err != nil {
		t.Fatalf("Create from none: %v", err)
	}
	if !state.Registered || state.Address != first {
		t.Fatalf("state = %v, want registered(%s)", state, address.Short(first))
	}

	after, err := state.Create(second)
	if !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("Create from registered = %v, want ErrDuplicateAgent", err)
	}
	if after != state {
		t.Errorf("rejected create changed state to %v", after)
	}
}

func TestStateOf(t *testing.T) {
	agentAddress := address.Agent.Hash([]byte("alice"))
	other := address.Agent.Hash([]byte("bob"))
	userAddress := address.Entry.Hash([]byte("alice user"))

	history := []HistoryItem{
		{Address: address.Entry.Hash([]byte("anchor")), Op: chain.OpCreate, Entry: record.AnchorEntry()},
		{Address: address.Entry.Hash([]byte("bob user")), Op: chain.OpCreate, Entry: record.UserEntry(other, "Bob")},
		{Address: address.Entry.Hash([]byte("deleted")), Op: chain.OpDelete, Entry: record.UserEntry(agentAddress, "Old")},
		{Address: userAddress, Op: chain.OpCreate, Entry: record.UserEntry(agentAddress, "Alice")},
	}

	state := StateOf(agentAddress, history, address.Address{})
	if !state.Registered || state.Address != userAddress {
		t.Errorf("StateOf = %v, want registered(%s)", state, address.Short(userAddress))
	}

	if excluded := StateOf(agentAddress, history, userAddress); excluded.Registered {
		t.Errorf("StateOf excluding the registration = %v, want none-registered", excluded)
	}

	if empty := StateOf(agentAddress, nil, address.Address{}); empty.Registered {
		t.Error("StateOf(nil history) is registered")
	}
}
