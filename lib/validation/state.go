// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/record"
)

// State is one agent's registration state. The zero value is
// NoneRegistered. No transition leaves Registered.
type State struct {
	Registered bool

	// Address is the accepted user entry when Registered.
	Address address.Address
}

// StateOf folds an agent's history into its registration state. The
// entry at exclude is skipped so that a proposal already reflected in
// the history does not count against itself.
func StateOf(agent address.Address, history []HistoryItem, exclude address.Address) State {
	for _, item := range history {
		if item.Address == exclude || item.Op != chain.OpCreate {
			continue
		}
		if item.Entry.Kind != record.KindUser || item.Entry.User == nil {
			continue
		}
		if item.Entry.User.Agent == agent {
			return State{Registered: true, Address: item.Address}
		}
	}
	return State{}
}

// Create applies a valid create of the user entry at addr. From
// NoneRegistered it moves to Registered(addr); from Registered it
// fails with a duplicate-agent rejection and the state is unchanged.
func (s State) Create(addr address.Address) (State, error) {
	if s.Registered {
		return s, reject(ReasonDuplicateAgent, addr, "registered as "+address.Short(s.Address))
	}
	return State{Registered: true, Address: addr}, nil
}

func (s State) String() string {
	if !s.Registered {
		return "none-registered"
	}
	return "registered(" + address.Short(s.Address) + ")"
}
