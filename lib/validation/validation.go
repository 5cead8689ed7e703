// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/record"
)

// Lifecycle says how much of the authoring agent's chain the
// validating replica holds.
type Lifecycle int

const (
	// EntryOnly means only the proposed header and entry are known.
	EntryOnly Lifecycle = iota

	// FullChain means every header before the proposal is known, with
	// the user entries they reference.
	FullChain
)

func (l Lifecycle) String() string {
	switch l {
	case FullChain:
		return "full-chain"
	case EntryOnly:
		return "entry-only"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// PartialEvidencePolicy decides uniqueness when the lifecycle is
// EntryOnly.
type PartialEvidencePolicy string

const (
	AcceptPartial PartialEvidencePolicy = "accept"
	RejectPartial PartialEvidencePolicy = "reject"
)

// ParsePolicy parses a configuration value. The empty string is
// AcceptPartial.
func ParsePolicy(value string) (PartialEvidencePolicy, error) {
	switch PartialEvidencePolicy(value) {
	case "", AcceptPartial:
		return AcceptPartial, nil
	case RejectPartial:
		return RejectPartial, nil
	default:
		return "", fmt.Errorf("unknown partial evidence policy %q (want %q or %q)", value, AcceptPartial, RejectPartial)
	}
}

// HistoryItem is one previously authored action from the agent's
// chain.
type HistoryItem struct {
	Address address.Address
	Op      chain.Operation
	Entry   record.Entry
}

// Context is the evidence a replica holds for one proposal.
type Context struct {
	// Agent is the verified author of the proposal.
	Agent address.Address

	Lifecycle Lifecycle

	// History is the author's prior actions in chain order. With
	// FullChain it covers every user create the agent has made. With
	// EntryOnly it is usually empty; anything present is still
	// scanned, since a visible duplicate is conclusive either way.
	History []HistoryItem
}

// Proposal is an entry offered for acceptance.
type Proposal struct {
	Header  chain.Header
	Entry   record.Entry
	Address address.Address
}

// Validator applies the acceptance rules. The zero value uses
// AcceptPartial.
type Validator struct {
	PartialEvidence PartialEvidencePolicy
}

// Validate checks a proposal with the zero Validator.
func Validate(proposal Proposal, ctx Context) error {
	return Validator{}.Validate(proposal, ctx)
}

// Validate returns nil if the proposal may be accepted, or a
// *Rejection naming the first rule it breaks.
func (v Validator) Validate(proposal Proposal, ctx Context) error {
	if err := consistent(proposal); err != nil {
		return err
	}

	if proposal.Header.Op != chain.OpCreate {
		return reject(ReasonImmutable, proposal.Address,
			fmt.Sprintf("%s of a %s entry", proposal.Header.Op, proposal.Entry.Kind))
	}

	switch proposal.Entry.Kind {
	case record.KindAnchor:
		// The anchor carries no claims, but only the canonical one
		// exists.
		if proposal.Entry.Anchor.Payload != record.AnchorPayload {
			return reject(ReasonMalformed, proposal.Address,
				fmt.Sprintf("anchor payload %q is not %q", proposal.Entry.Anchor.Payload, record.AnchorPayload))
		}
		return nil
	case record.KindUser:
		return v.validateUser(proposal, ctx)
	default:
		return reject(ReasonMalformed, proposal.Address, fmt.Sprintf("unknown entry kind %q", proposal.Entry.Kind))
	}
}

func (v Validator) validateUser(proposal Proposal, ctx Context) error {
	user := proposal.Entry.User

	if err := CheckName(user.Name); err != nil {
		rejection := err.(*Rejection)
		rejection.Entry = proposal.Address
		return rejection
	}

	if !slices.Contains(proposal.Header.Sources(), user.Agent) {
		return reject(ReasonAuthorship, proposal.Address,
			fmt.Sprintf("entry claims agent %s, signed by %s",
				address.Agent.Short(user.Agent), address.Agent.Short(proposal.Header.AuthorAddress())))
	}

	state := StateOf(user.Agent, ctx.History, proposal.Address)
	if _, err := state.Create(proposal.Address); err != nil {
		return err
	}

	if ctx.Lifecycle != FullChain && v.PartialEvidence == RejectPartial {
		return reject(ReasonInsufficientEvidence, proposal.Address,
			fmt.Sprintf("chain of %s not available", address.Agent.Short(user.Agent)))
	}
	return nil
}

// consistent checks that the header actually describes the entry.
func consistent(proposal Proposal) error {
	header := proposal.Header
	switch {
	case !header.Op.Valid():
		return reject(ReasonMalformed, proposal.Address, fmt.Sprintf("unknown operation %q", header.Op))
	case header.Kind != proposal.Entry.Kind:
		return reject(ReasonMalformed, proposal.Address,
			fmt.Sprintf("header kind %s does not match entry kind %s", header.Kind, proposal.Entry.Kind))
	case header.Entry != proposal.Address:
		return reject(ReasonMalformed, proposal.Address, "header does not reference this entry")
	case proposal.Entry.Kind == record.KindUser && proposal.Entry.User == nil:
		return reject(ReasonMalformed, proposal.Address, "user entry has no body")
	case proposal.Entry.Kind == record.KindAnchor && proposal.Entry.Anchor == nil:
		return reject(ReasonMalformed, proposal.Address, "anchor entry has no body")
	}
	return nil
}

// CheckName validates a user name on its own. Writers call it before
// signing anything so that a bad name fails without touching the
// chain.
func CheckName(name string) error {
	length := record.NameLength(name)
	switch {
	case length < 0:
		return reject(ReasonNameMalformed, address.Address{}, "name is not valid UTF-8")
	case length == 0:
		return reject(ReasonNameEmpty, address.Address{}, "")
	case length > record.MaxNameLength:
		return reject(ReasonNameTooLong, address.Address{},
			fmt.Sprintf("%d characters, limit %d", length, record.MaxNameLength))
	}
	return nil
}
