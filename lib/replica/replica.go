// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/agent"
	"github.com/bureau-foundation/agentreg/lib/anchor"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/clock"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

// Config holds a replica's collaborators. Identity, Store, and Chains
// are required.
type Config struct {
	Identity *agent.Identity
	Store    entrystore.Store
	Chains   entrystore.ChainStore

	// Clock stamps headers. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to discarding.
	Logger *slog.Logger

	Validator validation.Validator
}

// Replica validates and stores entries for one agent. It is safe for
// concurrent use; commits to the agent's own chain are serialized.
type Replica struct {
	identity  *agent.Identity
	store     entrystore.Store
	chains    entrystore.ChainStore
	clock     clock.Clock
	logger    *slog.Logger
	validator validation.Validator

	// commitMu serializes reading the chain tip and appending to it.
	commitMu sync.Mutex
}

// New creates a replica.
func New(cfg Config) (*Replica, error) {
	switch {
	case cfg.Identity == nil:
		return nil, errors.New("replica: Identity is required")
	case cfg.Store == nil:
		return nil, errors.New("replica: Store is required")
	case cfg.Chains == nil:
		return nil, errors.New("replica: Chains is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Replica{
		identity:  cfg.Identity,
		store:     cfg.Store,
		chains:    cfg.Chains,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With("agent", address.Agent.Short(cfg.Identity.Address())),
		validator: cfg.Validator,
	}, nil
}

// Agent returns this replica's agent identifier.
func (r *Replica) Agent() address.Address {
	return r.identity.Address()
}

// Store returns the entry store.
func (r *Replica) Store() entrystore.Store {
	return r.store
}

// Chain returns this agent's own source chain.
func (r *Replica) Chain(ctx context.Context) ([]chain.Header, error) {
	return r.chains.Headers(ctx, r.Agent())
}

// Committed describes an entry this agent authored.
type Committed struct {
	Address address.Address
	Header  chain.Header

	// Replayed is true when the chain already held a create of this
	// exact entry, so nothing new was written.
	Replayed bool
}

// Commit authors entry with operation op: it signs the next header on
// this agent's chain, validates with full evidence of that chain, and
// on acceptance stores the entry and appends the header.
//
// Creating an entry this agent has already created is a replay, not a
// second action. Content addressing makes the two indistinguishable,
// and treating it as a replay makes a retried commit safe.
func (r *Replica) Commit(ctx context.Context, op chain.Operation, entry record.Entry) (Committed, error) {
	data, err := record.Encode(entry)
	if err != nil {
		return Committed{}, err
	}
	entryAddress := record.AddressOfBytes(data)

	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	headers, err := r.chains.Headers(ctx, r.Agent())
	if err != nil {
		return Committed{}, fmt.Errorf("loading own chain: %w", err)
	}

	if op == chain.OpCreate {
		for _, header := range headers {
			if header.Op == chain.OpCreate && header.Entry == entryAddress {
				// Heal a store that lost the entry bytes.
				if _, err := r.store.Commit(ctx, data); err != nil {
					return Committed{}, err
				}
				r.logger.Debug("commit replayed", "entry", address.Short(entryAddress), "seq", header.Seq)
				return Committed{Address: entryAddress, Header: header, Replayed: true}, nil
			}
		}
	}

	header, err := chain.Next(headers, op, entry.Kind, entryAddress, address.Address{}, r.clock.Now())
	if err != nil {
		return Committed{}, err
	}
	if err := header.Sign(r.identity); err != nil {
		return Committed{}, err
	}

	evidence, err := ContextFor(ctx, r.store, r.chains, header, nil)
	if err != nil {
		return Committed{}, err
	}
	if evidence.Lifecycle != validation.FullChain {
		r.logger.Warn("own chain references entries missing from the store", "seq", header.Seq)
	}

	proposal := validation.Proposal{Header: header, Entry: entry, Address: entryAddress}
	if err := r.validator.Validate(proposal, evidence); err != nil {
		r.logger.Info("commit rejected", "kind", entry.Kind, "op", op, "error", err)
		return Committed{}, err
	}

	if _, err := r.store.Commit(ctx, data); err != nil {
		return Committed{}, err
	}
	if err := r.chains.Append(ctx, header); err != nil {
		return Committed{}, err
	}

	r.logger.Info("entry committed", "kind", entry.Kind, "entry", address.Short(entryAddress), "seq", header.Seq)
	return Committed{Address: entryAddress, Header: header}, nil
}

// Publish commits an authorless shared record. Only the canonical
// anchor qualifies.
func (r *Replica) Publish(ctx context.Context, entry record.Entry) (address.Address, error) {
	data, err := record.Encode(entry)
	if err != nil {
		return address.Address{}, err
	}
	if entry.Kind != record.KindAnchor || !anchor.IsCanonical(data) {
		return address.Address{}, &validation.Rejection{
			Reason: validation.ReasonMalformed,
			Entry:  record.AddressOfBytes(data),
			Detail: "only the canonical anchor is published without an author",
		}
	}
	return anchor.EnsureCommitted(ctx, r.store)
}

// Incoming is an entry authored elsewhere, as it arrives from
// replication.
type Incoming struct {
	Header chain.Header
	Entry  []byte

	// Package is the author's chain before Header, if shipped.
	Package *chain.Package
}

// Acceptance reports the outcome of Receive.
type Acceptance struct {
	Entry address.Address

	// FullEvidence is false when uniqueness could not be checked
	// against the author's chain. The acceptance is then local only.
	FullEvidence bool

	// Duplicate is true when the entry was already stored.
	Duplicate bool
}

// Receive validates an entry authored by another agent against this
// replica's evidence and stores it on acceptance. Headers are appended
// to the author's stored chain whenever they extend it contiguously,
// so later proposals from the same author get full evidence.
func (r *Replica) Receive(ctx context.Context, incoming Incoming) (Acceptance, error) {
	header := incoming.Header
	entryAddress := record.AddressOfBytes(incoming.Entry)
	logger := r.logger.With("author", address.Agent.Short(header.AuthorAddress()), "entry", address.Short(entryAddress))

	entry, err := record.Decode(incoming.Entry)
	if err != nil {
		var decodeError *record.DecodeError
		if errors.As(err, &decodeError) {
			decodeError.Address = entryAddress
		}
		return Acceptance{}, err
	}

	if err := header.Verify(); err != nil {
		logger.Info("received entry rejected", "error", err)
		return Acceptance{}, &validation.Rejection{
			Reason: validation.ReasonAuthorship,
			Entry:  entryAddress,
			Detail: err.Error(),
		}
	}

	evidence, err := ContextFor(ctx, r.store, r.chains, header, incoming.Package)
	if err != nil {
		return Acceptance{}, err
	}

	proposal := validation.Proposal{Header: header, Entry: entry, Address: entryAddress}
	if err := r.validator.Validate(proposal, evidence); err != nil {
		logger.Info("received entry rejected", "lifecycle", evidence.Lifecycle, "error", err)
		return Acceptance{}, err
	}

	duplicate := true
	if _, err := r.store.Get(ctx, entryAddress); errors.Is(err, entrystore.ErrNotFound) {
		duplicate = false
	} else if err != nil {
		return Acceptance{}, err
	}
	if _, err := r.store.Commit(ctx, incoming.Entry); err != nil {
		return Acceptance{}, err
	}

	if err := r.extendChain(ctx, header, incoming.Package); err != nil {
		return Acceptance{}, err
	}

	acceptance := Acceptance{
		Entry:        entryAddress,
		FullEvidence: evidence.Lifecycle == validation.FullChain,
		Duplicate:    duplicate,
	}
	if acceptance.FullEvidence {
		logger.Info("received entry accepted")
	} else {
		logger.Warn("received entry accepted with partial evidence", "seq", header.Seq)
	}
	return acceptance, nil
}

// extendChain appends the package headers and then header to the
// author's stored chain, skipping whatever is already there and
// stopping at the first gap.
func (r *Replica) extendChain(ctx context.Context, header chain.Header, pkg *chain.Package) error {
	author := header.AuthorAddress()
	stored, err := r.chains.Headers(ctx, author)
	if err != nil {
		return err
	}
	next := uint64(len(stored))

	var candidates []chain.Header
	if pkg != nil && chain.VerifyChain(pkg.Headers) == nil {
		candidates = append(candidates, pkg.Headers...)
		for _, data := range pkg.Entries {
			if _, err := r.store.Commit(ctx, data); err != nil {
				return err
			}
		}
	}
	candidates = append(candidates, header)

	for _, candidate := range candidates {
		if candidate.Seq < next {
			continue
		}
		if candidate.Seq > next {
			r.logger.Debug("chain gap, header not stored",
				"author", address.Agent.Short(author), "seq", candidate.Seq, "have", next)
			return nil
		}
		if err := r.chains.Append(ctx, candidate); err != nil {
			return err
		}
		next++
	}
	return nil
}

// Share builds the Incoming another replica needs to receive an entry
// this agent authored, with the full preceding chain as its package.
func (r *Replica) Share(ctx context.Context, entryAddress address.Address) (Incoming, error) {
	headers, err := r.Chain(ctx)
	if err != nil {
		return Incoming{}, err
	}
	for i, header := range headers {
		if header.Entry != entryAddress {
			continue
		}
		data, err := r.store.Get(ctx, entryAddress)
		if err != nil {
			return Incoming{}, fmt.Errorf("loading shared entry: %w", err)
		}
		pkg := &chain.Package{Headers: headers[:i]}
		for _, prior := range headers[:i] {
			if prior.Kind != record.KindUser {
				continue
			}
			priorData, err := r.store.Get(ctx, prior.Entry)
			if err != nil {
				return Incoming{}, fmt.Errorf("loading package entry: %w", err)
			}
			pkg.Entries = append(pkg.Entries, priorData)
		}
		return Incoming{Header: header, Entry: data, Package: pkg}, nil
	}
	return Incoming{}, fmt.Errorf("entry %s is not on this agent's chain: %w", address.Short(entryAddress), entrystore.ErrNotFound)
}
