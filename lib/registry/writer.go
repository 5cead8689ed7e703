// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/anchor"
	"github.com/bureau-foundation/agentreg/lib/chain"
	"github.com/bureau-foundation/agentreg/lib/clock"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/replica"
)

// WriterConfig holds a Writer's collaborators. Replica is required.
type WriterConfig struct {
	Replica *replica.Replica

	// Links receives the anchor link. Defaults to the replica's
	// store.
	Links anchor.Linker

	// Clock drives retry backoff. Defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger

	// Retry defaults to DefaultRetryPolicy() when zero.
	Retry RetryPolicy
}

// Writer publishes this agent's registration.
type Writer struct {
	replica *replica.Replica
	links   anchor.Linker
	clock   clock.Clock
	logger  *slog.Logger
	retry   RetryPolicy
}

// NewWriter creates a Writer.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Replica == nil {
		return nil, errors.New("registry: Replica is required")
	}
	if cfg.Links == nil {
		cfg.Links = cfg.Replica.Store()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Writer{
		replica: cfg.Replica,
		links:   cfg.Links,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		retry:   cfg.Retry,
	}, nil
}

// Registration is the outcome of a successful Register or Repair.
type Registration struct {
	// Address is the user record's address.
	Address address.Address

	Header chain.Header
	Link   entrystore.LinkHandle

	// Replayed is true when this exact registration already existed
	// on the agent's chain.
	Replayed bool

	// Provisional is true when only this replica has validated the
	// record. Replicas with the full chain may still reject it if the
	// agent raced another registration elsewhere.
	Provisional bool
}

// Register commits a user record named name for this agent and links
// it from the anchor.
//
// A validation failure is returned as a *validation.Rejection and
// nothing is written. A failure after the record is committed is
// returned as a *PartialRegistrationError.
func (w *Writer) Register(ctx context.Context, name string) (Registration, error) {
	committed, err := w.replica.Commit(ctx, chain.OpCreate, record.UserEntry(w.replica.Agent(), name))
	if err != nil {
		return Registration{}, err
	}
	return w.publish(ctx, committed)
}

// Repair re-runs the anchor phase for this agent's registration. It is
// the recovery for a *PartialRegistrationError and harmless otherwise.
func (w *Writer) Repair(ctx context.Context) (Registration, error) {
	headers, err := w.replica.Chain(ctx)
	if err != nil {
		return Registration{}, err
	}
	for _, header := range headers {
		if header.Op == chain.OpCreate && header.Kind == record.KindUser {
			w.logger.Info("repairing registration", "user", address.Short(header.Entry))
			return w.publish(ctx, replica.Committed{Address: header.Entry, Header: header, Replayed: true})
		}
	}
	return Registration{}, ErrNotRegistered
}

func (w *Writer) publish(ctx context.Context, committed replica.Committed) (Registration, error) {
	registration := Registration{
		Address:     committed.Address,
		Header:      committed.Header,
		Replayed:    committed.Replayed,
		Provisional: true,
	}

	var anchorAddress address.Address
	err := w.retry.do(ctx, w.clock, w.logger, "ensure anchor", func() error {
		var err error
		anchorAddress, err = w.replica.Publish(ctx, record.AnchorEntry())
		return err
	})
	if err != nil {
		return registration, &PartialRegistrationError{Address: committed.Address, Err: err}
	}

	err = w.retry.do(ctx, w.clock, w.logger, "attach", func() error {
		var err error
		registration.Link, err = anchor.Attach(ctx, w.links, anchorAddress, committed.Address)
		return err
	})
	if err != nil {
		return registration, &PartialRegistrationError{Address: committed.Address, Err: err}
	}

	w.logger.Info("registration published",
		"user", address.Short(committed.Address),
		"replayed", committed.Replayed,
	)
	return registration, nil
}

// String formats a registration for logs.
func (r Registration) String() string {
	return fmt.Sprintf("%s (seq %d)", address.Short(r.Address), r.Header.Seq)
}
