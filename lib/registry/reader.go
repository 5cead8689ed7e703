// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/anchor"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
)

// DefaultCacheTTL is how long a decoded user stays cached. Records are
// immutable, so the TTL only bounds memory, not staleness.
const DefaultCacheTTL = 10 * time.Minute

// ReaderConfig holds a Reader's collaborators. Store is required.
type ReaderConfig struct {
	Store entrystore.Store

	Logger *slog.Logger

	// CacheTTL defaults to DefaultCacheTTL. Negative disables caching.
	CacheTTL time.Duration
}

// Reader materializes the set of registered users.
type Reader struct {
	store  entrystore.Store
	logger *slog.Logger
	cache  *gocache.Cache
}

// NewReader creates a Reader.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Store == nil {
		return nil, errors.New("registry: Store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	reader := &Reader{store: cfg.Store, logger: cfg.Logger}
	switch {
	case cfg.CacheTTL == 0:
		reader.cache = gocache.New(DefaultCacheTTL, 2*DefaultCacheTTL)
	case cfg.CacheTTL > 0:
		reader.cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return reader, nil
}

// Listed is one registered user.
type Listed struct {
	Address address.Address `json:"address"`
	User    record.User     `json:"user"`
}

// Warning is a registration link whose target could not be read.
type Warning struct {
	Address address.Address
	Err     error
}

func (w Warning) String() string {
	return address.Short(w.Address) + ": " + w.Err.Error()
}

// Listing is a snapshot of the directory. It is not restartable: call
// ListUsers again for a fresh view.
type Listing struct {
	Users    []Listed
	Warnings []Warning
}

// ListUsers returns every user linked from the anchor. Unreadable
// targets become Warnings. Only failures of the store itself (listing
// the links, or a non-NotFound Get error) are returned as errors.
func (r *Reader) ListUsers(ctx context.Context) (Listing, error) {
	targets, err := anchor.Targets(ctx, r.store)
	if err != nil {
		return Listing{}, err
	}

	var listing Listing
	for _, target := range targets {
		user, err := r.Lookup(ctx, target)
		if err == nil {
			listing.Users = append(listing.Users, Listed{Address: target, User: user})
			continue
		}
		var decodeError *record.DecodeError
		if !errors.Is(err, entrystore.ErrNotFound) && !errors.As(err, &decodeError) {
			return Listing{}, err
		}
		r.logger.Warn("skipping unreadable registration", "user", address.Short(target), "error", err)
		listing.Warnings = append(listing.Warnings, Warning{Address: target, Err: err})
	}
	return listing, nil
}

// Lookup fetches and decodes the user record at addr. Missing records
// return an error wrapping entrystore.ErrNotFound; malformed ones a
// *record.DecodeError.
func (r *Reader) Lookup(ctx context.Context, addr address.Address) (record.User, error) {
	key := addr.String()
	if r.cache != nil {
		if cached, found := r.cache.Get(key); found {
			if user, ok := cached.(record.User); ok {
				return user, nil
			}
		}
	}

	data, err := r.store.Get(ctx, addr)
	if err != nil {
		return record.User{}, fmt.Errorf("resolving %s: %w", address.Short(addr), err)
	}
	user, err := record.DecodeUser(data)
	if err != nil {
		var decodeError *record.DecodeError
		if errors.As(err, &decodeError) {
			decodeError.Address = addr
		}
		return record.User{}, err
	}

	if r.cache != nil {
		r.cache.SetDefault(key, user)
	}
	return user, nil
}

// FindByAgent returns the listed registrations for agent. An agent
// normally has at most one; more than one means replicas accepted a
// race under partial evidence. Returns ErrNotRegistered if none.
func (r *Reader) FindByAgent(ctx context.Context, agent address.Address) ([]Listed, error) {
	listing, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var found []Listed
	for _, listed := range listing.Users {
		if listed.User.Agent == agent {
			found = append(found, listed)
		}
	}
	if len(found) == 0 {
		return nil, ErrNotRegistered
	}
	return found, nil
}

// SortByName orders users by name, then address.
func SortByName(users []Listed) {
	slices.SortFunc(users, func(a, b Listed) int {
		if c := strings.Compare(a.User.Name, b.User.Name); c != 0 {
			return c
		}
		return bytes.Compare(a.Address[:], b.Address[:])
	})
}

// SortByAddress orders users by record address.
func SortByAddress(users []Listed) {
	slices.SortFunc(users, func(a, b Listed) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})
}
