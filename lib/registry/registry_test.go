// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/agentreg/lib/address"
	"github.com/bureau-foundation/agentreg/lib/agent"
	"github.com/bureau-foundation/agentreg/lib/anchor"
	"github.com/bureau-foundation/agentreg/lib/clock"
	"github.com/bureau-foundation/agentreg/lib/entrystore"
	"github.com/bureau-foundation/agentreg/lib/record"
	"github.com/bureau-foundation/agentreg/lib/replica"
	"github.com/bureau-foundation/agentreg/lib/testutil"
	"github.com/bureau-foundation/agentreg/lib/validation"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// faultyStore wraps a Memory store and injects failures.
type faultyStore struct {
	*entrystore.Memory

	mu sync.Mutex
	// linkFailures is the number of Link calls left to fail.
	linkFailures int
	linkErr      error
	// missing makes Get report these addresses as absent.
	missing map[address.Address]bool
	gets    int
}

type transientError struct{}

func (transientError) Error() string   { return "database is locked" }
func (transientError) Transient() bool { return true }

func newFaultyStore() *faultyStore {
	return &faultyStore{Memory: entrystore.NewMemory(), missing: make(map[address.Address]bool)}
}

func (f *faultyStore) failLinks(count int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkFailures = count
	f.linkErr = err
}

func (f *faultyStore) Link(ctx context.Context, base, target address.Address, linkType, tag string) (entrystore.LinkHandle, error) {
	f.mu.Lock()
	if f.linkFailures > 0 {
		f.linkFailures--
		err := f.linkErr
		f.mu.Unlock()
		return entrystore.LinkHandle{}, &entrystore.StoreError{Op: "link", Err: err}
	}
	f.mu.Unlock()
	return f.Memory.Link(ctx, base, target, linkType, tag)
}

func (f *faultyStore) Get(ctx context.Context, addr address.Address) ([]byte, error) {
	f.mu.Lock()
	f.gets++
	hidden := f.missing[addr]
	f.mu.Unlock()
	if hidden {
		return nil, entrystore.ErrNotFound
	}
	return f.Memory.Get(ctx, addr)
}

func (f *faultyStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type harness struct {
	store *faultyStore
	clock *clock.FakeClock
}

func newHarness() *harness {
	return &harness{store: newFaultyStore(), clock: clock.Fake(epoch)}
}

// writer creates a registration writer for a fresh identity derived
// from fill, sharing the harness store with every other agent.
func (h *harness) writer(t *testing.T, fill byte) (*Writer, *agent.Identity) {
	t.Helper()
	id, err := agent.FromSeed(bytes.Repeat([]byte{fill}, ed25519.SeedSize))
	if err != nil {
		t.Fatal(err)
	}
	r, err := replica.New(replica.Config{
		Identity: id,
		Store:    h.store,
		Chains:   h.store.Memory,
		Clock:    h.clock,
	})
	if err != nil {
		t.Fatal(err)
	}
	writer, err := NewWriter(WriterConfig{
		Replica: r,
		Clock:   h.clock,
		Retry:   RetryPolicy{Attempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second},
	})
	if err != nil {
		t.Fatal(err)
	}
	return writer, id
}

func (h *harness) reader(t *testing.T) *Reader {
	t.Helper()
	reader, err := NewReader(ReaderConfig{Store: h.store})
	if err != nil {
		t.Fatal(err)
	}
	return reader
}

func listAddresses(t *testing.T, reader *Reader) map[address.Address]record.User {
	t.Helper()
	listing, err := reader.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	users := make(map[address.Address]record.User, len(listing.Users))
	for _, listed := range listing.Users {
		users[listed.Address] = listed.User
	}
	return users
}

func TestRegistrationScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	alice, aliceID := h.writer(t, 1)
	bob, bobID := h.writer(t, 2)
	reader := h.reader(t)

	registrationA, err := alice.Register(ctx, "Alice")
	if err != nil {
		t.Fatalf("Register(Alice): %v", err)
	}
	users := listAddresses(t, reader)
	if len(users) != 1 {
		t.Fatalf("listing has %d users, want 1", len(users))
	}
	if got := users[registrationA.Address]; got.Agent != aliceID.Address() || got.Name != "Alice" {
		t.Errorf("listed user = %+v, want alice named Alice", got)
	}

	_, err = alice.Register(ctx, "Alicia")
	if !errors.Is(err, validation.ErrDuplicateAgent) {
		t.Fatalf("Register(Alicia) = %v, want ErrDuplicateAgent", err)
	}

	registrationB, err := bob.Register(ctx, "Bob")
	if err != nil {
		t.Fatalf("Register(Bob): %v", err)
	}

	users = listAddresses(t, reader)
	if len(users) != 2 {
		t.Fatalf("listing has %d users, want 2", len(users))
	}
	if _, ok := users[registrationA.Address]; !ok {
		t.Error("Alice missing from listing")
	}
	if got := users[registrationB.Address]; got.Agent != bobID.Address() || got.Name != "Bob" {
		t.Errorf("Bob listed as %+v", got)
	}

	// Exactly one anchor exists no matter how many agents registered.
	anchors := 0
	addresses, err := h.store.Addresses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, addr := range addresses {
		if addr == anchor.Address() {
			anchors++
		}
	}
	if anchors != 1 {
		t.Errorf("store holds %d anchors, want 1", anchors)
	}
}

func TestRegisterNameBoundaries(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"fifty", strings.Repeat("n", 50), nil},
		{"fifty one", strings.Repeat("n", 51), validation.ErrNameTooLong},
		{"empty", "", validation.ErrNameEmpty},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness()
			writer, _ := h.writer(t, 1)

			_, err := writer.Register(ctx, test.input)
			if !errors.Is(err, test.err) {
				t.Fatalf("Register = %v, want %v", err, test.err)
			}
			wantListed := 0
			if test.err == nil {
				wantListed = 1
			}
			if users := listAddresses(t, h.reader(t)); len(users) != wantListed {
				t.Errorf("listing has %d users, want %d", len(users), wantListed)
			}
		})
	}
}

func TestRegisterReplay(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	writer, _ := h.writer(t, 1)

	first, err := writer.Register(ctx, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	again, err := writer.Register(ctx, "Alice")
	if err != nil {
		t.Fatalf("repeated Register: %v", err)
	}
	if !again.Replayed || again.Address != first.Address {
		t.Errorf("repeat = %+v, want a replay of %s", again, first.Address)
	}
	if !first.Provisional {
		t.Error("local registration not marked provisional")
	}
	if users := listAddresses(t, h.reader(t)); len(users) != 1 {
		t.Errorf("listing has %d users after replay, want 1", len(users))
	}
}

func TestPartialRegistrationAndRepair(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	writer, _ := h.writer(t, 1)
	reader := h.reader(t)

	h.store.failLinks(1, errors.New("disk full"))
	_, err := writer.Register(ctx, "Alice")
	var partial *PartialRegistrationError
	if !errors.As(err, &partial) {
		t.Fatalf("Register = %v, want *PartialRegistrationError", err)
	}
	if _, err := h.store.Get(ctx, partial.Address); err != nil {
		t.Errorf("user record not committed despite partial failure: %v", err)
	}
	if users := listAddresses(t, reader); len(users) != 0 {
		t.Errorf("unattached registration is listed: %v", users)
	}

	// The record is accepted; a second Register must not claim a
	// duplicate, and Repair finishes the job.
	repaired, err := writer.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired.Address != partial.Address {
		t.Errorf("Repair attached %s, want %s", repaired.Address, partial.Address)
	}
	if users := listAddresses(t, reader); len(users) != 1 {
		t.Errorf("listing has %d users after repair, want 1", len(users))
	}

	if _, err := writer.Repair(ctx); err != nil {
		t.Errorf("second Repair: %v", err)
	}
}

func TestRepairUnregistered(t *testing.T) {
	h := newHarness()
	writer, _ := h.writer(t, 1)
	if _, err := writer.Repair(context.Background()); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Repair = %v, want ErrNotRegistered", err)
	}
}

func TestTransientAttachRetried(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	writer, _ := h.writer(t, 1)
	h.store.failLinks(2, transientError{})

	type result struct {
		registration Registration
		err          error
	}
	done := make(chan result, 1)
	go func() {
		registration, err := writer.Register(ctx, "Alice")
		done <- result{registration, err}
	}()

	h.clock.WaitForTimers(1)
	h.clock.Advance(100 * time.Millisecond)
	h.clock.WaitForTimers(1)
	h.clock.Advance(200 * time.Millisecond)

	got := testutil.RequireReceive(t, done, 5*time.Second, "Register after retries")
	if got.err != nil {
		t.Fatalf("Register: %v", got.err)
	}
	if users := listAddresses(t, h.reader(t)); len(users) != 1 {
		t.Errorf("listing has %d users, want 1", len(users))
	}
}

func TestTransientAttachExhausted(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	writer, _ := h.writer(t, 1)
	h.store.failLinks(10, transientError{})

	done := make(chan error, 1)
	go func() {
		_, err := writer.Register(ctx, "Alice")
		done <- err
	}()

	h.clock.WaitForTimers(1)
	h.clock.Advance(100 * time.Millisecond)
	h.clock.WaitForTimers(1)
	h.clock.Advance(200 * time.Millisecond)

	err := testutil.RequireReceive(t, done, 5*time.Second, "Register giving up")
	var partial *PartialRegistrationError
	if !errors.As(err, &partial) {
		t.Fatalf("Register = %v, want *PartialRegistrationError", err)
	}
	if !entrystore.IsTransient(err) {
		t.Error("exhausted retry error lost its transient classification")
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	h := newHarness()
	writer, _ := h.writer(t, 1)
	h.store.failLinks(10, transientError{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := writer.Register(ctx, "Alice")
		done <- err
	}()

	h.clock.WaitForTimers(1)
	cancel()

	err := testutil.RequireReceive(t, done, 5*time.Second, "Register after cancel")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Register = %v, want context.Canceled", err)
	}
}

func TestNewWriterRequiresReplica(t *testing.T) {
	if _, err := NewWriter(WriterConfig{}); err == nil {
		t.Error("NewWriter without a replica succeeded")
	}
	if _, err := NewReader(ReaderConfig{}); err == nil {
		t.Error("NewReader without a store succeeded")
	}
}

func TestConcurrentRegistrations(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	const agents = 8
	writers := make([]*Writer, agents)
	names := make([]string, agents)
	for i := range writers {
		writers[i], _ = h.writer(t, byte(0x40+i))
		names[i] = testutil.UniqueID("agent")
	}

	errs := make(chan error, agents)
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := writers[i].Register(ctx, names[i])
			errs <- err
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "concurrent registrations")
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Register: %v", err)
		}
	}

	users := listAddresses(t, h.reader(t))
	if len(users) != agents {
		t.Fatalf("listed %d users, want %d", len(users), agents)
	}
	listed := make(map[string]bool, agents)
	for _, user := range users {
		listed[user.Name] = true
	}
	for _, name := range names {
		if !listed[name] {
			t.Errorf("%s missing from listing", name)
		}
	}
}
