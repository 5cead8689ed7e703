// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"

	"github.com/bureau-foundation/agentreg/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Errorf("Now = %v, want %v", c.Now(), epoch)
	}
	c.Advance(time.Minute)
	if want := epoch.Add(time.Minute); !c.Now().Equal(want) {
		t.Errorf("Now after Advance = %v, want %v", c.Now(), want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	channel := c.After(5 * time.Second)

	c.Advance(4 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	fired := testutil.RequireReceive(t, channel, time.Second, "After after deadline")
	if want := epoch.Add(5 * time.Second); !fired.Equal(want) {
		t.Errorf("fired at %v, want %v", fired, want)
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after firing, want 0", c.PendingCount())
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	c := Fake(epoch)
	testutil.RequireReceive(t, c.After(0), time.Second, "After(0)")
	if c.PendingCount() != 0 {
		t.Error("After(0) registered a waiter")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})

	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)
	testutil.RequireClosed(t, done, time.Second, "goroutine released by Advance")
}

func TestRealClock(t *testing.T) {
	c := Real()
	before := time.Now()
	if c.Now().Before(before) {
		t.Error("Real().Now() is before time.Now()")
	}
	testutil.RequireReceive(t, c.After(0), time.Second, "Real().After(0)")
}
