package server

import (
	"errors"
	"testing"
	"time"
)

func TestLoginThrottle(t *testing.T) {
	th, err := newLoginThrottle(3, time.Minute, 0)
	fatalIfErr(t, err, "newLoginThrottle")

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if th.fail("10.0.0.1") {
			t.Fatalf("locked out after %d failures", i+1)
		}
	}
	if err := th.check("10.0.0.1"); err != nil {
		t.Fatalf("unexpected lockout: %v", err)
	}
	if !th.fail("10.0.0.1") {
		t.Fatal("expected lockout on third failure")
	}
	if err := th.check("10.0.0.1"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}
	if err := th.check("10.0.0.2"); err != nil {
		t.Errorf("other address affected: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := th.check("10.0.0.1"); err != nil {
		t.Errorf("lockout should have expired: %v", err)
	}
	if th.fail("10.0.0.1") {
		t.Error("count should restart after expiry")
	}
}

func TestLoginThrottleReset(t *testing.T) {
	th, err := newLoginThrottle(2, time.Minute, 0)
	fatalIfErr(t, err, "newLoginThrottle")

	th.fail("10.0.0.1")
	th.reset("10.0.0.1")
	if th.fail("10.0.0.1") {
		t.Error("reset should clear the failure count")
	}
}

func TestLoginThrottleEviction(t *testing.T) {
	th, err := newLoginThrottle(1, time.Minute, 2)
	fatalIfErr(t, err, "newLoginThrottle")

	th.fail("a")
	th.fail("b")
	th.fail("c") // evicts a
	if err := th.check("a"); err != nil {
		t.Errorf("evicted address still locked: %v", err)
	}
	if err := th.check("c"); !errors.Is(err, ErrLockedOut) {
		t.Errorf("expected c locked out, got %v", err)
	}
}

func TestNilLoginThrottle(t *testing.T) {
	var th *loginThrottle
	if err := th.check("x"); err != nil {
		t.Errorf("nil throttle check: %v", err)
	}
	if th.fail("x") {
		t.Error("nil throttle should never lock out")
	}
	th.reset("x")
}
