package server

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrLockedOut is reported when a remote address is refused because of
// repeated login failures.
var ErrLockedOut = errors.New("too many failed logins")

// defaultThrottleEntries bounds how many remote addresses are tracked.
const defaultThrottleEntries = 4096

type failureRecord struct {
	count       int
	lockedUntil time.Time
}

// loginThrottle counts consecutive failed logins per remote IP and locks
// an address out for a while once it reaches the limit. The oldest
// addresses are evicted when the table is full.
type loginThrottle struct {
	mu       sync.Mutex
	failures *lru.Cache[string, *failureRecord]
	limit    int
	lockout  time.Duration
	now      func() time.Time
}

func newLoginThrottle(limit int, lockout time.Duration, entries int) (*loginThrottle, error) {
	if entries <= 0 {
		entries = defaultThrottleEntries
	}
	cache, err := lru.New[string, *failureRecord](entries)
	if err != nil {
		return nil, err
	}
	return &loginThrottle{
		failures: cache,
		limit:    limit,
		lockout:  lockout,
		now:      time.Now,
	}, nil
}

// check returns ErrLockedOut while ip is locked out.
func (t *loginThrottle) check(ip string) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.failures.Get(ip)
	if !ok || rec.lockedUntil.IsZero() {
		return nil
	}
	if t.now().Before(rec.lockedUntil) {
		return ErrLockedOut
	}
	// Lockout expired, start counting again.
	t.failures.Remove(ip)
	return nil
}

// fail records a failed attempt and reports whether ip is now locked out.
func (t *loginThrottle) fail(ip string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.failures.Get(ip)
	if !ok {
		rec = &failureRecord{}
		t.failures.Add(ip, rec)
	}
	rec.count++
	if rec.count >= t.limit {
		rec.lockedUntil = t.now().Add(t.lockout)
		return true
	}
	return false
}

func (t *loginThrottle) reset(ip string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures.Remove(ip)
}
