// Package dedup collapses identical concurrent requests into one upstream
// call whose outcome every caller shares.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxAge is the leak guard for entries whose call never settles.
const DefaultMaxAge = 30 * time.Second

// Signature identifies a request for deduplication: method, URL, body and
// the headers that affect the response.
func Signature(method, url string, body []byte, header http.Header) string {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, http.CanonicalHeaderKey(name))
	}
	sort.Strings(names)

	hash := sha256.New()
	fmt.Fprintf(hash, "%s\n%s\n", strings.ToUpper(method), url)
	for _, name := range names {
		fmt.Fprintf(hash, "%s:%s\n", name, strings.Join(header.Values(name), ","))
	}
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

type entry struct {
	startedAt time.Time
}

// Deduplicator shares in-flight calls keyed by signature. Settled calls are
// never cached; the next request after settlement invokes again.
type Deduplicator[T any] struct {
	group   singleflight.Group
	mu      sync.Mutex
	pending map[string]*entry
	maxAge  time.Duration
	clock   func() time.Time
}

// Option configures a Deduplicator.
type Option func(*options)

type options struct {
	maxAge time.Duration
	clock  func() time.Time
}

// WithMaxAge sets how long an unsettled entry may be joined.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *options) {
		if maxAge > 0 {
			o.maxAge = maxAge
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// New creates a Deduplicator.
func New[T any](opts ...Option) *Deduplicator[T] {
	cfg := options{maxAge: DefaultMaxAge, clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Deduplicator[T]{
		pending: make(map[string]*entry),
		maxAge:  cfg.maxAge,
		clock:   cfg.clock,
	}
}

// Do returns the outcome of invoke for signature, sharing an in-flight call
// when one exists. invoke runs with a context that carries ctx's values but
// not its cancellation, so one caller leaving does not fail the others. Each
// caller stops waiting when its own ctx is done. shared reports whether the
// result was delivered to more than one caller.
func (d *Deduplicator[T]) Do(ctx context.Context, signature string, invoke func(context.Context) (T, error)) (result T, shared bool, err error) {
	d.evictStale(signature)

	detached := context.WithoutCancel(ctx)
	ch := d.group.DoChan(signature, func() (value any, callErr error) {
		own := d.register(signature)
		defer d.release(signature, own)
		defer func() {
			if recovered := recover(); recovered != nil {
				callErr = fmt.Errorf("deduplicated call panicked: %v", recovered)
			}
		}()
		return invoke(detached)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Shared, res.Err
		}
		value, _ := res.Val.(T)
		return value, res.Shared, nil
	}
}

// Cancel forgets the entry for signature. Callers already waiting still
// receive the original outcome; new callers start a fresh call.
func (d *Deduplicator[T]) Cancel(signature string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.group.Forget(signature)
	delete(d.pending, signature)
}

// CancelAll forgets every entry.
func (d *Deduplicator[T]) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for signature := range d.pending {
		d.group.Forget(signature)
		delete(d.pending, signature)
	}
}

// PendingCount evicts entries older than the max age, then reports how many
// remain in flight.
func (d *Deduplicator[T]) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	for signature, e := range d.pending {
		if now.Sub(e.startedAt) > d.maxAge {
			d.group.Forget(signature)
			delete(d.pending, signature)
		}
	}
	return len(d.pending)
}

// MaxAge reports the configured leak guard.
func (d *Deduplicator[T]) MaxAge() time.Duration {
	return d.maxAge
}

func (d *Deduplicator[T]) evictStale(signature string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.pending[signature]; ok && d.clock().Sub(e.startedAt) > d.maxAge {
		d.group.Forget(signature)
		delete(d.pending, signature)
	}
}

func (d *Deduplicator[T]) register(signature string) *entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &entry{startedAt: d.clock()}
	d.pending[signature] = e
	return e
}

// release removes the entry only if it still belongs to this call; an
// evicted call settling late must not drop its replacement.
func (d *Deduplicator[T]) release(signature string, own *entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending[signature] == own {
		delete(d.pending, signature)
	}
}
