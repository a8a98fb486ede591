package flash

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"
)

// Store holds flash scopes per session. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create opens a new scope with an id unique within the session
	Create(ctx context.Context, session string) (*Scope, error)
	// Get returns the scope with id, or nil
	Get(ctx context.Context, session, id string) (*Scope, error)
	// Consume removes and returns the scope with id, or nil
	Consume(ctx context.Context, session, id string) (*Scope, error)
	// Complete sweeps expired scopes, detaches the scope's values and starts
	// its timer
	Complete(ctx context.Context, scope *Scope) error
	// Sweep removes the session's expired scopes
	Sweep(ctx context.Context, session string) error
}

// Option configures a store
type Option func(*options)

type options struct {
	timeout time.Duration
	now     func() time.Time
	nextID  func() string
	prefix  string
	table   string
}

func defaultOptions() *options {
	return &options{
		timeout: DefaultTimeout,
		now:     time.Now,
		nextID:  randomID,
		prefix:  "stripes:flash:",
		table:   "stripes_flash",
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTimeout sets how long started scopes live
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator replaces the random id source
func WithIDGenerator(next func() string) Option {
	return func(o *options) {
		o.nextID = next
	}
}

// WithPrefix sets the Redis key prefix. Default: "stripes:flash:".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTable sets the SQL table name. Default: "stripes_flash".
func WithTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

func randomID() string {
	return strconv.FormatInt(int64(rand.Int32()), 10)
}
