package flash

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stripes-go/stripes/internal/errors"
)

// RedisClient is the subset of *redis.Client the store uses
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore shares scopes between instances. Each scope is one JSON key
// whose TTL is the scope timeout, so expiry needs no sweeping.
type RedisStore struct {
	client RedisClient
	opts   *options
	mutex  sync.Mutex
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client RedisClient, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: applyOptions(opts)}
}

func (r *RedisStore) key(session, id string) string {
	return r.opts.prefix + session + ":" + id
}

// Create reserves a fresh id with SETNX
func (r *RedisStore) Create(ctx context.Context, session string) (*Scope, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for {
		scope := NewScope(session, r.opts.nextID(), r.opts.timeout)
		data, err := json.Marshal(scope)
		if err != nil {
			return nil, errors.Infrastructure("encode flash scope", err)
		}
		ok, err := r.client.SetNX(ctx, r.key(session, scope.ID), data, scope.Timeout).Result()
		if err != nil {
			return nil, errors.Infrastructure("reserve flash scope", err)
		}
		if ok {
			return scope, nil
		}
	}
}

// Get loads a scope
func (r *RedisStore) Get(ctx context.Context, session, id string) (*Scope, error) {
	return r.load(r.client.Get(ctx, r.key(session, id)))
}

// Consume loads and deletes a scope in one round trip
func (r *RedisStore) Consume(ctx context.Context, session, id string) (*Scope, error) {
	return r.load(r.client.GetDel(ctx, r.key(session, id)))
}

func (r *RedisStore) load(cmd *redis.StringCmd) (*Scope, error) {
	data, err := cmd.Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Infrastructure("load flash scope", err)
	}

	scope := &Scope{}
	if err := json.Unmarshal(data, scope); err != nil {
		return nil, errors.Infrastructure("decode flash scope", err)
	}
	return scope, nil
}

// Complete starts the scope and writes it with a TTL of its timeout
func (r *RedisStore) Complete(ctx context.Context, scope *Scope) error {
	scope.start(r.opts.now())
	data, err := json.Marshal(scope)
	if err != nil {
		return errors.Infrastructure("encode flash scope", err)
	}
	if err := r.client.Set(ctx, r.key(scope.Session, scope.ID), data, scope.Timeout).Err(); err != nil {
		return errors.Infrastructure("save flash scope", err)
	}
	return nil
}

// Sweep is a no-op: Redis expires keys itself
func (r *RedisStore) Sweep(context.Context, string) error {
	return nil
}
