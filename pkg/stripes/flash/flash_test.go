package flash

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

func sequence(ids ...string) func() string {
	var mutex sync.Mutex
	return func() string {
		mutex.Lock()
		defer mutex.Unlock()
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}
}

type detachable struct {
	detached bool
}

func (d *detachable) Detach() { d.detached = true }

func TestScopeAge(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	scope := NewScope("s", "1", 0)

	assert.Equal(t, DefaultTimeout, scope.Timeout)
	assert.Zero(t, scope.Age(start.Add(time.Hour)), "unstarted scopes do not age")
	assert.False(t, scope.Expired(start.Add(time.Hour)))

	scope.start(start)
	assert.Equal(t, 100*time.Second, scope.Age(start.Add(100*time.Second+400*time.Millisecond)))
	assert.False(t, scope.Expired(start.Add(100*time.Second)))
	assert.False(t, scope.Expired(start.Add(120*time.Second)))
	assert.True(t, scope.Expired(start.Add(130*time.Second)))
}

func TestScopeJSON(t *testing.T) {
	scope := NewScope("s", "42", time.Minute)
	scope.Put("message", "saved")
	scope.Put("count", 3)

	data, err := json.Marshal(scope)
	require.NoError(t, err)

	decoded := &Scope{}
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, "42", decoded.ID)
	assert.Equal(t, "s", decoded.Session)
	assert.Equal(t, time.Minute, decoded.Timeout)
	assert.Equal(t, map[string]interface{}{"message": "saved", "count": float64(3)}, decoded.Values())
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(c.Now))

	scope, err := store.Create(ctx, "session-1")
	require.NoError(t, err)
	bean := &detachable{}
	scope.Put(BeanKey, bean)
	scope.Put("message", "saved")

	require.NoError(t, store.Complete(ctx, scope))
	assert.True(t, bean.detached)
	assert.Equal(t, c.Now(), scope.Started)

	got, err := store.Get(ctx, "session-1", scope.ID)
	require.NoError(t, err)
	assert.Same(t, scope, got)

	consumed, err := store.Consume(ctx, "session-1", scope.ID)
	require.NoError(t, err)
	require.NotNil(t, consumed)
	v, ok := consumed.Get("message")
	assert.True(t, ok)
	assert.Equal(t, "saved", v)

	again, err := store.Consume(ctx, "session-1", scope.ID)
	require.NoError(t, err)
	assert.Nil(t, again, "a scope is consumed once")
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(c.Now), WithIDGenerator(sequence("1", "2", "3")))

	old, _ := store.Create(ctx, "s")
	require.NoError(t, store.Complete(ctx, old))

	c.Advance(100 * time.Second)
	recent, _ := store.Create(ctx, "s")
	require.NoError(t, store.Complete(ctx, recent))
	assert.Equal(t, 2, store.Len("s"), "100s is inside the timeout")

	c.Advance(30 * time.Second)
	current, _ := store.Create(ctx, "s")
	require.NoError(t, store.Complete(ctx, current))

	assert.Equal(t, 2, store.Len("s"), "130s old scope is swept")
	gone, _ := store.Get(ctx, "s", old.ID)
	assert.Nil(t, gone)
}

func TestMemoryStoreConsumeExpired(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(c.Now), WithIDGenerator(sequence("1", "2")))

	stale, _ := store.Create(ctx, "s")
	stale.Put("message", "stale")
	require.NoError(t, store.Complete(ctx, stale))

	c.Advance(DefaultTimeout + time.Second)
	pending, _ := store.Create(ctx, "s")
	pending.Put("message", "pending")

	got, err := store.Consume(ctx, "s", stale.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, store.Len("s"), "the expired scope is still removed")

	got, err = store.Consume(ctx, "s", pending.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	msg, _ := got.Get("message")
	assert.Equal(t, "pending", msg)
}

func TestMemoryStoreUniqueIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithIDGenerator(sequence("7", "7", "7", "8")))

	first, err := store.Create(ctx, "s")
	require.NoError(t, err)
	second, err := store.Create(ctx, "s")
	require.NoError(t, err)

	assert.Equal(t, "7", first.ID)
	assert.Equal(t, "8", second.ID)
}

func TestMemoryStoreConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope, err := store.Create(ctx, "s")
			if err == nil {
				ids <- scope.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	scope, err := store.Consume(context.Background(), "nobody", "1")
	require.NoError(t, err)
	assert.Nil(t, scope)
	assert.NoError(t, store.Sweep(context.Background(), "nobody"))
}

type fakeRedis struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	delete(f.data, key)
	return cmd
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewRedisStore(client,
		WithClock(func() time.Time { return start }),
		WithIDGenerator(sequence("5", "5", "6")),
		WithTimeout(time.Minute),
	)

	first, err := store.Create(ctx, "sess")
	require.NoError(t, err)
	second, err := store.Create(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "5", first.ID)
	assert.Equal(t, "6", second.ID, "reserved ids are not reused")

	bean := &detachable{}
	first.Put("bean", bean)
	first.Put("message", "hello")
	require.NoError(t, store.Complete(ctx, first))
	assert.True(t, bean.detached)
	assert.Equal(t, time.Minute, client.ttl["stripes:flash:sess:5"])

	loaded, err := store.Get(ctx, "sess", "5")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, start, loaded.Started.UTC())
	msg, _ := loaded.Get("message")
	assert.Equal(t, "hello", msg)

	consumed, err := store.Consume(ctx, "sess", "5")
	require.NoError(t, err)
	require.NotNil(t, consumed)

	missing, err := store.Consume(ctx, "sess", "5")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, store.Sweep(ctx, "sess"))
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSQLStore(sqlx.NewDb(db, "postgres"),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(sequence("7", "8")),
	)

	insert := regexp.QuoteMeta(`INSERT INTO stripes_flash (session_id, scope_id, data, expires_at)`)
	mock.ExpectExec(insert).
		WithArgs("sess", "7", sqlmock.AnyArg(), now.Add(DefaultTimeout)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insert).
		WithArgs("sess", "8", sqlmock.AnyArg(), now.Add(DefaultTimeout)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	scope, err := store.Create(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "8", scope.ID)

	scope.Put("message", "saved")
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM stripes_flash WHERE session_id = $1 AND expires_at < $2`)).
		WithArgs("sess", now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE stripes_flash SET data = $3, expires_at = $4`)).
		WithArgs("sess", "8", sqlmock.AnyArg(), now.Add(DefaultTimeout)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Complete(ctx, scope))

	payload, err := json.Marshal(scope)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM stripes_flash WHERE session_id = $1 AND scope_id = $2 RETURNING data`)).
		WithArgs("sess", "8").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(payload))

	consumed, err := store.Consume(ctx, "sess", "8")
	require.NoError(t, err)
	require.NotNil(t, consumed)
	msg, _ := consumed.Get("message")
	assert.Equal(t, "saved", msg)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM stripes_flash`)).
		WithArgs("sess", "9").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	missing, err := store.Get(ctx, "sess", "9")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRandomID(t *testing.T) {
	id := randomID()
	n, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(0))
}
