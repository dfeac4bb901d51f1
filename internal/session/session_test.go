package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	mu    sync.Mutex
	data  map[string][]byte
	ttls  map[string]time.Duration
	clock time.Time
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return val, nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeKV) Ping(context.Context) error { return nil }

func TestManagerRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := newFakeKV()
	mgr := NewManager(kv, time.Hour)

	token, err := mgr.Create(ctx, Session{UserID: "u-1", Email: "a@x.com"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := mgr.Validate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "u-1", sess.UserID)
	require.Equal(t, "a@x.com", sess.Email)

	// The stored key carries the namespace prefix and the configured TTL.
	require.Contains(t, kv.data, keyPrefix+token)
	require.Equal(t, time.Hour, kv.ttls[keyPrefix+token])
}

func TestManagerCreateUniqueTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr := NewManager(newFakeKV(), time.Hour)

	a, err := mgr.Create(ctx, Session{UserID: "u-1"})
	require.NoError(t, err)
	b, err := mgr.Create(ctx, Session{UserID: "u-1"})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestManagerValidateUnknownToken(t *testing.T) {
	t.Parallel()

	mgr := NewManager(newFakeKV(), time.Hour)

	_, err := mgr.Validate(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = mgr.Validate(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerDestroy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr := NewManager(newFakeKV(), time.Hour)

	token, err := mgr.Create(ctx, Session{UserID: "u-1"})
	require.NoError(t, err)

	require.NoError(t, mgr.Destroy(ctx, token))

	_, err = mgr.Validate(ctx, token)
	require.ErrorIs(t, err, ErrNotFound)

	// Idempotent.
	require.NoError(t, mgr.Destroy(ctx, token))
	require.NoError(t, mgr.Destroy(ctx, ""))
}

func TestManagerDefaultTTL(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	mgr := NewManager(kv, 0)

	token, err := mgr.Create(context.Background(), Session{UserID: "u-1"})
	require.NoError(t, err)
	require.Equal(t, DefaultTTL, kv.ttls[keyPrefix+token])
}
