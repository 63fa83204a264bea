// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend widens the find/create window so unserialized callers
// would create duplicates.
type countingBackend struct {
	mu      sync.Mutex
	folders map[string]string
	creates atomic.Int32
	uploads []string
	findErr error
	delay   time.Duration
	block   bool
}

func newCountingBackend() *countingBackend {
	return &countingBackend{folders: map[string]string{}, delay: 20 * time.Millisecond}
}

func (b *countingBackend) Name() string { return "fake" }

func (b *countingBackend) FindFolder(_ context.Context, rootID, name string) (string, error) {
	if b.findErr != nil {
		return "", b.findErr
	}
	b.mu.Lock()
	id, ok := b.folders[rootID+"/"+name]
	b.mu.Unlock()
	if !ok {
		return "", ErrFolderNotFound
	}
	return id, nil
}

func (b *countingBackend) CreateFolder(_ context.Context, rootID, name string) (string, error) {
	time.Sleep(b.delay)
	n := b.creates.Add(1)
	id := fmt.Sprintf("folder-%d", n)
	b.mu.Lock()
	b.folders[rootID+"/"+name] = id
	b.mu.Unlock()
	return id, nil
}

func (b *countingBackend) UploadFile(ctx context.Context, folderID, _, remoteName string) error {
	if b.block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.uploads = append(b.uploads, folderID+"/"+remoteName)
	b.mu.Unlock()
	return nil
}

func ensureConcurrently(t *testing.T, stores []*Store, callers int, name string) []string {
	t.Helper()
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ids[i], errs[i] = stores[i%len(stores)].EnsureFolder(context.Background(), "root", name)
		}(i)
	}
	close(start)
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	return ids
}

func TestEnsureFolderConcurrentCreatesOnce(t *testing.T) {
	backend := newCountingBackend()
	store := NewStore(backend, Options{})

	ids := ensureConcurrently(t, []*Store{store}, 16, "campaign")
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.EqualValues(t, 1, backend.creates.Load())

	again, err := store.EnsureFolder(context.Background(), "root", "campaign")
	require.NoError(t, err)
	assert.Equal(t, ids[0], again)
	assert.EqualValues(t, 1, backend.creates.Load())
}

func TestEnsureFolderAcrossStoresWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend := newCountingBackend()
	stores := []*Store{
		NewStore(backend, Options{Locker: NewRedisLocker(client, RedisLockerConfig{PollInterval: 5 * time.Millisecond})}),
		NewStore(backend, Options{Locker: NewRedisLocker(client, RedisLockerConfig{PollInterval: 5 * time.Millisecond})}),
	}

	ids := ensureConcurrently(t, stores, 8, "shared")
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.EqualValues(t, 1, backend.creates.Load())
	assert.Empty(t, mr.Keys(), "lock keys must be released")
}

func TestEnsureFolderNormalizesName(t *testing.T) {
	backend := newCountingBackend()
	backend.delay = 0
	store := NewStore(backend, Options{})

	composed, err := store.EnsureFolder(context.Background(), "root", "café")
	require.NoError(t, err)
	decomposed, err := store.EnsureFolder(context.Background(), "root", "  café ")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
	assert.EqualValues(t, 1, backend.creates.Load())

	_, err = store.EnsureFolder(context.Background(), "root", "   ")
	assert.Error(t, err)
}

func TestEnsureFolderFindError(t *testing.T) {
	backend := newCountingBackend()
	backend.findErr = errors.New("quota exceeded")
	store := NewStore(backend, Options{})

	_, err := store.EnsureFolder(context.Background(), "root", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Zero(t, backend.creates.Load())
}

func TestUploadTimeout(t *testing.T) {
	backend := newCountingBackend()
	backend.block = true
	store := NewStore(backend, Options{UploadTimeout: 10 * time.Millisecond})

	err := store.Upload(context.Background(), "folder-1", "/dev/null", "output_1.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLockerExcludes(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()

	l.mu.Lock()
	assert.Empty(t, l.locks)
	l.mu.Unlock()
}

func TestRedisLockerLeaseExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, RedisLockerConfig{TTL: time.Second, PollInterval: 5 * time.Millisecond})
	_, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	mr.FastForward(2 * time.Second)
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	assert.Empty(t, mr.Keys())
}

func TestLocalBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocalBackend(filepath.Join(dir, "remote"))
	require.NoError(t, err)
	store := NewStore(b, Options{})

	id, err := store.EnsureFolder(context.Background(), "videos", "Summer Sale")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("videos", "Summer Sale"), id)

	src := filepath.Join(dir, "output_1.mp4")
	require.NoError(t, os.WriteFile(src, []byte("rendered"), 0o600))
	require.NoError(t, store.Upload(context.Background(), id, src, "output_1.mp4"))

	got, err := os.ReadFile(filepath.Join(dir, "remote", "videos", "Summer Sale", "output_1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(got))

	_, err = b.FindFolder(context.Background(), "videos", "../escape")
	assert.Error(t, err)
	assert.Error(t, b.UploadFile(context.Background(), id, src, "../x.mp4"))
}
