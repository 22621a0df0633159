package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collective-judgment/cjo/internal/model"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	items []model.Item
}

func (s *fakeSubmitter) SubmitAsync(item model.Item) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return uuid.New()
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *fakeSubmitter) last() model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[len(s.items)-1]
}

func waitForCount(t *testing.T, sub *fakeSubmitter, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sub.count() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.GreaterOrEqual(t, sub.count(), n, "submission count never reached %d", n)
}

func TestWatcher_SubmitsNewFileAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	sub := &fakeSubmitter{}
	w, err := New(Config{Dir: dir, Submitter: sub, DebounceMs: 20, Kind: model.KindFreeText})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	waitForCount(t, sub, 1, time.Second)
	got := sub.last()
	assert.Equal(t, model.KindFreeText, got.Kind)
	assert.Equal(t, "hello world", got.Body)
	assert.Equal(t, path, got.Context["path"])
}

func TestWatcher_DebouncesRapidRewrites(t *testing.T) {
	dir := t.TempDir()
	sub := &fakeSubmitter{}
	w, err := New(Config{Dir: dir, Submitter: sub, DebounceMs: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	path := filepath.Join(dir, "draft.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("revision"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, sub.count())
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	sub := &fakeSubmitter{}
	w, err := New(Config{Dir: dir, Submitter: sub, DebounceMs: 20})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, sub.count())
}

func TestNew_DefaultsKindAndDebounce(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Dir: dir, Submitter: &fakeSubmitter{}})
	require.NoError(t, err)
	assert.Equal(t, model.KindFreeText, w.kind)
	assert.Equal(t, 500, w.debounceMs)
}

func TestStop_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Dir: dir, Submitter: &fakeSubmitter{}, DebounceMs: 20})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
