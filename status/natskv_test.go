package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	key   string
	value []byte
	rev   uint64
}

func (e *fakeEntry) Bucket() string                  { return "pipeline-status" }
func (e *fakeEntry) Key() string                     { return e.key }
func (e *fakeEntry) Value() []byte                   { return e.value }
func (e *fakeEntry) Revision() uint64                { return e.rev }
func (e *fakeEntry) Created() time.Time              { return time.Time{} }
func (e *fakeEntry) Delta() uint64                   { return 0 }
func (e *fakeEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

// fakeBucket implements the subset of jetstream.KeyValue the store uses.
// conflicts[key] injects that many CAS failures before writes succeed.
type fakeBucket struct {
	jetstream.KeyValue
	mu        sync.Mutex
	data      map[string]*fakeEntry
	rev       uint64
	conflicts map[string]int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{
		data:      make(map[string]*fakeEntry),
		conflicts: make(map[string]int),
	}
}

var errWrongSequence = errors.New("nats: wrong last sequence")

func (b *fakeBucket) takeConflict(key string) bool {
	if b.conflicts[key] > 0 {
		b.conflicts[key]--
		return true
	}
	return false
}

func (b *fakeBucket) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return entry, nil
}

func (b *fakeBucket) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.takeConflict(key) {
		return 0, jetstream.ErrKeyExists
	}
	if _, ok := b.data[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	b.rev++
	b.data[key] = &fakeEntry{key: key, value: value, rev: b.rev}
	return b.rev, nil
}

func (b *fakeBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.takeConflict(key) {
		return 0, errWrongSequence
	}
	entry, ok := b.data[key]
	if !ok || entry.rev != revision {
		return 0, errWrongSequence
	}
	b.rev++
	b.data[key] = &fakeEntry{key: key, value: value, rev: b.rev}
	return b.rev, nil
}

func (b *fakeBucket) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(b.data, key)
	return nil
}

func (b *fakeBucket) Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *fakeBucket) Status(ctx context.Context) (jetstream.KeyValueStatus, error) {
	return nil, nil
}

func newNATSTestStore(t *testing.T) (*NATSStore, *fakeBucket) {
	t.Helper()
	bucket := newFakeBucket()
	store, err := NewNATSStore(bucket)
	require.NoError(t, err)
	return store, bucket
}

func TestNATSStore_RequiresBucket(t *testing.T) {
	_, err := NewNATSStore(nil)
	assert.Error(t, err)
}

func TestNATSStore_SetStatusAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newNATSTestStore(t)

	err := store.SetStatus(ctx, "track.mp3", StatusProcessing, map[string]string{"stage": "splitter"})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, "track.mp3", rec.Filename)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, "splitter", rec.Extra["stage"])
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestNATSStore_GetUntrackedIsUnknown(t *testing.T) {
	ctx := context.Background()
	store, _ := newNATSTestStore(t)

	rec, err := store.Get(ctx, "nope.mp3")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, rec.Status)
}

func TestNATSStore_SetErrorThenClear(t *testing.T) {
	ctx := context.Background()
	store, _ := newNATSTestStore(t)

	require.NoError(t, store.SetError(ctx, "track.mp3", "packager failed"))
	rec, err := store.Get(ctx, "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, "packager failed", rec.LastError)

	_, err = store.IncrementRetry(ctx, "packager", "track.mp3")
	require.NoError(t, err)

	require.NoError(t, store.ClearError(ctx, "track.mp3"))
	rec, err = store.Get(ctx, "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, rec.Status)
	assert.Empty(t, rec.LastError)

	count, err := store.RetryCount(ctx, "packager", "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNATSStore_CASConflictIsRetried(t *testing.T) {
	ctx := context.Background()
	store, bucket := newNATSTestStore(t)

	require.NoError(t, store.SetStatus(ctx, "track.mp3", StatusQueued, nil))

	// Two injected conflicts, then the write lands.
	bucket.conflicts[store.fileKey("track.mp3")] = 2
	require.NoError(t, store.SetStatus(ctx, "track.mp3", StatusDone, nil))

	rec, err := store.Get(ctx, "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, rec.Status)
}

func TestNATSStore_IncrementRetryUnderConflict(t *testing.T) {
	ctx := context.Background()
	store, bucket := newNATSTestStore(t)

	count, err := store.IncrementRetry(ctx, "splitter", "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	bucket.conflicts[store.retryKey("splitter", "track.mp3")] = 1
	count, err = store.IncrementRetry(ctx, "splitter", "track.mp3")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNATSStore_ListByStatus(t *testing.T) {
	ctx := context.Background()
	store, _ := newNATSTestStore(t)

	require.NoError(t, store.SetStatus(ctx, "a.mp3", StatusQueued, nil))
	require.NoError(t, store.SetStatus(ctx, "b 2.mp3", StatusQueued, nil))
	require.NoError(t, store.SetStatus(ctx, "c.mp3", StatusDone, nil))

	files, err := store.ListByStatus(ctx, StatusQueued)
	require.NoError(t, err)
	// Original filenames come back even though keys are encoded.
	assert.ElementsMatch(t, []string{"a.mp3", "b 2.mp3"}, files)
}

func TestNATSStore_ListByStatusEmptyBucket(t *testing.T) {
	ctx := context.Background()
	store, _ := newNATSTestStore(t)

	files, err := store.ListByStatus(ctx, StatusQueued)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"track.mp3", "track.mp3"},
		{"my song.mp3", "my_song.mp3"},
		{"a:b.mp3", "a_b.mp3"},
		{"Track-01_final.mp3", "Track-01_final.mp3"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, encodeKey(test.input))
	}
}
