package archive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rampwatch/internal/domain"
	rwtesting "github.com/aristath/rampwatch/internal/testing"
)

type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
	failDel  string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (m *memStore) Upload(_ context.Context, key string, body io.Reader, metadata map[string]string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	m.metadata[key] = metadata
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]types.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]types.Object, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(m.objects[k])))})
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.failDel {
		return errors.New("denied")
	}
	delete(m.objects, key)
	return nil
}

func snapshot(warehouse, id string, day int) domain.Snapshot {
	s := rwtesting.NewSnapshotFixture(warehouse, time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC))
	s.TapeID = id
	return s
}

func TestArchiveTape(t *testing.T) {
	store := newMemStore()
	a := NewArchiver(store, zerolog.Nop())
	s := snapshot("WH-1", "abc", 14)

	require.NoError(t, a.ArchiveTape(context.Background(), s))

	key := "tapes/WH-1/2025-01-14/abc.json.gz"
	require.Contains(t, store.objects, key)
	assert.Equal(t, "8", store.metadata[key]["assets"])
	assert.True(t, strings.HasPrefix(store.metadata[key]["checksum"], "sha256:"))

	gz, err := gzip.NewReader(strings.NewReader(string(store.objects[key])))
	require.NoError(t, err)
	var got domain.Snapshot
	require.NoError(t, json.NewDecoder(gz).Decode(&got))
	assert.Equal(t, "WH-1", got.Warehouse)
	assert.Len(t, got.Assets, 8)
}

func TestArchiveTapeRequiresID(t *testing.T) {
	a := NewArchiver(newMemStore(), zerolog.Nop())
	assert.Error(t, a.ArchiveTape(context.Background(), snapshot("WH-1", "", 14)))
}

func TestListParsesAndSorts(t *testing.T) {
	store := newMemStore()
	a := NewArchiver(store, zerolog.Nop())
	ctx := context.Background()

	for _, s := range []domain.Snapshot{
		snapshot("WH-1", "a", 3),
		snapshot("WH-1", "b", 20),
		snapshot("WH-2", "c", 10),
	} {
		require.NoError(t, a.ArchiveTape(ctx, s))
	}
	store.objects["tapes/WH-1/not-a-date/x.json.gz"] = []byte("junk")

	got, err := a.List(ctx, "WH-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].TapeID)
	assert.Equal(t, "a", got[1].TapeID)
	assert.Equal(t, "WH-1", got[0].Warehouse)
	assert.Positive(t, got[0].SizeBytes)

	all, err := a.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRotate(t *testing.T) {
	store := newMemStore()
	a := NewArchiver(store, zerolog.Nop())
	ctx := context.Background()

	for i, day := range []int{1, 2, 3, 4, 5, 28} {
		require.NoError(t, a.ArchiveTape(ctx, snapshot("WH-1", string(rune('a'+i)), day)))
	}
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	deleted, err := a.Rotate(ctx, "WH-1", 0, now)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// Cutoff Jan 21: days 1, 2 and 3 are old, but 5 and 4 are kept with 28.
	store.failDel = "tapes/WH-1/2025-01-02/b.json.gz"
	deleted, err = a.Rotate(ctx, "WH-1", 10, now)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	left, err := a.List(ctx, "WH-1")
	require.NoError(t, err)
	var ids []string
	for _, tape := range left {
		ids = append(ids, tape.TapeID)
	}
	assert.Equal(t, []string{"f", "e", "d", "b"}, ids)
}

func TestParseKey(t *testing.T) {
	got, ok := parseKey("tapes/WH-1/2025-01-14/abc.json.gz")
	require.True(t, ok)
	assert.Equal(t, "WH-1", got.Warehouse)
	assert.Equal(t, "abc", got.TapeID)

	for _, bad := range []string{
		"other/WH-1/2025-01-14/abc.json.gz",
		"tapes/WH-1/2025-01-14/abc.json",
		"tapes/WH-1/abc.json.gz",
		"tapes//2025-01-14/abc.json.gz",
	} {
		_, ok := parseKey(bad)
		assert.False(t, ok, bad)
	}
}
