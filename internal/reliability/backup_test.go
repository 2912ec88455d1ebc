package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
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

	rwtesting "github.com/aristath/rampwatch/internal/testing"
)

type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
	failList bool
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
	if m.failList {
		return nil, errors.New("list denied")
	}
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
	delete(m.objects, key)
	return nil
}

func TestCreateAndUpload(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	defer cleanup()

	store := newMemStore()
	svc := NewBackupService(db, store, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 14, 30, 22, 0, time.UTC) }

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backups/rampwatch-2025-03-01-143022.db.gz", key)

	require.Contains(t, store.objects, key)
	assert.Len(t, store.metadata[key]["sha256"], 64)

	gz, err := gzip.NewReader(bytes.NewReader(store.objects[key]))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("SQLite format 3")))
}

func TestListAndRotateBackups(t *testing.T) {
	store := newMemStore()
	for _, day := range []string{"01", "02", "03", "04", "05"} {
		store.objects["backups/rampwatch-2025-01-"+day+"-020000.db.gz"] = []byte("x")
	}
	store.objects["backups/notes.txt"] = []byte("ignored")
	store.objects["backups/rampwatch-garbage.db.gz"] = []byte("ignored")

	svc := NewBackupService(nil, store, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) }

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 5)
	assert.Equal(t, "backups/rampwatch-2025-01-05-020000.db.gz", backups[0].Key)
	assert.Equal(t, int64(1), backups[0].SizeBytes)

	// Cutoff is Jan 4: Jan 1-3 are old but Jan 3 is within the newest three.
	deleted, err := svc.RotateOldBackups(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.NotContains(t, store.objects, "backups/rampwatch-2025-01-01-020000.db.gz")
	assert.NotContains(t, store.objects, "backups/rampwatch-2025-01-02-020000.db.gz")
	assert.Contains(t, store.objects, "backups/rampwatch-2025-01-03-020000.db.gz")

	deleted, err = svc.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestBackupJob(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	defer cleanup()

	store := newMemStore()
	job := NewBackupJob(NewBackupService(db, store, zerolog.Nop()), 30, zerolog.Nop())
	assert.Equal(t, "database_backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.objects, 1)

	store.failList = true
	assert.NoError(t, job.Run(), "rotation failure must not fail the backup")
}
