package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/domain"
)

const (
	keyPrefix  = "tapes/"
	keySuffix  = ".json.gz"
	dateLayout = "2006-01-02"

	// MinTapesToKeep is how many of a warehouse's newest tapes rotation never touches.
	MinTapesToKeep = 3
)

// ObjectStore is the slice of S3 the archiver needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, metadata map[string]string) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// ArchivedTape is one tape found in the bucket.
type ArchivedTape struct {
	Key       string    `json:"key"`
	Warehouse string    `json:"warehouse"`
	AsOf      time.Time `json:"as_of"`
	TapeID    string    `json:"tape_id"`
	SizeBytes int64     `json:"size_bytes"`
}

// Archiver writes tapes as gzipped JSON under tapes/<warehouse>/<as_of>/<tape_id>.json.gz.
type Archiver struct {
	store ObjectStore
	log   zerolog.Logger
}

// NewArchiver creates an archiver over store.
func NewArchiver(store ObjectStore, log zerolog.Logger) *Archiver {
	return &Archiver{
		store: store,
		log:   log.With().Str("service", "archive").Logger(),
	}
}

// Key returns the object key of a tape.
func Key(s domain.Snapshot) string {
	return fmt.Sprintf("%s%s/%s/%s%s", keyPrefix, s.Warehouse, s.AsOf.UTC().Format(dateLayout), s.TapeID, keySuffix)
}

// ArchiveTape uploads a stored tape. The snapshot must carry its tape id.
func (a *Archiver) ArchiveTape(ctx context.Context, s domain.Snapshot) error {
	if s.TapeID == "" {
		return fmt.Errorf("cannot archive tape without an id")
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(s); err != nil {
		return fmt.Errorf("failed to encode tape: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress tape: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	key := Key(s)
	metadata := map[string]string{
		"warehouse": s.Warehouse,
		"as-of":     s.AsOf.UTC().Format(dateLayout),
		"assets":    fmt.Sprintf("%d", len(s.Assets)),
		"checksum":  fmt.Sprintf("sha256:%x", sum),
	}
	if err := a.store.Upload(ctx, key, &buf, metadata); err != nil {
		return err
	}

	a.log.Info().Str("key", key).Int("assets", len(s.Assets)).Msg("Archived tape")
	return nil
}

// List returns a warehouse's archived tapes, newest first. An empty warehouse
// lists every warehouse.
func (a *Archiver) List(ctx context.Context, warehouse string) ([]ArchivedTape, error) {
	prefix := keyPrefix
	if warehouse != "" {
		prefix += warehouse + "/"
	}
	objects, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]ArchivedTape, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		t, ok := parseKey(*obj.Key)
		if !ok {
			a.log.Warn().Str("key", *obj.Key).Msg("Skipping unrecognised archive key")
			continue
		}
		if obj.Size != nil {
			t.SizeBytes = *obj.Size
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AsOf.Equal(out[j].AsOf) {
			return out[i].AsOf.After(out[j].AsOf)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Rotate deletes a warehouse's archived tapes dated before now minus
// retentionDays, always keeping the newest MinTapesToKeep. A retention of
// zero keeps everything. It returns the number of tapes deleted.
func (a *Archiver) Rotate(ctx context.Context, warehouse string, retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	tapes, err := a.List(ctx, warehouse)
	if err != nil {
		return 0, err
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, t := range tapes {
		if i < MinTapesToKeep || !t.AsOf.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, t.Key); err != nil {
			a.log.Error().Err(err).Str("key", t.Key).Msg("Failed to delete archived tape")
			continue
		}
		deleted++
	}

	a.log.Info().
		Str("warehouse", warehouse).
		Int("deleted", deleted).
		Int("remaining", len(tapes)-deleted).
		Msg("Archive rotation completed")
	return deleted, nil
}

// parseKey reads tapes/<warehouse>/<as_of>/<tape_id>.json.gz.
func parseKey(key string) (ArchivedTape, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return ArchivedTape{}, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix), "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return ArchivedTape{}, false
	}
	asOf, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		return ArchivedTape{}, false
	}
	return ArchivedTape{Key: key, Warehouse: parts[0], AsOf: asOf, TapeID: parts[2]}, true
}
