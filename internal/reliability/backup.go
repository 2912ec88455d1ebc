// Package reliability keeps rampwatch.db healthy and backed up.
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/archive"
	"github.com/aristath/rampwatch/internal/database"
)

const (
	backupPrefix = "backups/rampwatch-"
	backupSuffix = ".db.gz"
	backupLayout = "2006-01-02-150405"

	// MinBackupsToKeep is how many of the newest backups rotation never deletes.
	MinBackupsToKeep = 3
)

// BackupInfo describes one backup in the bucket
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService snapshots the database into object storage
type BackupService struct {
	db    *database.DB
	store archive.ObjectStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewBackupService creates a backup service that uploads to store
func NewBackupService(db *database.DB, store archive.ObjectStore, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:    db,
		store: store,
		log:   log.With().Str("service", "backup").Logger(),
		now:   time.Now,
	}
}

// CreateAndUpload writes a consistent copy of the database with VACUUM INTO,
// gzips it and uploads it. It returns the object key.
func (s *BackupService) CreateAndUpload(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting database backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp("", "rampwatch-backup-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	copyPath := filepath.Join(stagingDir, "rampwatch.db")
	if _, err := s.db.Conn().ExecContext(ctx, "VACUUM INTO ?", copyPath); err != nil {
		return "", fmt.Errorf("failed to copy database: %w", err)
	}

	body, checksum, err := compressFile(copyPath)
	if err != nil {
		return "", err
	}

	key := backupPrefix + s.now().UTC().Format(backupLayout) + backupSuffix
	size := body.Len()
	if err := s.store.Upload(ctx, key, body, map[string]string{"sha256": checksum}); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("key", key).
		Int("size_bytes", size).
		Msg("Database backup completed successfully")
	return key, nil
}

// compressFile gzips path and returns the archive along with the sha256 of
// the uncompressed file
func compressFile(path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database copy: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	hash := sha256.New()
	gz := gzip.NewWriter(&buf)
	if _, err := io.Copy(io.MultiWriter(gz, hash), f); err != nil {
		return nil, "", fmt.Errorf("failed to compress database copy: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to compress database copy: %w", err)
	}
	return &buf, hex.EncodeToString(hash.Sum(nil)), nil
}

// ListBackups returns backups newest first. Objects that do not follow the
// backup naming scheme are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		key := aws.ToString(obj.Key)
		stamp := strings.TrimSuffix(strings.TrimPrefix(key, backupPrefix), backupSuffix)
		if !strings.HasSuffix(key, backupSuffix) {
			continue
		}
		ts, err := time.Parse(backupLayout, stamp)
		if err != nil {
			s.log.Debug().Str("key", key).Msg("Skipping object with unexpected name")
			continue
		}
		backups = append(backups, BackupInfo{Key: key, Timestamp: ts, SizeBytes: aws.ToInt64(obj.Size)})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes backups older than retentionDays, keeping the
// newest MinBackupsToKeep regardless of age. It returns the number deleted.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	s.log.Info().Int("retention_days", retentionDays).Msg("Starting backup rotation")

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, b := range backups {
		if i < MinBackupsToKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("Backup rotation completed")
	return deleted, nil
}

// BackupJob runs a backup followed by rotation
type BackupJob struct {
	service       *BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates the scheduled backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "database_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "database_backup"
}

// Run executes the backup job. A failed rotation is logged but does not fail
// a successful backup.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}
	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
