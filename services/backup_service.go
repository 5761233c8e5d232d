package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// BackupManifest describes one snapshot and its integrity hash. It is
// written next to the snapshot file and used by Verify.
type BackupManifest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Snapshot  string    `json:"snapshot"`
	SizeBytes int64     `json:"size_bytes"`
	SHA256    string    `json:"sha256"`
}

// BackupService produces database snapshots off the request path, verifies
// their integrity and rotates old ones. Snapshots are only supported on the
// SQLite backend; on PostgreSQL the service logs a warning and does nothing.
type BackupService struct {
	db       *gorm.DB
	dir      string
	keep     int
	sqlite   bool
	uploader SnapshotUploader // nil disables off-host upload
	audit    *AuditService
}

// NewBackupService wires the snapshot producer.
func NewBackupService(db *gorm.DB, dir string, keep int, sqlite bool, uploader SnapshotUploader, audit *AuditService) *BackupService {
	if keep <= 0 {
		keep = 7
	}
	return &BackupService{db: db, dir: dir, keep: keep, sqlite: sqlite, uploader: uploader, audit: audit}
}

// Run produces one snapshot: VACUUM INTO a fresh file, hash it, write the
// manifest, upload when configured, then rotate local snapshots.
func (s *BackupService) Run() (*BackupManifest, error) {
	if !s.sqlite {
		log.Warn().Msg("file snapshots are only supported on the sqlite backend, skipping")
		return nil, &ValidationError{Message: "backups require the sqlite backend"}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}

	id := uuid.NewString()[:8]
	name := fmt.Sprintf("pos-%s-%s.db", time.Now().Format("20060102-150405"), id)
	path := filepath.Join(s.dir, name)

	// VACUUM INTO writes a consistent copy without blocking writers for
	// the whole duration.
	if err := s.db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}

	sum, size, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	manifest := &BackupManifest{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Snapshot:  name,
		SizeBytes: size,
		SHA256:    sum,
	}
	if err := writeManifest(manifestPath(path), manifest); err != nil {
		return nil, err
	}

	if s.uploader != nil {
		if err := s.uploader.Upload(path, "backups/"+name); err != nil {
			// Local snapshot is still good; the upload can be retried on
			// the next run.
			log.Error().Err(err).Str("snapshot", name).Msg("backup upload failed")
		} else if err := s.uploader.Upload(manifestPath(path), "backups/"+filepath.Base(manifestPath(path))); err != nil {
			log.Error().Err(err).Str("snapshot", name).Msg("manifest upload failed")
		}
	}

	if err := s.rotate(); err != nil {
		log.Error().Err(err).Msg("backup rotation failed")
	}

	log.Info().Str("snapshot", name).Int64("bytes", size).Msg("backup completed")
	s.audit.Record(AuditEntry{
		TableName: "backups",
		Action:    "snapshot",
		NewValues: manifest,
		Actor:     SystemActor,
	})
	return manifest, nil
}

// Verify re-hashes a snapshot against its manifest.
func (s *BackupService) Verify(snapshotName string) error {
	path := filepath.Join(s.dir, snapshotName)

	var manifest BackupManifest
	data, err := os.ReadFile(manifestPath(path))
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	sum, size, err := hashFile(path)
	if err != nil {
		return err
	}
	if size != manifest.SizeBytes {
		return fmt.Errorf("snapshot %s size mismatch: manifest %d, file %d", snapshotName, manifest.SizeBytes, size)
	}
	if sum != manifest.SHA256 {
		return fmt.Errorf("snapshot %s checksum mismatch", snapshotName)
	}
	return nil
}

// List returns the manifests of local snapshots, newest first.
func (s *BackupService) List() ([]BackupManifest, error) {
	names, err := s.snapshotNames()
	if err != nil {
		return nil, err
	}

	manifests := make([]BackupManifest, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		data, err := os.ReadFile(manifestPath(filepath.Join(s.dir, names[i])))
		if err != nil {
			continue
		}
		var m BackupManifest
		if err := json.Unmarshal(data, &m); err == nil {
			manifests = append(manifests, m)
		}
	}
	return manifests, nil
}

// rotate deletes the oldest local snapshots beyond the retention count.
func (s *BackupService) rotate() error {
	names, err := s.snapshotNames()
	if err != nil {
		return err
	}
	if len(names) <= s.keep {
		return nil
	}

	for _, name := range names[:len(names)-s.keep] {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			return err
		}
		os.Remove(manifestPath(path))
		log.Debug().Str("snapshot", name).Msg("rotated old backup")
	}
	return nil
}

// snapshotNames lists snapshot files sorted by name, which sorts oldest
// first because the name embeds the timestamp.
func (s *BackupService) snapshotNames() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "pos-") && strings.HasSuffix(e.Name(), ".db") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func manifestPath(snapshotPath string) string {
	return strings.TrimSuffix(snapshotPath, ".db") + ".manifest.json"
}

func writeManifest(path string, m *BackupManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash snapshot: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
