package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/models"
)

// newBackupEnv opens a file-backed database so VACUUM INTO has a real file
// to snapshot.
func newBackupEnv(t *testing.T, keep int, uploader SnapshotUploader) (*BackupService, string) {
	t.Helper()

	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "pos.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	backupDir := filepath.Join(dir, "backups")
	return NewBackupService(db, backupDir, keep, true, uploader, nil), backupDir
}

func TestBackupRun_ProducesVerifiableSnapshot(t *testing.T) {
	backups, dir := newBackupEnv(t, 7, nil)

	manifest, err := backups.Run()
	assert.NoError(t, err)
	assert.NotEmpty(t, manifest.Snapshot)
	assert.Len(t, manifest.SHA256, 64)
	assert.Greater(t, manifest.SizeBytes, int64(0))

	// Snapshot and manifest both landed on disk.
	_, err = os.Stat(filepath.Join(dir, manifest.Snapshot))
	assert.NoError(t, err)

	assert.NoError(t, backups.Verify(manifest.Snapshot))
}

func TestBackupVerify_DetectsTampering(t *testing.T) {
	backups, dir := newBackupEnv(t, 7, nil)

	manifest, err := backups.Run()
	assert.NoError(t, err)

	// Append a byte to the snapshot; the hash must no longer match.
	path := filepath.Join(dir, manifest.Snapshot)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	assert.NoError(t, err)
	_, err = f.Write([]byte{0x00})
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	err = backups.Verify(manifest.Snapshot)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestBackupRotation_KeepsNewestSnapshots(t *testing.T) {
	backups, dir := newBackupEnv(t, 2, nil)

	for i := 0; i < 4; i++ {
		_, err := backups.Run()
		assert.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)

	snapshots := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".db" {
			snapshots++
		}
	}
	assert.Equal(t, 2, snapshots)

	manifests, err := backups.List()
	assert.NoError(t, err)
	assert.Len(t, manifests, 2)
}

func TestBackupRun_UploadsSnapshotAndManifest(t *testing.T) {
	uploader := NewMockSnapshotUploader()
	backups, _ := newBackupEnv(t, 7, uploader)

	manifest, err := backups.Run()
	assert.NoError(t, err)

	keys := uploader.UploadedKeys()
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "backups/"+manifest.Snapshot)
	for _, key := range keys {
		assert.Contains(t, key, "backups/")
	}
}

// A failing upload leaves the local snapshot intact and does not fail the run.
func TestBackupRun_UploadFailureIsNotFatal(t *testing.T) {
	uploader := NewMockSnapshotUploader()
	uploader.FailAll = true
	backups, dir := newBackupEnv(t, 7, uploader)

	manifest, err := backups.Run()
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, manifest.Snapshot))
	assert.NoError(t, err)
	assert.Empty(t, uploader.UploadedKeys())
}

func TestBackupRun_RejectsNonSQLiteBackend(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)

	backups := NewBackupService(db, t.TempDir(), 7, false, nil, nil)
	_, err = backups.Run()
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
