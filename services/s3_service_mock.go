package services

import "sync"

// MockSnapshotUploader records uploads in memory for testing.
type MockSnapshotUploader struct {
	mu      sync.Mutex
	uploads map[string]string // key -> local path
	FailAll bool
}

// NewMockSnapshotUploader creates an empty mock uploader.
func NewMockSnapshotUploader() *MockSnapshotUploader {
	return &MockSnapshotUploader{uploads: make(map[string]string)}
}

// Upload records the key unless FailAll is set.
func (m *MockSnapshotUploader) Upload(localPath, key string) error {
	if m.FailAll {
		return errMockUploadFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[key] = localPath
	return nil
}

// Delete removes a recorded key.
func (m *MockSnapshotUploader) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, key)
	return nil
}

// UploadedKeys returns every recorded key.
func (m *MockSnapshotUploader) UploadedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.uploads))
	for k := range m.uploads {
		keys = append(keys, k)
	}
	return keys
}

var errMockUploadFailed = &ValidationError{Message: "mock upload failed"}
