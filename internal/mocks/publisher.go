package mocks

import (
	"context"
	"sync"

	"github.com/spf13/afero"
)

// MockPublisher implements task.Publisher for testing. When Fs is set, the
// content of every uploaded file is captured in Uploaded.
type MockPublisher struct {
	// UploadFn allows test cases to mock the Upload behavior
	UploadFn func(ctx context.Context, localPath, objectKey string) (string, error)

	// Bucket is returned by BucketName
	Bucket string

	// Fs is read to capture uploaded content
	Fs afero.Fs

	// Err is returned by Upload when UploadFn is nil and Err is set
	Err error

	mu sync.Mutex

	// Calls records every Upload call
	Calls []UploadCall

	// Uploaded maps object keys to uploaded content
	Uploaded map[string]string
}

// UploadCall records the arguments of one Upload call
type UploadCall struct {
	LocalPath string
	ObjectKey string
}

// Upload implements the task.Publisher interface
func (m *MockPublisher) Upload(ctx context.Context, localPath, objectKey string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, UploadCall{LocalPath: localPath, ObjectKey: objectKey})
	m.mu.Unlock()

	if m.UploadFn != nil {
		return m.UploadFn(ctx, localPath, objectKey)
	}
	if m.Err != nil {
		return "", m.Err
	}

	if m.Fs != nil {
		data, err := afero.ReadFile(m.Fs, localPath)
		if err != nil {
			return "", err
		}
		m.mu.Lock()
		if m.Uploaded == nil {
			m.Uploaded = make(map[string]string)
		}
		m.Uploaded[objectKey] = string(data)
		m.mu.Unlock()
	}

	return objectKey, nil
}

// BucketName implements the task.Publisher interface
func (m *MockPublisher) BucketName() string {
	if m.Bucket == "" {
		return "test-bucket"
	}
	return m.Bucket
}

// UploadCalls returns a copy of the recorded calls
func (m *MockPublisher) UploadCalls() []UploadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UploadCall(nil), m.Calls...)
}

// Content returns the captured content for key
func (m *MockPublisher) Content(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Uploaded[key]
	return c, ok
}
