package storage

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process BlobStore for local development and tests.
type Memory struct {
	BaseURL string
	Bucket  string

	// PutErr / RemoveErr, when set, are returned by the matching call.
	PutErr    func(path string) error
	RemoveErr error

	mu      sync.Mutex
	objects map[string][]byte
	removed [][]string
}

func NewMemory(baseURL, bucket string) *Memory {
	return &Memory{BaseURL: baseURL, Bucket: bucket, objects: map[string][]byte{}}
}

func (m *Memory) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	if m.PutErr != nil {
		if err := m.PutErr(path); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[path] = append([]byte(nil), data...)
	return publicURL(m.BaseURL, m.Bucket, path), nil
}

func (m *Memory) Remove(_ context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, append([]string(nil), paths...))
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for _, p := range paths {
		delete(m.objects, p)
	}
	return nil
}

// Paths lists stored object paths in sorted order.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RemoveCalls returns the argument list of every Remove call.
func (m *Memory) RemoveCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.removed...)
}
