package testsupport

import (
	"context"
	"sync"
)

// AssetStore is an in-memory assets.Store that records every call.
type AssetStore struct {
	mu        sync.Mutex
	BaseURL   string
	Blobs     map[string][]byte
	Uploads   []string
	Deletes   []string
	UploadErr error
	DeleteErr error
}

// NewAssetStore returns an empty store serving URLs under http://assets.test.
func NewAssetStore() *AssetStore {
	return &AssetStore{BaseURL: "http://assets.test", Blobs: make(map[string][]byte)}
}

// Upload implements assets.Store.
func (s *AssetStore) Upload(_ context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Uploads = append(s.Uploads, key)
	if s.UploadErr != nil {
		return "", s.UploadErr
	}
	s.Blobs[key] = append([]byte(nil), data...)
	return s.BaseURL + "/" + key, nil
}

// Delete implements assets.Store.
func (s *AssetStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes = append(s.Deletes, key)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.Blobs, key)
	return nil
}

// Has reports whether a blob is stored under key.
func (s *AssetStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Blobs[key]
	return ok
}

// Calls returns copies of the upload and delete logs.
func (s *AssetStore) Calls() (uploads, deletes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Uploads...), append([]string(nil), s.Deletes...)
}
