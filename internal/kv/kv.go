// Package kv is DropIt's durable local storage: a small key/value space holding
// the session token, the cached profile, bookmarks and the saved store state.
//
// Values are JSON documents. Every key is optional: readers treat a missing key
// as "nothing saved" and a corrupt value as a soft failure.
package kv

import (
	"encoding/json"
	"sync"

	apperr "github.com/dropit-app/dropit/internal/errors"
)

// Well-known keys.
const (
	KeyAuthToken       = "authToken"
	KeyUser            = "user"
	KeyBookmarks       = "bookmarkedCollections"
	KeyCollectionState = "collectionStoreState"
	KeyMapState        = "mapState"
	KeyUIState         = "uiState"
)

// Storage is a durable key/value store.
type Storage interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// GetJSON decodes the value stored under key into dest.
func GetJSON(s Storage, key string, dest any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil {
		return false, apperr.Storage("read "+key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, apperr.Storage("decode "+key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(s Storage, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperr.Storage("encode "+key, err)
	}
	if err := s.Set(key, raw); err != nil {
		return apperr.Storage("write "+key, err)
	}
	return nil
}

// Memory is an in-process Storage. The zero value is ready to use.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Get implements Storage.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	dup := make([]byte, len(v))
	copy(dup, v)
	return dup, true, nil
}

// Set implements Storage.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	dup := make([]byte, len(value))
	copy(dup, value)
	m.values[key] = dup
	return nil
}

// Delete implements Storage.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
