package profiles

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

type memorySettings struct {
	mu        sync.Mutex
	ref       uuid.NullUUID
	failWrite error
}

func (s *memorySettings) DefaultProfileID() uuid.NullUUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

func (s *memorySettings) UpdateDefaultProfile(_ context.Context, id uuid.NullUUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.ref = id
	return nil
}

type memoryStore struct {
	mu        sync.Mutex
	docs      map[string][]byte
	writes    int
	failRead  error
	failWrite error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead != nil {
		return nil, false, s.failRead
	}
	v, ok := s.docs[key]
	return v, ok, nil
}

func (s *memoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.docs[key] = value
	s.writes++
	return nil
}

var errDiskFull = errors.New("disk full")
