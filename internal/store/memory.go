package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/argusscan/argus/internal/scan"
)

// MemoryStore keeps scans in a map. Records are serialized on the way in
// and out so callers get the same value-isolation semantics the SQLite
// store gives them.
type MemoryStore struct {
	mu    sync.RWMutex
	scans map[string]memoryRecord
}

type memoryRecord struct {
	req scan.Request
	res []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scans: make(map[string]memoryRecord)}
}

func (s *MemoryStore) Create(ctx context.Context, req *scan.Request, res *scan.Results) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scans[req.ID]; exists {
		return fmt.Errorf("scan %s already exists", req.ID)
	}
	s.scans[req.ID] = memoryRecord{req: *req, res: blob}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*scan.Request, *scan.Results, error) {
	s.mu.RLock()
	rec, ok := s.scans[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, scan.ErrScanNotFound
	}

	req := rec.req
	var res scan.Results
	if err := json.Unmarshal(rec.res, &res); err != nil {
		return nil, nil, fmt.Errorf("unmarshal results: %w", err)
	}
	return &req, &res, nil
}

func (s *MemoryStore) Update(ctx context.Context, req *scan.Request, res *scan.Results) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[req.ID]; !ok {
		return scan.ErrScanNotFound
	}
	s.scans[req.ID] = memoryRecord{req: *req, res: blob}
	return nil
}
