package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/argusscan/argus/internal/scan"
	"github.com/argusscan/argus/internal/store"
	"github.com/argusscan/argus/internal/testutil"
)

func sampleScan() (*scan.Request, *scan.Results) {
	req := &scan.Request{
		ID:        "scan-1",
		TargetURL: "https://example.com/",
		Mode:      scan.ModeDeep,
		AuthToken: "user-token",
		Status:    scan.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	res := &scan.Results{Metadata: scan.Metadata{Status: scan.StatusPending}}
	return req, res
}

// storeUnderTest runs the same contract checks against any scan.Store.
func storeUnderTest(t *testing.T, s scan.Store) {
	ctx := context.Background()
	req, res := sampleScan()

	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, scan.ErrScanNotFound) {
		t.Errorf("Get on empty store: expected ErrScanNotFound, got %v", err)
	}

	if err := s.Create(ctx, req, res); err != nil {
		t.Fatalf("Create: %v", err)
	}

	gotReq, gotRes, err := s.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotReq.TargetURL != req.TargetURL || gotReq.Mode != req.Mode || gotReq.Status != req.Status {
		t.Errorf("loaded request differs: %+v", gotReq)
	}
	if gotReq.AuthToken != req.AuthToken {
		t.Errorf("auth token not round-tripped")
	}
	if !gotReq.CreatedAt.Equal(req.CreatedAt) {
		t.Errorf("created_at differs: %v vs %v", gotReq.CreatedAt, req.CreatedAt)
	}

	// Build up results across an update, as the pipeline does.
	score := 85
	now := time.Now().UTC().Truncate(time.Second)
	gotReq.Status = scan.StatusCompleted
	gotReq.CompletedAt = &now
	gotReq.DurationMS = 1234
	gotRes.SecurityHeaders = &scan.HeaderSection{}
	gotRes.SecurityHeaders.Audit.Missing = []string{"content-security-policy"}
	gotRes.OverallScore = &score
	gotRes.Metadata.Status = scan.StatusCompleted

	if err := s.Update(ctx, gotReq, gotRes); err != nil {
		t.Fatalf("Update: %v", err)
	}

	finalReq, finalRes, err := s.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if finalReq.Status != scan.StatusCompleted || finalReq.DurationMS != 1234 {
		t.Errorf("update not persisted: %+v", finalReq)
	}
	if finalReq.CompletedAt == nil || !finalReq.CompletedAt.Equal(now) {
		t.Errorf("completed_at not persisted: %v", finalReq.CompletedAt)
	}
	if finalRes.OverallScore == nil || *finalRes.OverallScore != 85 {
		t.Errorf("score not persisted: %v", finalRes.OverallScore)
	}
	if finalRes.SecurityHeaders == nil || len(finalRes.SecurityHeaders.Audit.Missing) != 1 {
		t.Errorf("sections not persisted: %+v", finalRes.SecurityHeaders)
	}

	// Updating a missing id fails cleanly.
	ghost, ghostRes := sampleScan()
	ghost.ID = "ghost"
	if err := s.Update(ctx, ghost, ghostRes); !errors.Is(err, scan.ErrScanNotFound) {
		t.Errorf("Update on missing scan: expected ErrScanNotFound, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	storeUnderTest(t, store.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	db, err := store.Open(filepath.Join(t.TempDir(), "argus.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	s, err := store.NewSQLiteStore(db, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	storeUnderTest(t, s)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	req, res := sampleScan()
	if err := s.Create(context.Background(), req, res); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(context.Background(), req, res); err == nil {
		t.Error("expected error creating duplicate scan id")
	}
}

func TestMemoryStore_GetReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	req, res := sampleScan()
	if err := s.Create(context.Background(), req, res); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, firstRes, err := s.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.Status = scan.StatusFailed
	firstRes.Metadata.Status = scan.StatusFailed

	second, secondRes, err := s.Get(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Status != scan.StatusPending || secondRes.Metadata.Status != scan.StatusPending {
		t.Error("mutating a loaded record should not affect the stored one")
	}
}
