package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryIdempotencyStore_ClaimFinishReplay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Minute)

	if _, done, err := s.Claim(ctx, "t1", "k1"); err != nil || done {
		t.Fatalf("first claim: done=%v err=%v", done, err)
	}
	if _, _, err := s.Claim(ctx, "t1", "k1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if _, done, err := s.Claim(ctx, "t2", "k1"); err != nil || done {
		t.Fatalf("keys are tenant scoped: done=%v err=%v", done, err)
	}

	if err := s.Finish(ctx, IdempotencyRecord{TenantID: "t1", Key: "k1", StatusCode: 201, ResponseBody: []byte(`{}`)}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	rec, done, err := s.Claim(ctx, "t1", "k1")
	if err != nil || !done || rec.StatusCode != 201 {
		t.Fatalf("expected replay, got %+v done=%v err=%v", rec, done, err)
	}
	if err := s.Release(ctx, "t1", "k1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, done, _ := s.Claim(ctx, "t1", "k1"); !done {
		t.Fatalf("release must not drop a finished record")
	}
}

func TestMemoryIdempotencyStore_ReleaseFreesKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Minute)

	_, _, _ = s.Claim(ctx, "t1", "k1")
	if err := s.Release(ctx, "t1", "k1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, done, err := s.Claim(ctx, "t1", "k1"); err != nil || done {
		t.Fatalf("released key should be claimable, done=%v err=%v", done, err)
	}
}

// A claim nobody finishes or releases (crashed process) expires after the
// lease and the next request takes the key over.
func TestMemoryIdempotencyStore_AbandonedClaimExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(30 * time.Second)
	s.now = func() time.Time { return now }

	if _, _, err := s.Claim(ctx, "t1", "k1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	now = now.Add(29 * time.Second)
	if _, _, err := s.Claim(ctx, "t1", "k1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("claim inside the lease should be in flight, got %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, done, err := s.Claim(ctx, "t1", "k1"); err != nil || done {
		t.Fatalf("stale claim should be taken over, done=%v err=%v", done, err)
	}
	if _, _, err := s.Claim(ctx, "t1", "k1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("the takeover starts a fresh lease, got %v", err)
	}
}

func TestLeaseOrDefault(t *testing.T) {
	if leaseOrDefault(0) != DefaultClaimLease || leaseOrDefault(-time.Second) != DefaultClaimLease {
		t.Fatalf("non-positive lease should fall back to the default")
	}
	if leaseOrDefault(time.Minute) != time.Minute {
		t.Fatalf("explicit lease should be kept")
	}
}
