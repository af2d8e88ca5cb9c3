package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/tenantbook/libs/db"
)

// ErrInFlight: another request holding the same Idempotency-Key has not
// finished yet.
var ErrInFlight = errors.New("idempotent request in flight")

// DefaultClaimLease bounds how long an unfinished claim blocks its key. A
// claim older than the lease is abandoned (crashed process, lost release)
// and the next Claim takes it over.
const DefaultClaimLease = 30 * time.Second

func leaseOrDefault(lease time.Duration) time.Duration {
	if lease <= 0 {
		return DefaultClaimLease
	}
	return lease
}

// IdempotencyRecord is the stored outcome of a keyed request.
type IdempotencyRecord struct {
	TenantID      string
	Key           string
	AppointmentID string
	StatusCode    int
	ResponseBody  []byte
}

func (r IdempotencyRecord) Finished() bool { return r.StatusCode > 0 }

// IdempotencyStore claims keys before work starts and records the response
// once it is known.
type IdempotencyStore interface {
	// Claim returns the finished record when the key was used before, or
	// claims it and returns ok=false. A claimed but unfinished key yields
	// ErrInFlight until its lease runs out.
	Claim(ctx context.Context, tenantID, key string) (rec IdempotencyRecord, ok bool, err error)
	Finish(ctx context.Context, rec IdempotencyRecord) error
	// Release drops an unfinished claim so the client can retry.
	Release(ctx context.Context, tenantID, key string) error
}

type PGIdempotencyStore struct {
	pool  *db.Pool
	lease time.Duration
}

// NewPGIdempotencyStore uses DefaultClaimLease when lease is not positive.
func NewPGIdempotencyStore(pool *db.Pool, lease time.Duration) *PGIdempotencyStore {
	return &PGIdempotencyStore{pool: pool, lease: leaseOrDefault(lease)}
}

func (s *PGIdempotencyStore) Claim(ctx context.Context, tenantID, key string) (IdempotencyRecord, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (tenant_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, idempotency_key) DO UPDATE
		SET updated_at = now()
		WHERE booking_idempotency_keys.status_code IS NULL
			AND booking_idempotency_keys.updated_at < now() - make_interval(secs => $3)
	`, tenantID, key, s.lease.Seconds())
	if err != nil {
		return IdempotencyRecord{}, false, Classify("claim idempotency key", err)
	}
	if tag.RowsAffected() == 1 {
		return IdempotencyRecord{}, false, nil
	}

	rec := IdempotencyRecord{TenantID: tenantID, Key: key}
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, ''), COALESCE(status_code, 0), COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, tenantID, key).Scan(&rec.AppointmentID, &rec.StatusCode, &rec.ResponseBody)
	if err != nil {
		return IdempotencyRecord{}, false, Classify("read idempotency key", err)
	}
	if !rec.Finished() {
		return IdempotencyRecord{}, false, ErrInFlight
	}
	return rec, true, nil
}

func (s *PGIdempotencyStore) Finish(ctx context.Context, rec IdempotencyRecord) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, rec.TenantID, rec.Key, rec.AppointmentID, rec.StatusCode, string(rec.ResponseBody))
	return Classify("finish idempotency key", err)
}

func (s *PGIdempotencyStore) Release(ctx context.Context, tenantID, key string) error {
	return Classify("release idempotency key", s.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM booking_idempotency_keys
			WHERE tenant_id = $1 AND idempotency_key = $2 AND status_code IS NULL
		`, tenantID, key)
		return err
	}))
}

type memoryClaim struct {
	rec       IdempotencyRecord
	claimedAt time.Time
}

type MemoryIdempotencyStore struct {
	mu    sync.Mutex
	recs  map[[2]string]memoryClaim
	lease time.Duration
	now   func() time.Time
}

// NewMemoryIdempotencyStore uses DefaultClaimLease when lease is not
// positive.
func NewMemoryIdempotencyStore(lease time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		recs:  map[[2]string]memoryClaim{},
		lease: leaseOrDefault(lease),
		now:   time.Now,
	}
}

func (s *MemoryIdempotencyStore) Claim(_ context.Context, tenantID, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{tenantID, key}
	now := s.now()
	c, ok := s.recs[k]
	switch {
	case ok && c.rec.Finished():
		return c.rec, true, nil
	case ok && now.Sub(c.claimedAt) < s.lease:
		return IdempotencyRecord{}, false, ErrInFlight
	}
	s.recs[k] = memoryClaim{rec: IdempotencyRecord{TenantID: tenantID, Key: key}, claimedAt: now}
	return IdempotencyRecord{}, false, nil
}

func (s *MemoryIdempotencyStore) Finish(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{rec.TenantID, rec.Key}
	s.recs[k] = memoryClaim{rec: rec, claimedAt: s.recs[k].claimedAt}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, tenantID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{tenantID, key}
	if c, ok := s.recs[k]; ok && !c.rec.Finished() {
		delete(s.recs, k)
	}
	return nil
}
