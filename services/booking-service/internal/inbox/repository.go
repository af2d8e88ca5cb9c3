package inbox

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/tenantbook/libs/db"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
)

// Repository remembers which events a named consumer has already handled.
// Each replica subscribes under its own consumer name, so the same event
// is processed once per replica.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record returns false when the event was seen before by consumer.
func (r *Repository) Record(ctx context.Context, consumer, eventID, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (consumer, event_id, event_type)
		VALUES ($1, $2, $3)
	`, consumer, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if storage.IsUniqueViolation(err) {
		return false, nil
	}
	return false, storage.Classify("record inbox event", err)
}

type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]struct{}{}}
}

func (m *Memory) Record(_ context.Context, consumer, eventID, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := consumer + "|" + eventID
	if _, ok := m.seen[k]; ok {
		return false, nil
	}
	m.seen[k] = struct{}{}
	return true, nil
}
