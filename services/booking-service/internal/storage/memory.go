package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
)

// MemoryRepository is an in-process appointment store with the same
// locking contract as BookingRepository. It backs STORAGE=memory and
// tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	appts map[string]model.Appointment
	locks keyLocks
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appts: map[string]model.Appointment{},
		now:   time.Now,
	}
}

func (r *MemoryRepository) InsertIfNoConflict(ctx context.Context, appt model.Appointment, g Guard) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, Classify("insert appointment", err)
	}
	release := r.locks.acquireAll(g.lockKeys())
	defer release()

	existing := r.list(g.Key.TenantID, g.From, g.To, g.Key.StaffID, true)
	if g.Conflict != nil && g.Conflict(existing) {
		return model.Appointment{}, ErrConflict
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if _, dup := r.appts[appt.ID]; dup {
		return model.Appointment{}, ErrDuplicate
	}
	now := r.now().UTC()
	appt.CreatedAt, appt.UpdatedAt = now, now
	r.appts[appt.ID] = appt
	return appt, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, tenantID, id string, mutate func(*model.Appointment) error) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, Classify("update appointment", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok || appt.TenantID != tenantID {
		return model.Appointment{}, ErrNotFound
	}
	before := appt.Status
	if err := mutate(&appt); err != nil {
		return model.Appointment{}, err
	}
	if appt.Status != before {
		appt.UpdatedAt = r.now().UTC()
	}
	r.appts[id] = appt
	return appt, nil
}

func (r *MemoryRepository) Get(_ context.Context, tenantID, id string) (model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.appts[id]
	if !ok || appt.TenantID != tenantID {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (r *MemoryRepository) ListByTenantAndDay(_ context.Context, tenantID string, from, to time.Time, staffID string) ([]model.Appointment, error) {
	return r.list(tenantID, from, to, staffID, false), nil
}

func (r *MemoryRepository) list(tenantID string, from, to time.Time, staffID string, activeOnly bool) []model.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Appointment
	for _, a := range r.appts {
		if a.TenantID != tenantID || !a.StartTime.Before(to) || !a.EndTime.After(from) {
			continue
		}
		if staffID != "" && a.StaffID != "" && a.StaffID != staffID {
			continue
		}
		if activeOnly && !a.Status.Occupies() {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// keyLocks mirrors the advisory lock scheme of BookingRepository: a
// tenant-day RWMutex (shared for staffed bookings, exclusive for unstaffed)
// plus a mutex per staff member and day.
type keyLocks struct {
	mu    sync.Mutex
	days  map[string]*sync.RWMutex
	staff map[string]*sync.Mutex
}

func (l *keyLocks) acquire(k LockKey) func() {
	l.mu.Lock()
	if l.days == nil {
		l.days = map[string]*sync.RWMutex{}
		l.staff = map[string]*sync.Mutex{}
	}
	day := l.days[k.dayKey()]
	if day == nil {
		day = &sync.RWMutex{}
		l.days[k.dayKey()] = day
	}
	var staff *sync.Mutex
	if k.StaffID != "" {
		staff = l.staff[k.String()]
		if staff == nil {
			staff = &sync.Mutex{}
			l.staff[k.String()] = staff
		}
	}
	l.mu.Unlock()

	if staff == nil {
		day.Lock()
		return day.Unlock
	}
	day.RLock()
	staff.Lock()
	return func() {
		staff.Unlock()
		day.RUnlock()
	}
}

func (l *keyLocks) acquireAll(keys []LockKey) func() {
	releases := make([]func(), 0, len(keys))
	for _, k := range keys {
		releases = append(releases, l.acquire(k))
	}
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
