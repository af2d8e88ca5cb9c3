package tenantconfig

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

type countingSource struct {
	*StaticStore
	calls atomic.Int32
	delay time.Duration
}

func (c *countingSource) GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return c.StaticStore.GetSettings(ctx, tenantID)
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seeded(t *testing.T) *countingSource {
	t.Helper()
	static := NewStaticStore()
	s := model.DefaultSettings("t1")
	s.Timezone = "Asia/Dhaka"
	if _, err := static.UpsertSettings(context.Background(), s); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return &countingSource{StaticStore: static}
}

func TestCachedStore_HitsLocalLayer(t *testing.T) {
	src := seeded(t)
	c := NewCachedStore(src, nil, discard(), CacheConfig{TTL: time.Minute})

	for i := 0; i < 3; i++ {
		s, err := c.GetSettings(context.Background(), "t1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if s.Timezone != "Asia/Dhaka" {
			t.Fatalf("unexpected settings %+v", s)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected 1 source call, got %d", got)
	}
}

func TestCachedStore_MissingSettingsNotCached(t *testing.T) {
	src := seeded(t)
	c := NewCachedStore(src, nil, discard(), CacheConfig{})

	for i := 0; i < 2; i++ {
		if _, err := c.GetSettings(context.Background(), "nobody"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("expected every miss to reach the source, got %d calls", got)
	}
}

func TestCachedStore_ConcurrentMissesCollapse(t *testing.T) {
	src := seeded(t)
	src.delay = 20 * time.Millisecond
	c := NewCachedStore(src, nil, discard(), CacheConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetSettings(context.Background(), "t1"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected concurrent misses to share one lookup, got %d", got)
	}
}

func TestCachedStore_RedisSharedAcrossReplicas(t *testing.T) {
	src := seeded(t)
	rdb := newFakeRedis()
	first := NewCachedStore(src, rdb, discard(), CacheConfig{})
	second := NewCachedStore(src, rdb, discard(), CacheConfig{})

	if _, err := first.GetSettings(context.Background(), "t1"); err != nil {
		t.Fatalf("first: %v", err)
	}
	s, err := second.GetSettings(context.Background(), "t1")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if s.Timezone != "Asia/Dhaka" || s.BusinessHours[time.Monday].Opens != 9*60 {
		t.Fatalf("redis round trip lost fields: %+v", s)
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("second replica should read redis, got %d source calls", got)
	}
}

func TestCachedStore_UpsertInvalidates(t *testing.T) {
	src := seeded(t)
	rdb := newFakeRedis()
	c := NewCachedStore(src, rdb, discard(), CacheConfig{})
	ctx := context.Background()

	s, err := c.GetSettings(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s.SlotDuration = 15
	if _, err := c.UpsertSettings(ctx, s); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(rdb.data) != 0 {
		t.Fatalf("expected redis entry to be dropped")
	}

	got, err := c.GetSettings(ctx, "t1")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if got.SlotDuration != 15 {
		t.Fatalf("expected fresh settings, got slot %d", got.SlotDuration)
	}
}

func TestStaticStore_Directory(t *testing.T) {
	s := NewStaticStore()
	s.PutCustomer(model.Customer{ID: "c1", TenantID: "t1"})
	s.PutStaff(model.Staff{ID: "s1", TenantID: "t1", Active: true})
	s.PutStaff(model.Staff{ID: "s2", TenantID: "t1"})
	s.PutService(model.Service{ID: "svc", TenantID: "t1", Duration: 30, Active: true})
	ctx := context.Background()

	if ok, _ := s.HasCustomer(ctx, "t1", "c1"); !ok {
		t.Fatalf("expected customer in t1")
	}
	if ok, _ := s.HasCustomer(ctx, "t2", "c1"); ok {
		t.Fatalf("customer leaked across tenants")
	}
	if ok, _ := s.HasStaff(ctx, "t1", "s2"); ok {
		t.Fatalf("inactive staff should not be bookable")
	}
	if _, err := s.GetService(ctx, "t2", "svc"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("service leaked across tenants: %v", err)
	}
}
