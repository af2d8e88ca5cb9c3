package tenantconfig

import (
	"context"
	"sync"
	"time"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
)

// StaticStore keeps tenant configuration in memory. It backs STORAGE=memory
// and tests.
type StaticStore struct {
	mu        sync.RWMutex
	settings  map[string]model.TenantSettings
	services  map[string]model.Service
	customers map[string]string
	staff     map[string]string
}

func NewStaticStore() *StaticStore {
	return &StaticStore{
		settings:  map[string]model.TenantSettings{},
		services:  map[string]model.Service{},
		customers: map[string]string{},
		staff:     map[string]string{},
	}
}

func (s *StaticStore) GetSettings(_ context.Context, tenantID string) (model.TenantSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.settings[tenantID]
	if !ok {
		return model.TenantSettings{}, storage.ErrNotFound
	}
	return out, nil
}

func (s *StaticStore) UpsertSettings(_ context.Context, in model.TenantSettings) (model.TenantSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in.UpdatedAt = time.Now().UTC()
	s.settings[in.TenantID] = in
	return in, nil
}

func (s *StaticStore) GetService(_ context.Context, tenantID, serviceID string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.TenantID != tenantID {
		return model.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func (s *StaticStore) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *StaticStore) PutCustomer(c model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c.TenantID
}

func (s *StaticStore) PutStaff(st model.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Active {
		s.staff[st.ID] = st.TenantID
	} else {
		delete(s.staff, st.ID)
	}
}

func (s *StaticStore) HasCustomer(_ context.Context, tenantID, customerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.customers[customerID]
	return ok && owner == tenantID, nil
}

func (s *StaticStore) HasStaff(_ context.Context, tenantID, staffID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.staff[staffID]
	return ok && owner == tenantID, nil
}
