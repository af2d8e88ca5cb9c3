package tenantconfig

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
)

func TestStaticStore_TenantScoping(t *testing.T) {
	ctx := context.Background()
	s := NewStaticStore()
	s.PutService(model.Service{ID: "svc", TenantID: "a", Duration: 30, Active: true})
	s.PutCustomer(model.Customer{ID: "cust", TenantID: "a"})
	s.PutStaff(model.Staff{ID: "st", TenantID: "a", Active: true})

	if _, err := s.GetService(ctx, "b", "svc"); !storage.IsNotFound(err) {
		t.Fatalf("service leaked across tenants: %v", err)
	}
	if ok, _ := s.HasCustomer(ctx, "b", "cust"); ok {
		t.Fatalf("customer leaked across tenants")
	}
	if ok, _ := s.HasCustomer(ctx, "", "missing"); ok {
		t.Fatalf("unknown customer reported present")
	}
	if ok, _ := s.HasStaff(ctx, "a", "st"); !ok {
		t.Fatalf("expected staff to be present")
	}

	s.PutStaff(model.Staff{ID: "st", TenantID: "a", Active: false})
	if ok, _ := s.HasStaff(ctx, "a", "st"); ok {
		t.Fatalf("inactive staff should not be bookable")
	}
}

func TestStaticStore_Settings(t *testing.T) {
	ctx := context.Background()
	s := NewStaticStore()
	if _, err := s.GetSettings(ctx, "a"); !storage.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	in := model.DefaultSettings("a")
	if _, err := s.UpsertSettings(ctx, in); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetSettings(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SlotDuration != in.SlotDuration || got.UpdatedAt.IsZero() {
		t.Fatalf("unexpected settings %+v", got)
	}
}
