package seed

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/tenantconfig"
	"golang.org/x/crypto/bcrypt"
)

func loadDemo(t *testing.T) Fixture {
	t.Helper()
	f, err := os.Open("testdata/demo.json")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	fx, err := Load(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return fx
}

func TestLoad_Demo(t *testing.T) {
	fx := loadDemo(t)
	if len(fx.Tenants) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(fx.Tenants))
	}
	joao := fx.Tenants[0]
	if joao.Settings == nil || joao.Settings.Timezone != "America/Sao_Paulo" {
		t.Fatalf("unexpected settings %+v", joao.Settings)
	}
	if got := joao.Services[1].Price.StringFixed(2); got != "25.00" {
		t.Fatalf("unexpected price %s", got)
	}
	owner := joao.Staff[0]
	if owner.Role != "OWNER" {
		t.Fatalf("role not normalised: %s", owner.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte("senha123")); err != nil {
		t.Fatalf("password hash does not verify: %v", err)
	}
	if joao.Staff[1].PasswordHash != "" {
		t.Fatalf("staff without password should have no hash")
	}
	if fx.Tenants[1].Settings != nil {
		t.Fatalf("second tenant is unconfigured")
	}
}

func TestLoad_RejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"bad phone":      `{"tenants":[{"id":"3f1c2b4a-8d6e-4f70-9a1b-2c3d4e5f6a7b","name":"x","subdomain":"abc","customers":[{"id":"c0ffee00-0000-4000-8000-000000000001","name":"p","phone":"12"}]}]}`,
		"bad subdomain":  `{"tenants":[{"id":"3f1c2b4a-8d6e-4f70-9a1b-2c3d4e5f6a7b","name":"x","subdomain":"A B"}]}`,
		"long service":   `{"tenants":[{"id":"3f1c2b4a-8d6e-4f70-9a1b-2c3d4e5f6a7b","name":"x","subdomain":"abc","services":[{"id":"a1b2c3d4-0001-4000-8000-000000000001","name":"s","duration":500,"price":"1"}]}]}`,
		"short password": `{"tenants":[{"id":"3f1c2b4a-8d6e-4f70-9a1b-2c3d4e5f6a7b","name":"x","subdomain":"abc","staff":[{"id":"5a5a5a5a-0000-4000-8000-000000000001","name":"s","email":"s@example.com","password":"123"}]}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(raw))
			if !errors.Is(err, booking.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := Load(strings.NewReader(`{"tenants":[],"extra":1}`)); err == nil {
		t.Fatalf("unknown fields should be rejected")
	}
}

func TestApplyMemory(t *testing.T) {
	fx := loadDemo(t)
	store := tenantconfig.NewStaticStore()
	ctx := context.Background()
	if err := fx.ApplyMemory(ctx, store); err != nil {
		t.Fatalf("apply: %v", err)
	}

	joao := fx.Tenants[0].ID
	if _, err := store.GetSettings(ctx, joao); err != nil {
		t.Fatalf("settings missing: %v", err)
	}
	if _, err := store.GetSettings(ctx, fx.Tenants[1].ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unconfigured tenant should have no settings, got %v", err)
	}
	if ok, _ := store.HasStaff(ctx, joao, "5a5a5a5a-0000-4000-8000-000000000002"); !ok {
		t.Fatalf("staff not registered")
	}
	if _, err := store.GetService(ctx, joao, "a1b2c3d4-0001-4000-8000-000000000003"); err != nil {
		t.Fatalf("service not registered: %v", err)
	}
}
