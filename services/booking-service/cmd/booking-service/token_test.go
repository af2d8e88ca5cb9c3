package main

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/tenantbook/libs/auth"
)

func TestMintToken_VerifiesWithSameSecret(t *testing.T) {
	const tenant = "6f1c1f7e-8d0b-4b1e-9a55-3c2f4f0e9a10"
	tok, err := mintToken("dev-secret", tenant, "", "admin", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	p, err := auth.NewHS256Verifier("dev-secret").Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.TenantID != tenant || p.Role != auth.RoleAdmin || p.UserID == "" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestMintToken_RejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		secret, tenant, role string
	}{
		"no secret":  {"", "6f1c1f7e-8d0b-4b1e-9a55-3c2f4f0e9a10", "OWNER"},
		"bad tenant": {"s", "acme", "OWNER"},
		"bad role":   {"s", "6f1c1f7e-8d0b-4b1e-9a55-3c2f4f0e9a10", "ROOT"},
	}
	for name, tc := range cases {
		if _, err := mintToken(tc.secret, tc.tenant, "", tc.role, time.Hour, time.Now()); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
