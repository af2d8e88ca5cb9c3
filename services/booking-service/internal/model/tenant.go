package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

type Tenant struct {
	ID              string
	Name            string
	Subdomain       string
	Plan            Plan
	Active          bool
	MaxUsers        int
	MaxAppointments int
	CreatedAt       time.Time
}

type Service struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Duration    int             `json:"duration"` // minutes
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
}

func (s Service) Length() time.Duration {
	return time.Duration(s.Duration) * time.Minute
}

type Customer struct {
	ID       string
	TenantID string
	Name     string
	Email    string
	Phone    string
}

type Staff struct {
	ID       string
	TenantID string
	Name     string
	Email    string
	Role     string
	Active   bool
}
