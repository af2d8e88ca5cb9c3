package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/tenantbook/libs/auth"
)

const tenantPrefix = "/api/v1/tenants/{tenant_id}"

// Register mounts the tenant API on mux. Every route expects a principal in
// the request context (see auth.RequireBearer).
func Register(mux *http.ServeMux, b *BookingHandler, s *SettingsHandler) {
	mux.HandleFunc("GET "+tenantPrefix+"/slots", tenantScoped(b.Slots))
	mux.HandleFunc("POST "+tenantPrefix+"/appointments", tenantScoped(b.Create))
	mux.HandleFunc("GET "+tenantPrefix+"/appointments", tenantScoped(b.List))
	mux.HandleFunc("GET "+tenantPrefix+"/appointments/{id}", tenantScoped(b.Get))
	mux.HandleFunc("POST "+tenantPrefix+"/appointments/{id}/{action}", tenantScoped(b.Transition))

	mux.HandleFunc("GET "+tenantPrefix+"/settings", tenantScoped(s.Get))
	mux.HandleFunc("PUT "+tenantPrefix+"/settings", tenantScoped(s.Put, auth.RoleOwner, auth.RoleAdmin))
}
