package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tenantbook/libs/auth"
	"github.com/md-rashed-zaman/tenantbook/libs/httpx"
)

type tenantHandlerFunc func(w http.ResponseWriter, r *http.Request, p auth.Principal, tenantID string)

// tenantScoped resolves {tenant_id} from the path and refuses callers
// authenticated for a different tenant. Nothing reaches the engine without
// passing this check.
func tenantScoped(fn tenantHandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		id, err := uuid.Parse(r.PathValue("tenant_id"))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid tenant id")
			return
		}
		tenantID := id.String()
		if !strings.EqualFold(p.TenantID, tenantID) {
			httpx.WriteError(w, http.StatusForbidden, "tenant mismatch")
			return
		}
		if len(roles) > 0 && !p.HasRole(roles...) {
			httpx.WriteError(w, http.StatusForbidden, "insufficient role")
			return
		}
		httpx.Annotate(r.Context(), "tenant_id", tenantID)
		fn(w, r, p, tenantID)
	}
}
