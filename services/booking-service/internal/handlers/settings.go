package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/tenantbook/libs/auth"
	"github.com/md-rashed-zaman/tenantbook/libs/httpx"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/validate"
)

type SettingsStore interface {
	GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
	UpsertSettings(ctx context.Context, in model.TenantSettings) (model.TenantSettings, error)
}

type SettingsHandler struct {
	store  SettingsStore
	logger *slog.Logger
}

func NewSettingsHandler(store SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request, _ auth.Principal, tenantID string) {
	s, err := h.store.GetSettings(r.Context(), tenantID)
	if err != nil {
		writeEngineError(w, r, h.logger, storeError(tenantID, err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

// Put replaces the tenant's booking settings. Existing appointments are
// left untouched even if they no longer fit the new hours.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request, p auth.Principal, tenantID string) {
	var in validate.SettingsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	s, err := validate.Settings(tenantID, in)
	if err != nil {
		writeInputError(w, err)
		return
	}
	out, err := h.store.UpsertSettings(r.Context(), s)
	if err != nil {
		writeEngineError(w, r, h.logger, storeError(tenantID, err))
		return
	}
	h.logger.InfoContext(r.Context(), "tenant settings updated", "tenant_id", tenantID, "user_id", p.UserID)
	httpx.WriteJSON(w, http.StatusOK, out)
}

func storeError(tenantID string, err error) error {
	switch {
	case storage.IsNotFound(err):
		return &booking.NotFoundError{Entity: "settings", ID: tenantID}
	case storage.IsTransient(err):
		return &booking.TransientError{Op: "tenant settings", Err: err}
	}
	return err
}
