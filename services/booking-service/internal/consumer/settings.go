package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/md-rashed-zaman/tenantbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Invalidator drops cached tenant settings.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

// SettingsInvalidation handles tenant.settings.updated events. The tenant
// is taken from the event header, falling back to the payload.
func SettingsInvalidation(cache Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		tenantID := kafkax.ExtractEventMeta(msg).TenantID
		if tenantID == "" {
			var payload struct {
				TenantID string `json:"tenant_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid settings event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			tenantID = payload.TenantID
		}
		if tenantID == "" {
			logger.Error("settings event without tenant", "topic", msg.Topic)
			return nil
		}
		cache.Invalidate(ctx, tenantID)
		logger.Debug("tenant settings invalidated", "tenant_id", tenantID)
		return nil
	}
}
