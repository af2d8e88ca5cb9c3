package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// Header keys shared by every producer and consumer.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderTenantID  = "tenant_id"
)

// EventMeta is the metadata carried on every message.
type EventMeta struct {
	EventID   string
	EventType string
	TenantID  string
}

// Headers renders meta as Kafka headers.
func (m EventMeta) Headers() []kafka.Header {
	h := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(m.EventID)},
		{Key: HeaderEventType, Value: []byte(m.EventType)},
	}
	if m.TenantID != "" {
		h = append(h, kafka.Header{Key: HeaderTenantID, Value: []byte(m.TenantID)})
	}
	return h
}

// ExtractEventMeta falls back to the message key and topic when headers are
// missing.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
		TenantID:  HeaderValue(msg.Headers, HeaderTenantID),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
