package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestEventMeta_HeadersRoundTrip(t *testing.T) {
	meta := EventMeta{EventID: "e1", EventType: "booking.appointment.booked.v1", TenantID: "t1"}
	got := ExtractEventMeta(kafka.Message{Topic: "x", Headers: meta.Headers()})
	if got != meta {
		t.Fatalf("got %+v want %+v", got, meta)
	}
}

func TestExtractEventMeta_Fallbacks(t *testing.T) {
	got := ExtractEventMeta(kafka.Message{Topic: "tenant.settings.updated.v1", Key: []byte("k1")})
	if got.EventID != "k1" || got.EventType != "tenant.settings.updated.v1" || got.TenantID != "" {
		t.Fatalf("unexpected meta %+v", got)
	}
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	c := &headerCarrier{}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	if len(c.headers) != 1 || c.Get("traceparent") != "b" {
		t.Fatalf("unexpected headers %#v", c.headers)
	}
}
