package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/tenantbook/libs/auth"
	"github.com/md-rashed-zaman/tenantbook/libs/httpx"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/validate"
)

// Engine is the booking surface the HTTP adapter drives.
type Engine interface {
	Book(ctx context.Context, req booking.BookRequest) (model.Appointment, error)
	Apply(ctx context.Context, tenantID, id string, action booking.Action, reason string) (model.Appointment, error)
	Get(ctx context.Context, tenantID, id string) (model.Appointment, error)
	ListDay(ctx context.Context, tenantID string, date model.Date, staffID string) ([]model.Appointment, error)
	Slots(ctx context.Context, q booking.SlotQuery) ([]availability.Slot, error)
}

type BookingHandler struct {
	engine Engine
	idem   storage.IdempotencyStore
	logger *slog.Logger
}

func NewBookingHandler(engine Engine, idem storage.IdempotencyStore, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, idem: idem, logger: logger}
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

type slotsResponse struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

type listResponse struct {
	Date         string              `json:"date"`
	Appointments []model.Appointment `json:"appointments"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request, _ auth.Principal, tenantID string) {
	q, err := validate.SlotQuery(tenantID, r.URL.Query())
	if err != nil {
		writeInputError(w, err)
		return
	}
	slots, err := h.engine.Slots(r.Context(), q)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	resp := slotsResponse{Date: q.Date.String(), Slots: make([]slotItem, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			Available: s.Available,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Create books an appointment. With an Idempotency-Key header the first
// final outcome is stored and replayed for retries of the same key. A claim
// that does not end in a stored outcome (server errors, panics, a failed
// Finish) is released so the client can retry.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ auth.Principal, tenantID string) {
	var in validate.BookInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req, err := validate.Book(tenantID, in)
	if err != nil {
		writeInputError(w, err)
		return
	}

	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	claimed := false
	defer func() {
		if claimed {
			h.releaseKey(ctx, tenantID, key)
		}
	}()
	if key != "" && h.idem != nil {
		rec, done, err := h.idem.Claim(ctx, tenantID, key)
		switch {
		case errors.Is(err, storage.ErrInFlight):
			httpx.WriteError(w, http.StatusConflict, "a request with this Idempotency-Key is in progress")
			return
		case err != nil:
			h.logger.ErrorContext(ctx, "idempotency claim failed", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry later")
			return
		case done:
			w.Header().Set("Idempotent-Replayed", "true")
			writeRaw(w, rec.StatusCode, rec.ResponseBody)
			return
		}
		claimed = true
	}

	appt, err := h.engine.Book(ctx, req)
	status, body := http.StatusCreated, any(appt)
	if err != nil {
		status = statusFor(err)
		body = payloadFor(err, status)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "booking failed", "status", status, "err", err)
		}
	}
	raw, mErr := json.Marshal(body)
	if mErr != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to build response")
		return
	}

	if claimed && status < http.StatusInternalServerError && h.finishKey(ctx, tenantID, key, status, appt.ID, raw) {
		claimed = false
	}
	writeRaw(w, status, raw)
}

// finishKey stores a final outcome and reports whether it was saved.
func (h *BookingHandler) finishKey(ctx context.Context, tenantID, key string, status int, appointmentID string, raw []byte) bool {
	ctx = context.WithoutCancel(ctx)
	err := h.idem.Finish(ctx, storage.IdempotencyRecord{
		TenantID:      tenantID,
		Key:           key,
		AppointmentID: appointmentID,
		StatusCode:    status,
		ResponseBody:  raw,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "idempotency finish failed", "err", err)
		return false
	}
	return true
}

// releaseKey drops an unfinished claim for outcomes a retry could change.
func (h *BookingHandler) releaseKey(ctx context.Context, tenantID, key string) {
	ctx = context.WithoutCancel(ctx)
	if err := h.idem.Release(ctx, tenantID, key); err != nil {
		h.logger.WarnContext(ctx, "idempotency release failed", "tenant_id", tenantID, "err", err)
	}
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request, _ auth.Principal, tenantID string) {
	id, err := validate.AppointmentID(r.PathValue("id"))
	if err != nil {
		writeInputError(w, err)
		return
	}
	appt, err := h.engine.Get(r.Context(), tenantID, id)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ auth.Principal, tenantID string) {
	q, err := validate.Day(r.URL.Query())
	if err != nil {
		writeInputError(w, err)
		return
	}
	appts, err := h.engine.ListDay(r.Context(), tenantID, q.Date, q.StaffID)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Date: q.Date.String(), Appointments: appts})
}

// Transition handles POST .../appointments/{id}/{action}. The body is
// optional and only read for a cancellation reason.
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request, _ auth.Principal, tenantID string) {
	id, err := validate.AppointmentID(r.PathValue("id"))
	if err != nil {
		writeInputError(w, err)
		return
	}
	var in validate.TransitionInput
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	action, reason, err := validate.Transition(r.PathValue("action"), in)
	if err != nil {
		writeInputError(w, err)
		return
	}

	appt, err := h.engine.Apply(r.Context(), tenantID, id, action, reason)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func writeRaw(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if !bytes.HasSuffix(raw, []byte("\n")) {
		raw = append(raw, '\n')
	}
	_, _ = w.Write(raw)
}
