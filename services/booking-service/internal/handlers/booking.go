package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/service"
)

const dateLayout = "2006-01-02"

type BookingHandler struct {
	svc      *service.BookingService
	logger   *slog.Logger
	validate *validator.Validate
}

func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BookingHandler{svc: svc, logger: logger, validate: v}
}

func (h *BookingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/bookings", h.Create)
	r.Get("/bookings/{bookingID}", h.Get)
	r.Patch("/bookings/{bookingID}/status", h.UpdateStatus)
	r.Get("/walkers/{walkerID}/bookings", h.ListByWalker)
	r.Get("/walkers/{walkerID}/availability", h.CanBook)
	r.Get("/walkers/{walkerID}/slots", h.Slots)
	r.Get("/walkers/{walkerID}/free-windows", h.FreeWindows)
	r.Get("/clients/{clientID}/bookings", h.ListByClient)
	return r
}

type createBookingRequest struct {
	WalkerID   string    `json:"walker_id" validate:"required"`
	ClientID   string    `json:"client_id" validate:"required"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required"`
	PriceCents int64     `json:"price_cents" validate:"required"`
	Notes      string    `json:"notes" validate:"max=2000"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=2000"`
}

type bookingResponse struct {
	ID         string `json:"id"`
	WalkerID   string `json:"walker_id"`
	ClientID   string `json:"client_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	PriceCents int64  `json:"price_cents"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type errorBody struct {
	Error errorInfo `json:"error"`
}

type errorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Rule    string            `json:"rule,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.svc.CreateBooking(r.Context(), service.CreateBookingRequest{
		WalkerID:   strings.TrimSpace(req.WalkerID),
		ClientID:   strings.TrimSpace(req.ClientID),
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		PriceCents: req.PriceCents,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(b))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBooking(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(b))
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, ok := booking.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		h.writeError(w, r, apperr.InvalidInput("status", "unknown status %q", req.Status))
		return
	}
	b, err := h.svc.UpdateBookingStatus(r.Context(), chi.URLParam(r, "bookingID"), status, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(b))
}

func (h *BookingHandler) ListByWalker(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.timeRange(w, r, "from", "to")
	if !ok {
		return
	}
	list, err := h.svc.GetWalkerBookings(r.Context(), chi.URLParam(r, "walkerID"), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(list))
}

func (h *BookingHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.timeRange(w, r, "from", "to")
	if !ok {
		return
	}
	list, err := h.svc.GetClientBookings(r.Context(), chi.URLParam(r, "clientID"), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(list))
}

func (h *BookingHandler) CanBook(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.timeRange(w, r, "start_time", "end_time")
	if !ok {
		return
	}
	available, err := h.svc.CanBookTimeSlot(r.Context(), chi.URLParam(r, "walkerID"), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Available: available})
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}
	slots, err := h.svc.GetAvailableTimeSlots(r.Context(), chi.URLParam(r, "walkerID"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotItems(slots))
}

func (h *BookingHandler) FreeWindows(w http.ResponseWriter, r *http.Request) {
	date, ok := h.date(w, r)
	if !ok {
		return
	}
	windows, err := h.svc.GetFreeWindows(r.Context(), chi.URLParam(r, "walkerID"), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotItems(windows))
}

func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorInfo{Code: "invalid_json", Message: "invalid json body"}})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		details := map[string]string{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorInfo{
			Code:    apperr.KindInvalidInput.String(),
			Message: "request validation failed",
			Details: details,
		}})
		return false
	}
	return true
}

// timeRange reads two RFC 3339 query parameters.
func (h *BookingHandler) timeRange(w http.ResponseWriter, r *http.Request, fromKey, toKey string) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get(fromKey)))
	if err != nil {
		h.writeError(w, r, apperr.InvalidInput(fromKey, "%s must be an RFC 3339 timestamp", fromKey))
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get(toKey)))
	if err != nil {
		h.writeError(w, r, apperr.InvalidInput(toKey, "%s must be an RFC 3339 timestamp", toKey))
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// date reads ?date=YYYY-MM-DD and an optional IANA ?tz= (UTC by default).
func (h *BookingHandler) date(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	q := r.URL.Query()
	loc := time.UTC
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			h.writeError(w, r, apperr.InvalidInput("tz", "unknown time zone %q", tz))
			return time.Time{}, false
		}
		loc = l
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(q.Get("date")), loc)
	if err != nil {
		h.writeError(w, r, apperr.InvalidInput("date", "date must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return d, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	kind := apperr.KindOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, status, errorBody{Error: errorInfo{Code: kind.String(), Message: "internal error"}})
		return
	}
	var msg string
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Msg
	} else {
		msg = err.Error()
	}
	writeJSON(w, status, errorBody{Error: errorInfo{Code: kind.String(), Message: msg, Rule: apperr.RuleOf(err)}})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidOperation, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func toResponse(b *booking.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		WalkerID:   b.WalkerID,
		ClientID:   b.ClientID,
		StartTime:  b.StartTime.UTC().Format(time.RFC3339),
		EndTime:    b.EndTime.UTC().Format(time.RFC3339),
		Status:     string(b.Status()),
		PriceCents: b.PriceCents,
		Notes:      b.Notes,
		CreatedAt:  b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toResponses(list []*booking.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toResponse(b))
	}
	return out
}

func toSlotItems(slots []availability.Slot) []slotItem {
	out := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotItem{
			StartTime: s.Start.Format(time.RFC3339),
			EndTime:   s.End.Format(time.RFC3339),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
