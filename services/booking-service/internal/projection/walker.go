// Package projection keeps the local walker table in step with the walker
// profile feed.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/schedule"
)

const TopicWalkerProfileUpdated = "walker.profile.updated.v1"

type WalkerWriter interface {
	UpsertWalker(ctx context.Context, w schedule.Walker) error
}

type walkerProfile struct {
	WalkerID          string            `json:"walker_id"`
	DailyBookingLimit *int              `json:"daily_booking_limit"`
	Schedules         []scheduleMessage `json:"schedules"`
}

type scheduleMessage struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DecodeWalkerProfile parses a walker.profile.updated.v1 payload. Any malformed
// window rejects the whole message so a partial schedule is never stored.
func DecodeWalkerProfile(data []byte) (schedule.Walker, error) {
	var p walkerProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return schedule.Walker{}, apperr.InvalidInput("payload", "invalid walker profile json: %v", err)
	}
	p.WalkerID = strings.TrimSpace(p.WalkerID)
	if p.WalkerID == "" {
		return schedule.Walker{}, apperr.InvalidInput("walker_id", "walker id is required")
	}
	if p.DailyBookingLimit == nil || *p.DailyBookingLimit < 0 {
		return schedule.Walker{}, apperr.InvalidInput("daily_booking_limit", "daily booking limit must be zero or more")
	}

	w := schedule.Walker{ID: p.WalkerID, DailyBookingLimit: *p.DailyBookingLimit}
	for _, m := range p.Schedules {
		start, err := schedule.ParseTimeOfDay(m.StartTime)
		if err != nil {
			return schedule.Walker{}, err
		}
		end, err := schedule.ParseTimeOfDay(m.EndTime)
		if err != nil {
			return schedule.Walker{}, err
		}
		s, err := schedule.New(time.Weekday(m.DayOfWeek), start, end)
		if err != nil {
			return schedule.Walker{}, err
		}
		w.Schedules = append(w.Schedules, s)
	}
	return w, nil
}

// DecodeWalkerProfiles parses a JSON array of walker profile payloads.
func DecodeWalkerProfiles(data []byte) ([]schedule.Walker, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.InvalidInput("payload", "invalid walker profile list: %v", err)
	}
	out := make([]schedule.Walker, 0, len(raw))
	for i, r := range raw {
		w, err := DecodeWalkerProfile(r)
		if err != nil {
			return nil, fmt.Errorf("walker profile %d: %w", i, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// Seed stores every walker in the profile list data. Nothing is written if any
// profile is malformed.
func Seed(ctx context.Context, store WalkerWriter, data []byte) (int, error) {
	walkers, err := DecodeWalkerProfiles(data)
	if err != nil {
		return 0, err
	}
	for _, w := range walkers {
		if err := store.UpsertWalker(ctx, w); err != nil {
			return 0, fmt.Errorf("seed walker %s: %w", w.ID, err)
		}
	}
	return len(walkers), nil
}

type WalkerProjection struct {
	store  WalkerWriter
	logger *slog.Logger
}

func NewWalkerProjection(store WalkerWriter, logger *slog.Logger) *WalkerProjection {
	return &WalkerProjection{store: store, logger: logger}
}

// Apply decodes payload and replaces the walker. Malformed payloads are logged
// and dropped; store errors are returned.
func (p *WalkerProjection) Apply(ctx context.Context, payload []byte) error {
	w, err := DecodeWalkerProfile(payload)
	if err != nil {
		p.logger.Warn("walker profile rejected", "err", err)
		return nil
	}
	if err := p.store.UpsertWalker(ctx, w); err != nil {
		return err
	}
	p.logger.Info("walker profile applied", "walker_id", w.ID, "schedules", len(w.Schedules), "daily_booking_limit", w.DailyBookingLimit)
	return nil
}
