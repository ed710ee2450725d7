package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"nest_dashboard/internal/models"
)

// MaxLogLimit caps a single activity feed page.
const MaxLogLimit = 500

var ErrInvalidLimit = errors.New("invalid limit: must be >= 0")

// EventLogService lists the events of the current snapshot, newest first.
type EventLogService struct {
	acq Acquisition
}

func NewEventLogService(acq Acquisition) *EventLogService {
	return &EventLogService{acq: acq}
}

// normalizeFilter trims the filter and validates the limit. A zero limit means
// one full page of MaxLogLimit entries.
func normalizeFilter(f LogFilter) (LogFilter, error) {
	if f.Limit < 0 {
		return LogFilter{}, ErrInvalidLimit
	}
	if f.Limit == 0 || f.Limit > MaxLogLimit {
		f.Limit = MaxLogLimit
	}
	f.Kind = strings.TrimSpace(f.Kind)
	f.Subject = strings.TrimSpace(f.Subject)
	return f, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ActivityEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}

	st := s.acq.State()
	if st.Snapshot == nil {
		return []models.ActivityEntry{}, nil
	}

	out := make([]models.ActivityEntry, 0, len(st.Snapshot.EventLog))
	for id, ev := range st.Snapshot.EventLog {
		if f.Kind != "" && !strings.EqualFold(string(ev.Kind), f.Kind) {
			continue
		}
		if f.Subject != "" && ev.Subject != f.Subject {
			continue
		}
		out = append(out, models.ActivityEntry{
			EventID:   id,
			Kind:      ev.Kind,
			Subject:   ev.Subject,
			TimeOfDay: ev.TimeOfDay,
			Timestamp: ev.Timestamp,
			IsEgg:     ev.IsEgg(),
		})
	}
	sortNewestFirst(out)

	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// sortNewestFirst orders by ts, then by time of day, then by event id, all descending.
// Events without ts sort after those with one; unparseable times sort last.
func sortNewestFirst(entries []models.ActivityEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		am, bm := minuteOfDay(a.TimeOfDay), minuteOfDay(b.TimeOfDay)
		if am != bm {
			return am > bm
		}
		return a.EventID > b.EventID
	})
}

// minuteOfDay converts "HH:MM" to minutes since midnight, -1 when unparseable.
func minuteOfDay(timeOfDay string) int {
	h, ok := parseHour(timeOfDay)
	if !ok {
		return -1
	}
	m := 0
	if _, mm, found := strings.Cut(strings.TrimSpace(timeOfDay), ":"); found {
		v, err := strconv.Atoi(strings.TrimSpace(mm))
		if err != nil || v < 0 || v > 59 {
			return -1
		}
		m = v
	}
	return h*60 + m
}
