package service

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"nest_dashboard/internal/models"
)

// Production window, inclusive on both ends.
const (
	FirstHour = 6
	LastHour  = 20

	bucketCount = LastHour - FirstHour + 1
)

var errHourOutOfWindow = errors.New("hour outside production window")

// newHourBucket builds a zeroed bucket holding every subject key.
func newHourBucket(hour int, subjects []string) (models.HourBucket, error) {
	if hour < FirstHour || hour > LastHour {
		return models.HourBucket{}, fmt.Errorf("%w: %d", errHourOutOfWindow, hour)
	}
	counts := make(map[string]int, len(subjects))
	for _, s := range subjects {
		counts[s] = 0
	}
	return models.HourBucket{
		Hour:   hour,
		Label:  fmt.Sprintf("%02d:00", hour),
		Counts: counts,
	}, nil
}

// parseHour reads the hour part of "HH:MM". A bare "HH" is accepted too.
func parseHour(timeOfDay string) (int, bool) {
	hh, _, _ := strings.Cut(strings.TrimSpace(timeOfDay), ":")
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// eggSubjects returns the distinct subjects of every egg event, sorted.
func eggSubjects(log map[string]models.HistoryEvent) []string {
	seen := make(map[string]struct{})
	for _, ev := range log {
		if ev.IsEgg() {
			seen[ev.Subject] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AggregateProduction turns the event log into the hourly stacked egg series.
// It always returns one bucket per hour of the window, in chronological order.
// Non-egg events, unparseable times and hours outside the window are skipped.
func AggregateProduction(log map[string]models.HistoryEvent) models.ProductionSeries {
	subjects := eggSubjects(log)

	buckets := make([]models.HourBucket, 0, bucketCount)
	for h := FirstHour; h <= LastHour; h++ {
		b, _ := newHourBucket(h, subjects) // h is inside the window
		buckets = append(buckets, b)
	}

	for _, ev := range log {
		if !ev.IsEgg() {
			continue
		}
		h, ok := parseHour(ev.TimeOfDay)
		if !ok || h < FirstHour || h > LastHour {
			continue
		}
		buckets[h-FirstHour].Counts[ev.Subject]++
	}

	return models.ProductionSeries{Buckets: buckets, Subjects: subjects}
}
