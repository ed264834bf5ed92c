package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/tgienger/cronocelda/internal/models"
)

// RangeShortcut selects how the display range is derived
type RangeShortcut string

const (
	RangeAuto      RangeShortcut = "auto"
	RangeAll       RangeShortcut = "all"
	RangeLastMonth RangeShortcut = "month"
	RangeLastYear  RangeShortcut = "year"
)

// ParseRange maps a user-supplied name to a shortcut, defaulting to auto
func ParseRange(s string) RangeShortcut {
	switch RangeShortcut(strings.ToLower(strings.TrimSpace(s))) {
	case RangeAll:
		return RangeAll
	case RangeLastMonth:
		return RangeLastMonth
	case RangeLastYear:
		return RangeLastYear
	default:
		return RangeAuto
	}
}

// DateRange is an inclusive time window
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether at falls within the range
func (r DateRange) Contains(at time.Time) bool {
	return !at.Before(r.Start) && !at.After(r.End)
}

// Matches reports whether the milestone's name, description, category name or
// any resolved tag contains the search term, ignoring case
func Matches(m models.Milestone, search string) bool {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(m.Name), term) ||
		strings.Contains(strings.ToLower(m.Description), term) ||
		strings.Contains(strings.ToLower(m.Category.Name), term) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Project filters ms by search and sorts the result most recent first.
// The input is not modified.
func Project(ms []models.Milestone, search string) []models.Milestone {
	out := make([]models.Milestone, 0, len(ms))
	for _, m := range ms {
		if Matches(m, search) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

// Bounds returns the padded range around the oldest and newest milestone
func Bounds(ms []models.Milestone) (DateRange, bool) {
	if len(ms) == 0 {
		return DateRange{}, false
	}
	oldest, newest := ms[0].OccurredAt, ms[0].OccurredAt
	for _, m := range ms[1:] {
		if m.OccurredAt.Before(oldest) {
			oldest = m.OccurredAt
		}
		if m.OccurredAt.After(newest) {
			newest = m.OccurredAt
		}
	}
	return DateRange{
		Start: oldest.AddDate(0, -1, 0),
		End:   newest.AddDate(0, 1, 0),
	}, true
}

// RangeFor derives the display range for a shortcut
func RangeFor(ms []models.Milestone, shortcut RangeShortcut, now time.Time) (DateRange, bool) {
	switch shortcut {
	case RangeLastMonth:
		return DateRange{Start: now.AddDate(0, -1, 0), End: now}, true
	case RangeLastYear:
		return DateRange{Start: now.AddDate(-1, 0, 0), End: now}, true
	default:
		return Bounds(ms)
	}
}

// View returns the filtered, sorted projection of the current collection
func (t *Timeline) View(search string) []models.Milestone {
	return Project(t.All(), search)
}

// Range derives the display range from the current collection
func (t *Timeline) Range(shortcut RangeShortcut, now time.Time) (DateRange, bool) {
	return RangeFor(t.All(), shortcut, now)
}

// ViewInRange is View restricted to milestones inside the shortcut's range.
// With an empty collection there is no range and the result is empty.
func (t *Timeline) ViewInRange(search string, shortcut RangeShortcut, now time.Time) ([]models.Milestone, DateRange) {
	all := t.All()
	rng, ok := RangeFor(all, shortcut, now)
	if !ok {
		return []models.Milestone{}, rng
	}
	view := Project(all, search)
	out := view[:0]
	for _, m := range view {
		if rng.Contains(m.OccurredAt) {
			out = append(out, m)
		}
	}
	return out, rng
}
