// Package retention derives time-windowed views of completed and deleted
// tasks. Windows are always computed against the supplied "now", so nothing
// has to sweep expired rows.
package retention

import (
	"time"

	"sideo/internal/storage"
)

const (
	Day = 24 * time.Hour

	// TrashWindow is how long a soft-deleted task stays visible in the trash.
	TrashWindow = 7 * Day
	// RecentWindow bounds the "recently completed" section.
	RecentWindow = 7 * Day
	// CompletedLimit caps how many completed tasks are shown.
	CompletedLimit = 30
)

const (
	SectionRecentlyCompleted = "RECENTLY COMPLETED"
	SectionLastWeek          = "LAST WEEK"
)

type Section struct {
	Title string
	Tasks []storage.Task
}

// EffectiveTime is when a completed task counts as completed. Rows written
// before completed_at existed fall back to their creation time.
func EffectiveTime(t storage.Task) time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.CreatedAt
}

// Sections splits completed tasks into display sections, keeping the input
// order inside each. Everything older than RecentWindow lands in LAST WEEK;
// there is no older bucket. Empty sections are omitted.
func Sections(tasks []storage.Task, now time.Time) []Section {
	cutoff := now.Add(-RecentWindow)
	var recent, lastWeek []storage.Task
	for _, t := range tasks {
		if !EffectiveTime(t).Before(cutoff) {
			recent = append(recent, t)
		} else {
			lastWeek = append(lastWeek, t)
		}
	}

	var out []Section
	if len(recent) > 0 {
		out = append(out, Section{Title: SectionRecentlyCompleted, Tasks: recent})
	}
	if len(lastWeek) > 0 {
		out = append(out, Section{Title: SectionLastWeek, Tasks: lastWeek})
	}
	return out
}

// TrashSince is the inclusive lower bound on deletion time for tasks still
// visible in the trash.
func TrashSince(now time.Time) time.Time {
	return now.Add(-TrashWindow)
}

// Expired reports whether a deleted task has left the trash window. Such rows
// remain stored but are no longer shown or restorable from the trash.
func Expired(t storage.Task, now time.Time) bool {
	if !t.Deleted || t.DeletedAt == nil {
		return false
	}
	return t.DeletedAt.Before(TrashSince(now))
}

// TimeLeft is how long a deleted task remains in the trash.
func TimeLeft(t storage.Task, now time.Time) time.Duration {
	if t.DeletedAt == nil {
		return 0
	}
	left := t.DeletedAt.Add(TrashWindow).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
