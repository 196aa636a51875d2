package chat

import (
	"slices"
	"time"

	"github.com/streamline-ai/chat-client/internal/model"
)

// DayGroup is one calendar day's worth of non-pinned threads.
type DayGroup struct {
	Day     time.Time
	Threads []model.ThreadSummary
}

// Directory is the display grouping of the latest thread-list snapshot:
// pinned threads first, then the rest bucketed by the local calendar
// day of their last activity.
type Directory struct {
	Pinned []model.ThreadSummary
	Days   []DayGroup
}

// BuildDirectory reshapes one pushed thread-list snapshot. It is
// recomputed wholesale on every push and never mutates its input; the
// previous grouping is simply discarded by the caller. A nil location
// falls back to the system's local zone.
func BuildDirectory(threads []model.ThreadSummary, loc *time.Location) Directory {
	if loc == nil {
		loc = time.Local
	}

	var dir Directory
	byDay := make(map[time.Time][]model.ThreadSummary)

	for _, t := range threads {
		if t.Pinned {
			dir.Pinned = append(dir.Pinned, t)
			continue
		}
		day := startOfDay(t.LastMessageTime(), loc)
		byDay[day] = append(byDay[day], t)
	}

	sortByActivityDesc(dir.Pinned)

	dir.Days = make([]DayGroup, 0, len(byDay))
	for day, group := range byDay {
		sortByActivityDesc(group)
		dir.Days = append(dir.Days, DayGroup{Day: day, Threads: group})
	}
	slices.SortFunc(dir.Days, func(a, b DayGroup) int {
		return b.Day.Compare(a.Day)
	})

	return dir
}

func sortByActivityDesc(threads []model.ThreadSummary) {
	slices.SortStableFunc(threads, func(a, b model.ThreadSummary) int {
		switch {
		case a.LastMessageAt > b.LastMessageAt:
			return -1
		case a.LastMessageAt < b.LastMessageAt:
			return 1
		default:
			return 0
		}
	})
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
