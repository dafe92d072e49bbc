package aggregator

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/ccwrapped/internal/model"
)

func activeDays(days map[time.Time]*dayAcc) []DayActivity {
	out := lo.MapToSlice(days, func(date time.Time, d *dayAcc) DayActivity {
		return DayActivity{Date: date, Messages: d.messages, Tokens: d.tokens}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// quartiles returns the 25th, 50th and 75th percentile of per-day message
// counts, linearly interpolated between closest ranks.
func quartiles(days []DayActivity) [3]float64 {
	var q [3]float64
	if len(days) == 0 {
		return q
	}

	counts := lo.Map(days, func(d DayActivity, _ int) float64 { return float64(d.Messages) })
	sort.Float64s(counts)

	for i, p := range []float64{0.25, 0.5, 0.75} {
		pos := p * float64(len(counts)-1)
		low, high := int(math.Floor(pos)), int(math.Ceil(pos))
		q[i] = counts[low] + (counts[high]-counts[low])*(pos-float64(low))
	}
	return q
}

// level buckets a day's message count: 0 inactive, 1-4 by quartile
func level(count int, q [3]float64) int {
	c := float64(count)
	switch {
	case count == 0:
		return 0
	case c <= q[0]:
		return 1
	case c <= q[1]:
		return 2
	case c <= q[2]:
		return 3
	default:
		return 4
	}
}

// streakRuns splits date-sorted active days into runs of consecutive dates
func streakRuns(days []DayActivity) []StreakRun {
	var runs []StreakRun
	for _, d := range days {
		if n := len(runs); n > 0 && runs[n-1].End.AddDate(0, 0, 1).Equal(d.Date) {
			runs[n-1].End = d.Date
			runs[n-1].Length++
			continue
		}
		runs = append(runs, StreakRun{Start: d.Date, End: d.Date, Length: 1})
	}
	return runs
}

// longestRun picks the longest run; the earliest wins a tie
func longestRun(runs []StreakRun) StreakRun {
	var best StreakRun
	for _, r := range runs {
		if r.Length > best.Length {
			best = r
		}
	}
	return best
}

// streakReference is the day a streak must reach to be current: today, or
// Dec 31 when a past year is requested.
func streakReference(year int, now time.Time) time.Time {
	if year != 0 && year < now.Year() {
		return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return model.Day(now)
}

func currentStreak(runs []StreakRun, ref time.Time) int {
	if len(runs) == 0 {
		return 0
	}
	last := runs[len(runs)-1]
	if last.End.Equal(ref) {
		return last.Length
	}
	return 0
}
