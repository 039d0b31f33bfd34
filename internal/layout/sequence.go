package layout

import "sort"

// Sequence orders segments by date, then start time. The sort is stable so
// equal keys keep their input order.
func Sequence(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool {
		if c := segs[i].Date.Compare(segs[j].Date); c != 0 {
			return c < 0
		}
		return segs[i].StartTime.Before(segs[j].StartTime)
	})
}
