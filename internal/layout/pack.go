package layout

import (
	"fmt"

	"lanecal/internal/clock"
)

// AssignColumns places every segment in the lowest column not held by an
// overlapping, already placed segment, visiting segments in slice order.
// Earlier columns are cleared first so a repeated pass gives the same result.
// It returns the highest column in use, or -1 for no segments.
func AssignColumns(segs []Segment) int {
	byDate := make(map[clock.Date][]int)
	for i := range segs {
		segs[i].Column = Unassigned
		byDate[segs[i].Date] = append(byDate[segs[i].Date], i)
	}

	maxColumn := -1
	for i := range segs {
		used := make(map[int]struct{})
		for _, j := range byDate[segs[i].Date] {
			if j == i || segs[j].Column == Unassigned {
				continue
			}
			if Overlaps(segs[i], segs[j]) {
				used[segs[j].Column] = struct{}{}
			}
		}

		col := 0
		for {
			if _, taken := used[col]; !taken {
				break
			}
			col++
		}
		segs[i].Column = col
		if col > maxColumn {
			maxColumn = col
		}
	}

	for i := range segs {
		if segs[i].Column == Unassigned {
			panic(fmt.Sprintf("layout: segment %s left without a column", segs[i]))
		}
	}
	return maxColumn
}
