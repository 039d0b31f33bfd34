package layout

// Overlaps reports whether two segments on the same date intersect under
// half-open [start, end) semantics. Back-to-back segments do not overlap.
// Times are compared on the wall clock, so a start inside a daylight-saving
// gap still collides with what is drawn at that hour.
func Overlaps(a, b Segment) bool {
	if a.Date != b.Date {
		return false
	}
	return a.StartTime.Minutes() < b.EndTime.Minutes() && a.EndTime.Minutes() > b.StartTime.Minutes()
}
