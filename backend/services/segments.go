package services

import "strings"

const segmentMarker = "## "

// CountSegments returns the number of teachable segments in a lesson script.
// Segments are delimited by level-2 heading markers at the start of a line;
// the count is the number of pieces a plain split would produce, counting a
// non-heading preamble as the first piece. An empty script is one segment.
// Resume positions are compared against this value, so the semantics must
// stay stable.
func CountSegments(script string) int {
	headings := 0
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(line, segmentMarker) {
			headings++
		}
	}
	if strings.HasPrefix(script, segmentMarker) {
		return headings
	}
	return headings + 1
}
