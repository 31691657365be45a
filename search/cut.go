package search

import "sort"

// cut splits src at the given points, so that every odd-indexed element of
// the result sits between a pair of points. Used to mark matched title
// ranges for client-side highlighting.
func cut(src string, points []int) []string {
	if len(points) == 0 {
		return []string{src}
	}

	result := make([]string, 0, len(points)+1)
	last := 0
	for _, point := range points {
		if point > len(src) {
			point = len(src)
		}
		result = append(result, src[last:point])
		last = point
	}
	return append(result, src[last:])
}

// mergeCutRanges merges overlapping or touching [from, to) ranges and
// returns the merged ranges sorted by start.
func mergeCutRanges(ranges [][2]int) [][2]int {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([][2]int, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })

	merged := [][2]int{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r[0] <= last[1] {
			if r[1] > last[1] {
				last[1] = r[1]
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// cutPoints flattens merged ranges into the point list cut expects.
func cutPoints(ranges [][2]int) []int {
	merged := mergeCutRanges(ranges)
	points := make([]int, 0, len(merged)*2)
	for _, r := range merged {
		points = append(points, r[0], r[1])
	}
	return points
}
