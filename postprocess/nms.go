package postprocess

import (
	"sort"
)

// NMSBoxes applies class aware greedy Non-Maximum Suppression.  Candidates
// are ordered by confidence descending (ties keep their original order), then
// each survivor suppresses any remaining candidate of the same class whose
// IoU with it exceeds the threshold.  The survivors are returned in
// confidence descending order.
//
// Running NMSBoxes on an already suppressed set returns the identical set.
func NMSBoxes(boxes []Box, iouThreshold float32) []Box {

	if len(boxes) <= 1 {
		return append([]Box(nil), boxes...)
	}

	order := make([]int, len(boxes))

	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		return boxes[order[i]].Conf > boxes[order[j]].Conf
	})

	suppressed := make([]bool, len(boxes))
	keep := make([]Box, 0, len(boxes))

	for i, n := range order {

		if suppressed[n] {
			continue
		}

		keep = append(keep, boxes[n])

		for _, m := range order[i+1:] {

			if suppressed[m] || boxes[m].Class != boxes[n].Class {
				continue
			}

			if iou(boxes[n], boxes[m]) > iouThreshold {
				suppressed[m] = true
			}
		}
	}

	return keep
}
