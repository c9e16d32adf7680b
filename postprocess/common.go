package postprocess

import (
	"github.com/chewxy/math32"
)

// clampF32 restricts a float value between a minimum and maximum value
func clampF32(x, min, max float32) float32 {

	if x < min {
		return min
	} else if x > max {
		return max
	}

	return x
}

// minInt returns the minimum Int from two values
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// sigmoid applies the logistic function, used on raw model outputs exported
// without activation
func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + math32.Exp(-x))
}

// iou calculates the Intersection over Union value of two boxes
func iou(a, b Box) float32 {

	x1 := math32.Max(a.X, b.X)
	y1 := math32.Max(a.Y, b.Y)
	x2 := math32.Min(a.Right(), b.Right())
	y2 := math32.Min(a.Bottom(), b.Bottom())

	w := math32.Max(0, x2-x1)
	h := math32.Max(0, y2-y1)

	intersection := w * h
	union := a.Area() + b.Area() - intersection

	if union <= 0 {
		return 0.0
	}

	return intersection / union
}
