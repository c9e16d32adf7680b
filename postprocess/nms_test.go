package postprocess

import (
	"math"
	"testing"
)

func TestIoU(t *testing.T) {

	tests := []struct {
		name     string
		a, b     Box
		expected float32
	}{
		{
			"identical",
			Box{X: 0, Y: 0, W: 10, H: 10},
			Box{X: 0, Y: 0, W: 10, H: 10},
			1.0,
		},
		{
			"disjoint",
			Box{X: 0, Y: 0, W: 10, H: 10},
			Box{X: 20, Y: 20, W: 10, H: 10},
			0.0,
		},
		{
			"contained 80 percent",
			Box{X: 0, Y: 0, W: 10, H: 10},
			Box{X: 0, Y: 0, W: 10, H: 8},
			0.8,
		},
		{
			"quarter overlap",
			Box{X: 0, Y: 0, W: 10, H: 10},
			Box{X: 5, Y: 5, W: 10, H: 10},
			25.0 / 175.0,
		},
	}

	for _, tc := range tests {
		got := iou(tc.a, tc.b)

		if math.Abs(float64(got-tc.expected)) > 1e-6 {
			t.Errorf("%s: IoU %f, want %f", tc.name, got, tc.expected)
		}

		// IoU is symmetric
		if rev := iou(tc.b, tc.a); rev != got {
			t.Errorf("%s: IoU not symmetric, %f vs %f", tc.name, got, rev)
		}
	}
}

func TestNMSBoxesSuppression(t *testing.T) {

	boxes := []Box{
		{X: 0, Y: 0, W: 10, H: 8, Conf: 0.7, Class: 1},
		{X: 0, Y: 0, W: 10, H: 10, Conf: 0.9, Class: 1},
	}

	// the two boxes overlap at IoU 0.8, above the 0.5 threshold, so only
	// the higher confidence box survives
	kept := NMSBoxes(boxes, 0.5)

	if len(kept) != 1 {
		t.Fatalf("expected 1 surviving box, got %d", len(kept))
	}

	if kept[0].Conf != 0.9 {
		t.Errorf("survivor confidence %f, want 0.9", kept[0].Conf)
	}
}

func TestNMSBoxesClassAware(t *testing.T) {

	// identical geometry but different classes must not suppress each other
	boxes := []Box{
		{X: 0, Y: 0, W: 10, H: 10, Conf: 0.9, Class: 0},
		{X: 0, Y: 0, W: 10, H: 10, Conf: 0.7, Class: 1},
	}

	kept := NMSBoxes(boxes, 0.5)

	if len(kept) != 2 {
		t.Fatalf("expected both boxes kept across classes, got %d", len(kept))
	}
}

func TestNMSBoxesOrdering(t *testing.T) {

	// disjoint boxes so nothing is suppressed, output is sorted by
	// confidence descending
	boxes := []Box{
		{X: 0, Y: 0, W: 5, H: 5, Conf: 0.5, Class: 0},
		{X: 20, Y: 0, W: 5, H: 5, Conf: 0.9, Class: 0},
		{X: 40, Y: 0, W: 5, H: 5, Conf: 0.7, Class: 0},
	}

	kept := NMSBoxes(boxes, 0.5)

	if len(kept) != 3 {
		t.Fatalf("expected 3 boxes, got %d", len(kept))
	}

	for i := 1; i < len(kept); i++ {
		if kept[i].Conf > kept[i-1].Conf {
			t.Fatalf("output not sorted by confidence: %f before %f",
				kept[i-1].Conf, kept[i].Conf)
		}
	}

	// equal confidence keeps original order
	ties := []Box{
		{X: 0, Y: 0, W: 5, H: 5, Conf: 0.8, Class: 3},
		{X: 20, Y: 0, W: 5, H: 5, Conf: 0.8, Class: 4},
	}

	kept = NMSBoxes(ties, 0.5)

	if kept[0].Class != 3 || kept[1].Class != 4 {
		t.Errorf("tied confidences reordered: classes %d, %d",
			kept[0].Class, kept[1].Class)
	}
}

func TestNMSBoxesIdempotent(t *testing.T) {

	boxes := []Box{
		{X: 0, Y: 0, W: 10, H: 10, Conf: 0.9, Class: 0},
		{X: 1, Y: 1, W: 10, H: 10, Conf: 0.8, Class: 0},
		{X: 50, Y: 50, W: 10, H: 10, Conf: 0.7, Class: 0},
	}

	first := NMSBoxes(boxes, 0.5)
	second := NMSBoxes(first, 0.5)

	if len(first) != len(second) {
		t.Fatalf("second pass changed the box count: %d -> %d",
			len(first), len(second))
	}

	for i := range first {
		if first[i] != second[i] {
			t.Errorf("box %d changed on second pass: %+v vs %+v",
				i, first[i], second[i])
		}
	}
}

func TestNMSBoxesEmpty(t *testing.T) {

	if got := NMSBoxes(nil, 0.5); len(got) != 0 {
		t.Errorf("expected empty result for nil input, got %d boxes", len(got))
	}
}
