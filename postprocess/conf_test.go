package postprocess

import (
	"testing"
)

func TestNewConfTable(t *testing.T) {

	tests := []struct {
		name       string
		confs      []float32
		numClasses int
		expected   []float32
	}{
		{
			"exact match",
			[]float32{0.3, 0.4, 0.5}, 3,
			[]float32{0.3, 0.4, 0.5},
		},
		{
			"last value repeated",
			[]float32{0.3, 0.6}, 4,
			[]float32{0.3, 0.6, 0.6, 0.6},
		},
		{
			"empty defaults",
			nil, 3,
			[]float32{DefaultConf, DefaultConf, DefaultConf},
		},
		{
			"single class",
			[]float32{0.7}, 1,
			[]float32{0.7},
		},
	}

	for _, tc := range tests {
		table := NewConfTable(tc.confs, tc.numClasses)

		if table.Len() != len(tc.expected) {
			t.Errorf("%s: table length %d, want %d", tc.name, table.Len(),
				len(tc.expected))
			continue
		}

		for class, want := range tc.expected {
			if got := table.At(class); got != want {
				t.Errorf("%s: class %d threshold %f, want %f", tc.name,
					class, got, want)
			}
		}
	}
}

func TestConfTableOutOfRange(t *testing.T) {

	table := NewConfTable([]float32{0.3, 0.6}, 2)

	if got := table.At(10); got != 0.6 {
		t.Errorf("out of range class fell back to %f, want 0.6", got)
	}

	if got := table.At(-1); got != 0.6 {
		t.Errorf("negative class fell back to %f, want 0.6", got)
	}
}

func TestConfTableZeroClasses(t *testing.T) {

	// a table is never empty, the class count is floored at one
	table := NewConfTable(nil, 0)

	if table.Len() != 1 {
		t.Fatalf("table length %d, want 1", table.Len())
	}

	if table.At(0) != DefaultConf {
		t.Errorf("threshold %f, want default %f", table.At(0), DefaultConf)
	}
}
