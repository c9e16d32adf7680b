package postprocess

// DefaultConf is the confidence threshold used when a ConfTable is built
// without any values
const DefaultConf = float32(0.25)

// ConfTable maps a class id to its confidence threshold.  It is constructed
// once per model and read-only during decoding, so it may be shared across
// decode workers without locking.
type ConfTable struct {
	confs []float32
}

// NewConfTable builds a threshold table for numClasses classes.  When fewer
// thresholds than classes are supplied the last value is repeated for the
// remaining classes, and an empty slice defaults every class to DefaultConf.
func NewConfTable(confs []float32, numClasses int) ConfTable {

	if numClasses < 1 {
		numClasses = 1
	}

	table := make([]float32, numClasses)

	for i := 0; i < numClasses; i++ {
		switch {
		case i < len(confs):
			table[i] = confs[i]
		case len(confs) > 0:
			table[i] = confs[len(confs)-1]
		default:
			table[i] = DefaultConf
		}
	}

	return ConfTable{confs: table}
}

// At returns the threshold for the given class id.  Out of range ids fall
// back to the last entry.
func (c ConfTable) At(class int) float32 {

	if class < 0 || class >= len(c.confs) {
		return c.confs[len(c.confs)-1]
	}

	return c.confs[class]
}

// Len returns the number of classes in the table
func (c ConfTable) Len() int {
	return len(c.confs)
}
