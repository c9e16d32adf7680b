package postprocess

import (
	"runtime"
	"sync"
)

// parallelRowThreshold is the pixel count above which mask composition is
// split across CPU workers
const parallelRowThreshold = 1 << 16

// binarizeMask is the straight-line version: no channels or goroutines.
// Pixels strictly above thresh become foreground (255).
func binarizeMask(probs []float32, thresh float32, out []uint8) {

	for i, v := range probs {
		if v > thresh {
			out[i] = 255
		} else {
			out[i] = 0
		}
	}
}

// binarizeMaskParallel splits the mask rows across NumCPU workers, each
// writing a disjoint region of out
func binarizeMaskParallel(probs []float32, thresh float32, width, height int,
	out []uint8) {

	numWorkers := runtime.NumCPU()

	if numWorkers > height {
		numWorkers = height
	}

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	// each worker handles rows r = w, w+numWorkers, w+2*numWorkers
	for w := 0; w < numWorkers; w++ {
		go func(w int) {
			defer wg.Done()

			for r := w; r < height; r += numWorkers {
				base := r * width

				for c := 0; c < width; c++ {
					if probs[base+c] > thresh {
						out[base+c] = 255
					} else {
						out[base+c] = 0
					}
				}
			}
		}(w)
	}

	wg.Wait()
}

// binarize chooses the parallel path for large masks
func binarize(probs []float32, thresh float32, width, height int, out []uint8) {

	if width*height >= parallelRowThreshold {
		binarizeMaskParallel(probs, thresh, width, height, out)
		return
	}

	binarizeMask(probs, thresh, out)
}

// argmaxMask writes foreground where the second channel beats the first,
// used for two channel task heads such as drivable area segmentation
func argmaxMask(ch0, ch1 []float32, out []uint8) {

	for i := range out {
		if ch1[i] > ch0[i] {
			out[i] = 255
		} else {
			out[i] = 0
		}
	}
}

// argmaxMaskInterleaved is the channels-last variant of argmaxMask, the two
// channel values of pixel i sit at buf[2i] and buf[2i+1]
func argmaxMaskInterleaved(buf []float32, out []uint8) {

	for i := range out {
		if buf[2*i+1] > buf[2*i] {
			out[i] = 255
		} else {
			out[i] = 0
		}
	}
}
