package visionpost

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// Float16ToFloat32 converts a raw float16 tensor buffer to float32 using the
// precomputed lookup table
func Float16ToFloat32(src []uint16) []float32 {

	dst := make([]float32, len(src))

	for i, v := range src {
		dst[i] = f16LookupTable[v]
	}

	return dst
}
