package visionpost

import (
	"fmt"
)

// Batch describes the per image layout of a batched output tensor so decoders
// can slice out the buffer belonging to a single image
type Batch struct {
	// batchSize is the number of images in the batch
	batchSize int
	// imageSize is the number of elements belonging to each image
	imageSize int
}

// NewBatch returns the batch layout of the given output tensor.  An error is
// returned if the buffer cannot be split evenly across the batch dimension.
func NewBatch(out Output) (*Batch, error) {

	if err := out.Validate(); err != nil {
		return nil, err
	}

	batchSize := int(out.Dims[0])

	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch dimension is %d", ErrTensorShape,
			batchSize)
	}

	return &Batch{
		batchSize: batchSize,
		imageSize: len(out.BufFloat) / batchSize,
	}, nil
}

// Size returns the number of images in the batch
func (b *Batch) Size() int {
	return b.batchSize
}

// ImageSize returns the number of elements belonging to each image
func (b *Batch) ImageSize() int {
	return b.imageSize
}

// Image returns the slice of the batched buffer belonging to image idx
func (b *Batch) Image(buf []float32, idx int) ([]float32, error) {

	if idx < 0 || idx >= b.batchSize {
		return nil, fmt.Errorf("%w: image index %d outside batch of %d",
			ErrBatchMismatch, idx, b.batchSize)
	}

	start := idx * b.imageSize
	end := start + b.imageSize

	if end > len(buf) {
		return nil, fmt.Errorf("%w: buffer too short for image %d",
			ErrTensorShape, idx)
	}

	return buf[start:end], nil
}
