package visionpost

import (
	"errors"
	"fmt"
)

// TensorFormat describes the axis ordering of an output tensor
type TensorFormat int

const (
	// TensorNCHW is batch, channel, height, width ordering
	TensorNCHW TensorFormat = iota
	// TensorNHWC is batch, height, width, channel ordering
	TensorNHWC
)

var (
	// ErrTensorShape indicates an output tensor arrived from the inference
	// engine with a rank or axis size the decoder cannot consume
	ErrTensorShape = errors.New("unexpected tensor shape")
	// ErrBatchMismatch indicates the number of per image scale records does
	// not match the tensor batch dimension
	ErrBatchMismatch = errors.New("batch size mismatch")
)

// Output is a single raw output tensor from a model forward pass, already
// materialized as float32 values by the caller's inference engine
type Output struct {
	// BufFloat is the flat tensor buffer in row major order
	BufFloat []float32
	// Dims are the tensor dimensions, batch first
	Dims []uint32
	// Fmt is the axis ordering of Dims
	Fmt TensorFormat
}

// Rank returns the number of tensor dimensions
func (o Output) Rank() int {
	return len(o.Dims)
}

// Elems returns the number of elements the dimensions describe
func (o Output) Elems() int {

	if len(o.Dims) == 0 {
		return 0
	}

	n := 1

	for _, d := range o.Dims {
		n *= int(d)
	}

	return n
}

// Validate checks the buffer length matches the product of the dimensions
func (o Output) Validate() error {

	if len(o.Dims) == 0 {
		return fmt.Errorf("%w: tensor has no dimensions", ErrTensorShape)
	}

	if o.Elems() != len(o.BufFloat) {
		return fmt.Errorf("%w: dims %v describe %d elements, buffer has %d",
			ErrTensorShape, o.Dims, o.Elems(), len(o.BufFloat))
	}

	return nil
}

// OutputFromFloat16 builds an Output from a raw float16 buffer as produced
// by engines running half precision models
func OutputFromFloat16(buf []uint16, dims []uint32, format TensorFormat) Output {
	return Output{
		BufFloat: Float16ToFloat32(buf),
		Dims:     dims,
		Fmt:      format,
	}
}

// Outputs holds the set of output tensors produced for one batched
// forward pass of a model
type Outputs struct {
	Output []Output
}

// NewOutputs validates each tensor and wraps them for decoding.  Returns an
// error if any tensor buffer does not match its declared dimensions.
func NewOutputs(outs ...Output) (*Outputs, error) {

	if len(outs) == 0 {
		return nil, fmt.Errorf("%w: no output tensors given", ErrTensorShape)
	}

	for i, out := range outs {
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	return &Outputs{Output: outs}, nil
}

// BatchSize returns the batch dimension shared by the output tensors
func (o *Outputs) BatchSize() int {

	if len(o.Output) == 0 || len(o.Output[0].Dims) == 0 {
		return 0
	}

	return int(o.Output[0].Dims[0])
}
