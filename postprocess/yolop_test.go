package postprocess

import (
	"errors"
	"math"
	"testing"

	visionpost "github.com/visionpost/go-visionpost"
	"github.com/visionpost/go-visionpost/preprocess"
)

// drivableTensor builds a [1, 2, H, W] two channel head where the second
// channel wins the argmax for rows at or below split
func drivableTensor(w, h, split int) visionpost.Output {

	buf := make([]float32, 2*w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf[y*w+x] = 1.0

			if y >= split {
				buf[w*h+y*w+x] = 2.0
			}
		}
	}

	return visionpost.Output{
		BufFloat: buf,
		Dims:     []uint32{1, 2, uint32(h), uint32(w)},
	}
}

// drivableTensorNHWC is the channels-last layout of drivableTensor, with the
// two channel values interleaved per pixel
func drivableTensorNHWC(w, h, split int) visionpost.Output {

	buf := make([]float32, 2*w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf[2*(y*w+x)] = 1.0

			if y >= split {
				buf[2*(y*w+x)+1] = 2.0
			}
		}
	}

	return visionpost.Output{
		BufFloat: buf,
		Dims:     []uint32{1, uint32(h), uint32(w), 2},
		Fmt:      visionpost.TensorNHWC,
	}
}

func newTestYOLOP(t *testing.T) *YOLOP {
	t.Helper()

	proc, err := NewYOLOP(YOLOPDefaultParams(), NewConfTable([]float32{0.25}, 1),
		visionpost.NewPool(2))

	if err != nil {
		t.Fatalf("NewYOLOP: %v", err)
	}

	return proc
}

func TestYOLOPDetect(t *testing.T) {

	proc := newTestYOLOP(t)

	det := detTensor(t, [][]float32{anchor(50, 50, 20, 20, 0.9, 0.9)})
	drivable := drivableTensor(100, 100, 50)
	lane := probTensor(t, 100, 100, fillConst(0.0))

	outputs, err := visionpost.NewOutputs(det, drivable, lane)

	if err != nil {
		t.Fatalf("NewOutputs: %v", err)
	}

	results, err := proc.Detect(outputs,
		[]preprocess.ScaleInfo{unitScale(100, 100)})

	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result record, got %d", len(results))
	}

	res := results[0]

	// detection boxes come first in the merged record
	if len(res.Boxes) < 2 {
		t.Fatalf("expected a traffic object box and a drivable area box, got %d boxes",
			len(res.Boxes))
	}

	if res.Boxes[0].Class != 0 {
		t.Errorf("first box class %d, want detection class 0", res.Boxes[0].Class)
	}

	if math.Abs(float64(res.Boxes[0].Conf-0.81)) > 1e-6 {
		t.Errorf("detection confidence %f, want 0.81", res.Boxes[0].Conf)
	}

	var drvBoxes int

	for _, b := range res.Boxes[1:] {
		if b.Class == YOLOPClassDrivable {
			drvBoxes++
		}
	}

	if drvBoxes != 1 {
		t.Errorf("expected 1 drivable area box, got %d", drvBoxes)
	}

	if len(res.Polygons) != 1 || res.Polygons[0].Class != YOLOPClassDrivable {
		t.Errorf("expected 1 drivable area polygon, got %d", len(res.Polygons))
	}

	// both segmentation heads keep their masks, drivable before lane
	if len(res.Masks) != 2 {
		t.Fatalf("expected drivable and lane masks, got %d", len(res.Masks))
	}

	if res.Masks[0].Class != YOLOPClassDrivable ||
		res.Masks[1].Class != YOLOPClassLane {
		t.Errorf("mask classes %d, %d, want %d, %d",
			res.Masks[0].Class, res.Masks[1].Class,
			YOLOPClassDrivable, YOLOPClassLane)
	}

	// the drivable mask covers the bottom half of the image
	drvMask := res.Masks[0]

	if drvMask.Mask[25*100+50] != 0 || drvMask.Mask[75*100+50] != 255 {
		t.Errorf("drivable mask does not match the bottom half region")
	}
}

// TestYOLOPDetectNHWC feeds the drivable head in channels-last layout and
// checks the decoded region matches the channels-first result
func TestYOLOPDetectNHWC(t *testing.T) {

	proc := newTestYOLOP(t)

	det := detTensor(t, [][]float32{anchor(50, 50, 20, 20, 0.9, 0.9)})
	drivable := drivableTensorNHWC(100, 100, 50)
	lane := probTensor(t, 100, 100, fillConst(0.0))

	outputs, err := visionpost.NewOutputs(det, drivable, lane)

	if err != nil {
		t.Fatalf("NewOutputs: %v", err)
	}

	results, err := proc.Detect(outputs,
		[]preprocess.ScaleInfo{unitScale(100, 100)})

	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	res := results[0]

	if len(res.Polygons) != 1 || res.Polygons[0].Class != YOLOPClassDrivable {
		t.Fatalf("expected 1 drivable area polygon, got %d", len(res.Polygons))
	}

	if len(res.Masks) != 2 {
		t.Fatalf("expected drivable and lane masks, got %d", len(res.Masks))
	}

	drvMask := res.Masks[0]

	// the argmax must compare the two channels of the same pixel, so the
	// mask splits cleanly at the row boundary
	if drvMask.Mask[25*100+50] != 0 || drvMask.Mask[75*100+50] != 255 {
		t.Errorf("channels-last drivable mask does not match the bottom half region")
	}

	for x := 0; x < 100; x++ {
		if drvMask.Mask[49*100+x] != 0 || drvMask.Mask[50*100+x] != 255 {
			t.Fatalf("column %d: mask boundary not at row 50", x)
		}
	}
}

func TestYOLOPBatchOrder(t *testing.T) {

	proc := newTestYOLOP(t)

	const batch = 3

	detImages := make([][][]float32, batch)

	for i := range detImages {
		// image 1 carries no detection above threshold
		obj := float32(0.9)

		if i == 1 {
			obj = 0.0
		}

		detImages[i] = [][]float32{anchor(50, 50, 20, 20, obj, 0.9)}
	}

	det := detTensor(t, detImages...)

	// two channel head with channel 0 winning everywhere, so no drivable
	// area foreground in any image
	drvBuf := make([]float32, batch*2*100*100)

	for img := 0; img < batch; img++ {
		ch0 := drvBuf[img*2*100*100:]

		for i := 0; i < 100*100; i++ {
			ch0[i] = 1.0
		}
	}

	drivable := visionpost.Output{
		BufFloat: drvBuf,
		Dims:     []uint32{batch, 2, 100, 100},
	}

	lane := probTensor(t, 100, 100,
		fillConst(0.0), fillConst(0.0), fillConst(0.0))

	outputs, err := visionpost.NewOutputs(det, drivable, lane)

	if err != nil {
		t.Fatalf("NewOutputs: %v", err)
	}

	scales := []preprocess.ScaleInfo{
		unitScale(100, 100), unitScale(100, 100), unitScale(100, 100),
	}

	results, err := proc.Detect(outputs, scales)

	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(results) != batch {
		t.Fatalf("expected %d result records, got %d", batch, len(results))
	}

	for i, res := range results {
		want := 1

		if i == 1 {
			want = 0
		}

		if len(res.Boxes) != want {
			t.Errorf("image %d: got %d boxes, want %d", i, len(res.Boxes), want)
		}
	}
}

func TestYOLOPShapeErrors(t *testing.T) {

	proc := newTestYOLOP(t)

	scales := []preprocess.ScaleInfo{unitScale(100, 100)}

	det := detTensor(t, [][]float32{anchor(50, 50, 20, 20, 0.9, 0.9)})
	drivable := drivableTensor(100, 100, 50)
	lane := probTensor(t, 100, 100, fillConst(0.0))

	// multi-task decode needs exactly three tensors
	twoHeads, err := visionpost.NewOutputs(det, drivable)

	if err != nil {
		t.Fatalf("NewOutputs: %v", err)
	}

	if _, err := proc.Detect(twoHeads, scales); !errors.Is(err,
		visionpost.ErrTensorShape) {
		t.Errorf("two tensors: got %v, want ErrTensorShape", err)
	}

	// a three channel task head is not decodable
	threeCh := visionpost.Output{
		BufFloat: make([]float32, 3*10*10),
		Dims:     []uint32{1, 3, 10, 10},
	}

	badHead, err := visionpost.NewOutputs(det, threeCh, lane)

	if err != nil {
		t.Fatalf("NewOutputs: %v", err)
	}

	if _, err := proc.Detect(badHead, scales); !errors.Is(err,
		visionpost.ErrTensorShape) {
		t.Errorf("three channel head: got %v, want ErrTensorShape", err)
	}

	// heads disagreeing on batch size
	laneTwo := probTensor(t, 100, 100, fillConst(0.0), fillConst(0.0))

	mismatch, err := visionpost.NewOutputs(det, drivable, laneTwo)

	if err != nil {
		t.Fatalf("NewOutputs: %v", err)
	}

	if _, err := proc.Detect(mismatch, scales); !errors.Is(err,
		visionpost.ErrBatchMismatch) {
		t.Errorf("head batch mismatch: got %v, want ErrBatchMismatch", err)
	}
}
