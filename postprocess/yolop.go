package postprocess

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	visionpost "github.com/visionpost/go-visionpost"
	"github.com/visionpost/go-visionpost/logger"
	"github.com/visionpost/go-visionpost/preprocess"
)

// Class ids assigned to the auxiliary segmentation tasks
const (
	// YOLOPClassDrivable tags drivable area primitives
	YOLOPClassDrivable = 1
	// YOLOPClassLane tags lane marking primitives
	YOLOPClassLane = 2
)

// YOLOPParams defines the parameters for the YOLOP multi-task post
// processor, combining a detection head with drivable area and lane marking
// segmentation heads
type YOLOPParams struct {
	// Det configures the traffic object detection head
	Det YOLOParams
	// Drivable configures the drivable area segmentation head
	Drivable DBParams
	// Lane configures the lane marking segmentation head
	Lane DBParams
	// Logger receives debug output, defaults to a nop logger
	Logger *zap.Logger
}

// YOLOPDefaultParams returns an instance of YOLOPParams configured with
// default values for YOLOP/YOLOPv2 panoptic driving models:
// - Detection: single traffic object class, NMS threshold 0.45
// - Drivable area: mask threshold 0.5, class id 1
// - Lane markings: mask threshold 0.5, class id 2
func YOLOPDefaultParams() YOLOPParams {

	drivable := DBDefaultParams()
	drivable.BinaryThresh = 0.5
	drivable.MinWidth = 1
	drivable.MinHeight = 1
	drivable.Class = YOLOPClassDrivable
	drivable.KeepMask = true

	lane := DBDefaultParams()
	lane.BinaryThresh = 0.5
	lane.MinWidth = 1
	lane.MinHeight = 1
	lane.Class = YOLOPClassLane
	lane.KeepMask = true

	return YOLOPParams{
		Det: YOLOParams{
			ObjectClassNum:  1,
			NMSThreshold:    0.45,
			MaxObjectNumber: 64,
		},
		Drivable: drivable,
		Lane:     lane,
	}
}

// YOLOP is the post processor for multi-task driving models producing
// detection boxes plus drivable area and lane marking masks.  All three
// heads are decoded for each image and merged into a single result record.
type YOLOP struct {
	// Params are the Model configuration parameters
	Params YOLOPParams
	// det decodes the detection head
	det *YOLO
	// drivable and lane decode the segmentation heads
	drivable *DB
	lane     *DB
	// pool fans decoding out across CPU workers
	pool *visionpost.Pool
	log  *zap.Logger
}

// NewYOLOP returns an instance of the YOLOP post processor.  The confidence
// table applies to the detection head, the segmentation heads filter on
// their own class-0 thresholds.
func NewYOLOP(p YOLOPParams, confs ConfTable, pool *visionpost.Pool) (*YOLOP, error) {

	if p.Logger == nil {
		p.Logger = logger.Nop()
	}

	if pool == nil {
		pool = visionpost.NewPool(0)
	}

	p.Det.Logger = p.Logger
	p.Drivable.Logger = p.Logger
	p.Lane.Logger = p.Logger

	det, err := NewYOLO(p.Det, confs, pool)

	if err != nil {
		return nil, fmt.Errorf("detection head: %w", err)
	}

	drivable, err := NewDB(p.Drivable, NewConfTable(nil, 1), pool)

	if err != nil {
		return nil, fmt.Errorf("drivable head: %w", err)
	}

	lane, err := NewDB(p.Lane, NewConfTable(nil, 1), pool)

	if err != nil {
		return nil, fmt.Errorf("lane head: %w", err)
	}

	return &YOLOP{
		Params:   p,
		det:      det,
		drivable: drivable,
		lane:     lane,
		pool:     pool,
		log:      p.Logger,
	}, nil
}

// taskShape extracts channel count and mask dimensions from a segmentation
// head tensor of shape [batch, C, H, W] or [batch, H, W]
func taskShape(out visionpost.Output) (c, h, w int, err error) {

	switch out.Rank() {
	case 3:
		return 1, int(out.Dims[1]), int(out.Dims[2]), nil
	case 4:
		if out.Fmt == visionpost.TensorNHWC {
			c = int(out.Dims[3])
			h = int(out.Dims[1])
			w = int(out.Dims[2])
		} else {
			c = int(out.Dims[1])
			h = int(out.Dims[2])
			w = int(out.Dims[3])
		}

		if c != 1 && c != 2 {
			return 0, 0, 0, fmt.Errorf("%w: task head has %d channels, want 1 or 2",
				visionpost.ErrTensorShape, c)
		}

		return c, h, w, nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: task head has rank %d, want 3 or 4",
			visionpost.ErrTensorShape, out.Rank())
	}
}

// Detect takes the three model output tensors in the order detection head,
// drivable area head, lane marking head, and returns one merged result
// record per image.  Within a record the detection boxes come first, then
// drivable area primitives, then lane primitives.
func (m *YOLOP) Detect(outputs *visionpost.Outputs,
	scales []preprocess.ScaleInfo) (Results, error) {

	if outputs == nil || len(outputs.Output) != 3 {
		return nil, fmt.Errorf("%w: want 3 output tensors for multi-task decode",
			visionpost.ErrTensorShape)
	}

	detOut := outputs.Output[0]
	drvOut := outputs.Output[1]
	laneOut := outputs.Output[2]

	for i, out := range outputs.Output {
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	stride, err := m.det.boxStride(detOut)

	if err != nil {
		return nil, err
	}

	drvC, drvH, drvW, err := taskShape(drvOut)

	if err != nil {
		return nil, fmt.Errorf("drivable head: %w", err)
	}

	laneC, laneH, laneW, err := taskShape(laneOut)

	if err != nil {
		return nil, fmt.Errorf("lane head: %w", err)
	}

	detLayout, err := visionpost.NewBatch(detOut)

	if err != nil {
		return nil, err
	}

	drvLayout, err := visionpost.NewBatch(drvOut)

	if err != nil {
		return nil, err
	}

	laneLayout, err := visionpost.NewBatch(laneOut)

	if err != nil {
		return nil, err
	}

	batch := detLayout.Size()

	if drvLayout.Size() != batch || laneLayout.Size() != batch ||
		len(scales) != batch {
		return nil, fmt.Errorf("%w: heads disagree on batch size or scale records",
			visionpost.ErrBatchMismatch)
	}

	results := make(Results, batch)

	m.pool.Each(batch, func(idx int) {

		s := scales[idx]

		detBuf, err := detLayout.Image(detOut.BufFloat, idx)

		if err != nil {
			return
		}

		drvBuf, err := drvLayout.Image(drvOut.BufFloat, idx)

		if err != nil {
			return
		}

		laneBuf, err := laneLayout.Image(laneOut.BufFloat, idx)

		if err != nil {
			return
		}

		// the three heads are independent, decode them concurrently and
		// merge in fixed order
		var yDet, yDrv, yLane Y
		var wg sync.WaitGroup
		wg.Add(3)

		go func() {
			defer wg.Done()
			yDet = m.det.decodeImage(detBuf, stride, s)
		}()

		go func() {
			defer wg.Done()
			yDrv = m.decodeTask(m.drivable, drvBuf, drvC, drvW, drvH,
				drvOut.Fmt, s)
		}()

		go func() {
			defer wg.Done()
			yLane = m.decodeTask(m.lane, laneBuf, laneC, laneW, laneH,
				laneOut.Fmt, s)
		}()

		wg.Wait()

		y := yDet
		y.Merge(yDrv)
		y.Merge(yLane)

		results[idx] = y
	})

	return results, nil
}

// decodeTask runs one segmentation head for one image.  Two channel heads
// are reduced to a foreground mask by channel argmax before the shared
// contour and refinement path.  Channels-first heads carry the two planes
// back to back, channels-last heads interleave them per pixel.
func (m *YOLOP) decodeTask(d *DB, buf []float32, channels, w, h int,
	format visionpost.TensorFormat, s preprocess.ScaleInfo) Y {

	if channels == 1 {
		return d.decodeImage(buf, w, h, s)
	}

	hw := w * h

	mask := d.bufPool.Get(bufMask, hw)
	defer d.bufPool.Put(bufMask, mask)

	if format == visionpost.TensorNHWC {
		argmaxMaskInterleaved(buf[:2*hw], mask)
	} else {
		argmaxMask(buf[:hw], buf[hw:2*hw], mask)
	}

	return d.decodeMask(mask, w, h, s)
}
