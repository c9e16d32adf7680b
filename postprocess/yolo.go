package postprocess

import (
	"fmt"

	"go.uber.org/zap"

	visionpost "github.com/visionpost/go-visionpost"
	"github.com/visionpost/go-visionpost/logger"
	"github.com/visionpost/go-visionpost/postprocess/result"
	"github.com/visionpost/go-visionpost/preprocess"
)

// YOLOParams defines the parameters for the YOLO family detection post
// processor
type YOLOParams struct {
	// ObjectClassNum is the number of different object classes the Model
	// has been trained with
	ObjectClassNum int
	// NMSThreshold is the Non-Maximum Suppression threshold used for
	// defining the maximum allowed Intersection Over Union (IoU) between
	// two bounding boxes for both to be kept
	NMSThreshold float32
	// MaxObjectNumber is the maximum number of objects detected that can
	// be returned
	MaxObjectNumber int
	// Activate applies the sigmoid function to objectness and class scores
	// for models exported without final activation
	Activate bool
	// Logger receives debug output, defaults to a nop logger
	Logger *zap.Logger
}

// YOLOCOCOParams returns an instance of YOLOParams configured with default
// values for a Model trained on the COCO dataset featuring:
// - Object Classes: 80
// - NMS Threshold: 0.45
// - Maximum Object Number: 64
func YOLOCOCOParams() YOLOParams {
	return YOLOParams{
		ObjectClassNum:  80,
		NMSThreshold:    0.45,
		MaxObjectNumber: 64,
	}
}

// YOLO is the post processor for anchor/grid detection outputs.  It consumes
// a tensor of per anchor box regression and class scores with shape
// [batch, anchors, 5+classes] where each anchor holds the box center x and y,
// width, height, objectness, then one score per class, all in model input
// pixel space.
type YOLO struct {
	// Params are the Model configuration parameters
	Params YOLOParams
	// confs holds the per class confidence thresholds
	confs ConfTable
	// pool fans decoding out across CPU workers
	pool *visionpost.Pool
	// idGen provides the next ID number for each detection result
	idGen *result.IDGenerator
	log   *zap.Logger
}

// NewYOLO returns an instance of the YOLO post processor
func NewYOLO(p YOLOParams, confs ConfTable, pool *visionpost.Pool) (*YOLO, error) {

	if p.ObjectClassNum < 1 {
		return nil, fmt.Errorf("object class number %d below 1", p.ObjectClassNum)
	}

	if p.NMSThreshold <= 0 || p.NMSThreshold > 1 {
		return nil, fmt.Errorf("NMS threshold %f outside (0,1]", p.NMSThreshold)
	}

	if p.MaxObjectNumber < 1 {
		return nil, fmt.Errorf("maximum object number %d below 1",
			p.MaxObjectNumber)
	}

	if p.Logger == nil {
		p.Logger = logger.Nop()
	}

	if pool == nil {
		pool = visionpost.NewPool(0)
	}

	return &YOLO{
		Params: p,
		confs:  confs,
		pool:   pool,
		idGen:  result.NewIDGenerator(),
		log:    p.Logger,
	}, nil
}

// boxStride returns the per anchor element count and validates the tensor
// shape against the configured class count
func (y *YOLO) boxStride(out visionpost.Output) (int, error) {

	if out.Rank() != 3 {
		return 0, fmt.Errorf("%w: detection tensor has rank %d, want 3",
			visionpost.ErrTensorShape, out.Rank())
	}

	stride := int(out.Dims[2])

	if stride != 5+y.Params.ObjectClassNum {
		return 0, fmt.Errorf("%w: anchor stride %d, want %d for %d classes",
			visionpost.ErrTensorShape, stride, 5+y.Params.ObjectClassNum,
			y.Params.ObjectClassNum)
	}

	return stride, nil
}

// DetectObjects takes the model outputs and runs the object detection
// process, returning one result record per image in the batch, index aligned
// with the input batch
func (y *YOLO) DetectObjects(outputs *visionpost.Outputs,
	scales []preprocess.ScaleInfo) (Results, error) {

	if outputs == nil || len(outputs.Output) == 0 {
		return nil, fmt.Errorf("%w: no output tensors",
			visionpost.ErrTensorShape)
	}

	out := outputs.Output[0]

	if err := out.Validate(); err != nil {
		return nil, err
	}

	stride, err := y.boxStride(out)

	if err != nil {
		return nil, err
	}

	layout, err := visionpost.NewBatch(out)

	if err != nil {
		return nil, err
	}

	if layout.Size() != len(scales) {
		return nil, fmt.Errorf("%w: %d images in batch, %d scale records",
			visionpost.ErrBatchMismatch, layout.Size(), len(scales))
	}

	results := make(Results, layout.Size())

	y.pool.Each(layout.Size(), func(idx int) {
		buf, err := layout.Image(out.BufFloat, idx)

		if err != nil {
			return
		}

		results[idx] = y.decodeImage(buf, stride, scales[idx])
	})

	return results, nil
}

// decodeImage filters the anchors of a single image by the per class
// confidence table, converts regression outputs to boxes in original image
// space, and applies class aware NMS
func (y *YOLO) decodeImage(buf []float32, stride int,
	s preprocess.ScaleInfo) Y {

	candidates := make([]Box, 0, 64)

	for a := 0; a+stride <= len(buf); a += stride {

		objConf := buf[a+4]

		if y.Params.Activate {
			objConf = sigmoid(objConf)
		}

		// best scoring class for this anchor
		classID := 0
		classScore := float32(0)

		for c := 0; c < y.Params.ObjectClassNum; c++ {
			score := buf[a+5+c]

			if y.Params.Activate {
				score = sigmoid(score)
			}

			if score > classScore {
				classScore = score
				classID = c
			}
		}

		conf := objConf * classScore

		if conf < y.confs.At(classID) {
			continue
		}

		cx, cy := buf[a+0], buf[a+1]
		w, h := buf[a+2], buf[a+3]

		// model input space corners, inverted and clamped to the original
		// image at the bounding box stage
		x1, y1, x2, y2 := s.InvertBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2)

		if x2 <= x1 || y2 <= y1 {
			continue
		}

		candidates = append(candidates, Box{
			X:     x1,
			Y:     y1,
			W:     x2 - x1,
			H:     y2 - y1,
			Conf:  conf,
			Class: classID,
		})
	}

	kept := NMSBoxes(candidates, y.Params.NMSThreshold)

	if len(kept) > y.Params.MaxObjectNumber {
		kept = kept[:y.Params.MaxObjectNumber]
	}

	for i := range kept {
		kept[i].ID = y.idGen.GetNext()
	}

	y.log.Debug("decoded detection output",
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(kept)))

	return Y{Boxes: kept}
}
