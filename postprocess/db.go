package postprocess

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"go.uber.org/zap"

	visionpost "github.com/visionpost/go-visionpost"
	"github.com/visionpost/go-visionpost/logger"
	"github.com/visionpost/go-visionpost/postprocess/result"
	"github.com/visionpost/go-visionpost/preprocess"
)

const (
	// MaxContours caps the number of contours processed per image
	MaxContours = 1000

	// bufMask is the buffer pool name for model resolution masks
	bufMask = "mask"
)

// DBParams defines the parameters for the DB post processor.  Zero values
// are replaced by the defaults documented on each field, see DBDefaultParams.
type DBParams struct {
	// BinaryThresh is the probability cutoff for a pixel to count as
	// foreground when binarizing the probability map, default 0.2
	BinaryThresh float32
	// UnclipRatio scales the outward dilation applied to each detected
	// polygon to compensate for boundary erosion, default 1.5
	UnclipRatio float32
	// MinWidth is the rejection floor for bounding box width, default 12
	MinWidth float32
	// MinHeight is the rejection floor for bounding box height, default 5
	MinHeight float32
	// ResampleVertices is the vertex count polygons are resampled to,
	// default 50
	ResampleVertices int
	// Interpolation selects the mask upscale filter
	Interpolation Interpolation
	// Class is the class id assigned to every primitive this decoder
	// produces
	Class int
	// KeepMask includes the upscaled binary mask in each result record
	KeepMask bool
	// Logger receives debug output, defaults to a nop logger
	Logger *zap.Logger
}

// DBDefaultParams returns an instance of DBParams configured with the
// defaults used by DB text detection models:
// - Binary Threshold: 0.2
// - Unclip Ratio: 1.5
// - Minimum Width: 12.0
// - Minimum Height: 5.0
// - Resample Vertices: 50
// - Interpolation: bilinear
func DBDefaultParams() DBParams {
	return DBParams{
		BinaryThresh:     0.2,
		UnclipRatio:      1.5,
		MinWidth:         12.0,
		MinHeight:        5.0,
		ResampleVertices: 50,
		Interpolation:    InterpBilinear,
	}
}

// DB is the post processor for binary segmentation models such as DB text
// detection.  It turns a per pixel probability map into polygons, their
// bounding boxes, and minimum area rotated boxes in original image space.
type DB struct {
	// Params are the Model configuration parameters
	Params DBParams
	// confs holds the per class confidence thresholds
	confs ConfTable
	// pool fans decoding out across CPU workers
	pool *visionpost.Pool
	// idGen provides the next ID number for each detection result
	idGen *result.IDGenerator
	// bufPool reuses mask buffers across decode calls
	bufPool *bufferPool
	log     *zap.Logger
}

// NewDB returns an instance of the DB post processor.  Parameters are
// validated up front, an error here means the configuration can never
// produce usable results.
func NewDB(p DBParams, confs ConfTable, pool *visionpost.Pool) (*DB, error) {

	def := DBDefaultParams()

	if p.BinaryThresh == 0 {
		p.BinaryThresh = def.BinaryThresh
	}

	if p.UnclipRatio == 0 {
		p.UnclipRatio = def.UnclipRatio
	}

	if p.MinWidth == 0 {
		p.MinWidth = def.MinWidth
	}

	if p.MinHeight == 0 {
		p.MinHeight = def.MinHeight
	}

	if p.ResampleVertices == 0 {
		p.ResampleVertices = def.ResampleVertices
	}

	if p.BinaryThresh < 0 || p.BinaryThresh >= 1 {
		return nil, fmt.Errorf("binary threshold %f outside [0,1)", p.BinaryThresh)
	}

	if p.UnclipRatio < 0 {
		return nil, fmt.Errorf("unclip ratio %f is negative", p.UnclipRatio)
	}

	if p.MinWidth < 0 || p.MinHeight < 0 {
		return nil, fmt.Errorf("minimum box size %fx%f is negative",
			p.MinWidth, p.MinHeight)
	}

	if p.ResampleVertices < 3 {
		return nil, fmt.Errorf("resample target %d below 3 vertices",
			p.ResampleVertices)
	}

	if p.Logger == nil {
		p.Logger = logger.Nop()
	}

	if pool == nil {
		pool = visionpost.NewPool(0)
	}

	return &DB{
		Params:  p,
		confs:   confs,
		pool:    pool,
		idGen:   result.NewIDGenerator(),
		bufPool: newBufferPool(),
		log:     p.Logger,
	}, nil
}

// maskShape extracts the model output height and width from a probability
// map tensor of shape [batch, H, W] or [batch, 1, H, W]
func maskShape(out visionpost.Output) (h, w int, err error) {

	switch out.Rank() {
	case 3:
		return int(out.Dims[1]), int(out.Dims[2]), nil
	case 4:
		if out.Fmt == visionpost.TensorNHWC {
			if out.Dims[3] != 1 {
				return 0, 0, fmt.Errorf("%w: probability map has %d channels",
					visionpost.ErrTensorShape, out.Dims[3])
			}
			return int(out.Dims[1]), int(out.Dims[2]), nil
		}
		if out.Dims[1] != 1 {
			return 0, 0, fmt.Errorf("%w: probability map has %d channels",
				visionpost.ErrTensorShape, out.Dims[1])
		}
		return int(out.Dims[2]), int(out.Dims[3]), nil
	default:
		return 0, 0, fmt.Errorf("%w: probability map has rank %d, want 3 or 4",
			visionpost.ErrTensorShape, out.Rank())
	}
}

// Detect takes the model output probability maps and converts them to
// polygons, bounding boxes and rotated boxes for each region detected, one
// result record per image in the batch.  The returned results are index
// aligned with the input batch.
func (d *DB) Detect(outputs *visionpost.Outputs,
	scales []preprocess.ScaleInfo) (Results, error) {

	if outputs == nil || len(outputs.Output) == 0 {
		return nil, fmt.Errorf("%w: no output tensors",
			visionpost.ErrTensorShape)
	}

	out := outputs.Output[0]

	if err := out.Validate(); err != nil {
		return nil, err
	}

	modelH, modelW, err := maskShape(out)

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

	d.pool.Each(layout.Size(), func(idx int) {
		probs, err := layout.Image(out.BufFloat, idx)

		if err != nil {
			// validated above, leave the record empty
			return
		}

		results[idx] = d.decodeImage(probs, modelW, modelH, scales[idx])
	})

	return results, nil
}

// decodeImage runs the full decode and refine pipeline for a single image:
// binarize, upscale to original resolution, extract contours, and refine
// each contour into validated primitives
func (d *DB) decodeImage(probs []float32, modelW, modelH int,
	s preprocess.ScaleInfo) Y {

	mask := d.bufPool.Get(bufMask, modelW*modelH)
	defer d.bufPool.Put(bufMask, mask)

	binarize(probs, d.Params.BinaryThresh, modelW, modelH, mask)

	return d.decodeMask(mask, modelW, modelH, s)
}

// decodeMask decodes an already binarized mask at model resolution
func (d *DB) decodeMask(mask []uint8, modelW, modelH int,
	s preprocess.ScaleInfo) Y {

	scaled, err := upscaleMask(mask, modelW, modelH, s, d.Params.Interpolation)

	if err != nil {
		d.log.Debug("dropping image, mask upscale failed", zap.Error(err))
		return Y{}
	}

	contours, err := findContours(scaled)

	if err != nil {
		d.log.Debug("dropping image, contour extraction failed", zap.Error(err))
		return Y{}
	}

	if len(contours) > MaxContours {
		contours = contours[:MaxContours]
	}

	// refine contours in parallel, writing into per index slots so the
	// output keeps contour extraction order
	candidates := make([]dbCandidate, len(contours))

	numWorkers := minInt(runtime.NumCPU(), len(contours))

	if numWorkers > 1 {
		var wg sync.WaitGroup
		wg.Add(numWorkers)

		for w := 0; w < numWorkers; w++ {
			go func(w int) {
				defer wg.Done()

				for i := w; i < len(contours); i += numWorkers {
					candidates[i] = d.refineContour(contours[i], s)
				}
			}(w)
		}

		wg.Wait()
	} else {
		for i := range contours {
			candidates[i] = d.refineContour(contours[i], s)
		}
	}

	y := Y{}

	for _, c := range candidates {
		if !c.ok {
			continue
		}

		y.Polygons = append(y.Polygons, c.poly)
		y.Boxes = append(y.Boxes, c.box)

		if c.hasMBR {
			y.RotatedBoxes = append(y.RotatedBoxes, c.mbr)
		}
	}

	if d.Params.KeepMask {
		y.Masks = append(y.Masks, SegMask{
			Mask:   scaled.Pix,
			Width:  s.SrcWidth,
			Height: s.SrcHeight,
			Class:  d.Params.Class,
		})
	}

	d.log.Debug("decoded segmentation output",
		zap.Int("contours", len(contours)),
		zap.Int("accepted", len(y.Boxes)))

	return y
}

// dbCandidate holds the primitives refined from one contour
type dbCandidate struct {
	poly   Polygon
	box    Box
	mbr    RotatedBox
	hasMBR bool
	ok     bool
}

// refineContour applies the refinement pipeline to one contour: unclip,
// resample, convex hull, verify.  Confidence is recomputed as the fill ratio
// of the polygon inside its bounding box, not inherited from any upstream
// score.  Returns ok false for candidates rejected at any stage.
func (d *DB) refineContour(contour Contour, s preprocess.ScaleInfo) dbCandidate {

	poly := PolygonFromInts(contour.Points, d.Params.Class)

	per := poly.Perimeter()

	if per <= 0 {
		return dbCandidate{}
	}

	// the scale ratio is snapped to the nearest integer, so sub 0.5 scales
	// contribute no dilation
	delta := poly.Area() * math.Round(float64(s.Scale)) *
		float64(d.Params.UnclipRatio) / per

	poly = poly.
		Unclip(delta, float64(s.SrcWidth), float64(s.SrcHeight)).
		Resample(d.Params.ResampleVertices).
		ConvexHull()

	if !poly.Valid() {
		return dbCandidate{}
	}

	box := poly.BoundingBox()
	box = clampBox(box, float32(s.SrcWidth), float32(s.SrcHeight))

	if box.W < d.Params.MinWidth || box.H < d.Params.MinHeight {
		return dbCandidate{}
	}

	bboxArea := float64(box.W) * float64(box.H)

	if bboxArea <= 0 {
		return dbCandidate{}
	}

	conf := float32(poly.Area() / bboxArea)

	if conf < d.confs.At(0) {
		return dbCandidate{}
	}

	box.Conf = conf
	box.ID = d.idGen.GetNext()

	c := dbCandidate{
		poly: poly,
		box:  box,
		ok:   true,
	}

	// the rotated box shares the ID of the box derived from the same polygon
	if mbr, ok := poly.MinAreaRect(); ok {
		mbr.Conf = conf
		mbr.ID = box.ID
		c.mbr = mbr
		c.hasMBR = true
	}

	return c
}

// clampBox restricts box corners to [0,w] x [0,h]
func clampBox(b Box, w, h float32) Box {

	x1 := clampF32(b.X, 0, w)
	y1 := clampF32(b.Y, 0, h)
	x2 := clampF32(b.Right(), 0, w)
	y2 := clampF32(b.Bottom(), 0, h)

	b.X = x1
	b.Y = y1
	b.W = x2 - x1
	b.H = y2 - y1

	return b
}
