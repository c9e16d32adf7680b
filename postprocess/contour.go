package postprocess

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"

	"github.com/visionpost/go-visionpost/preprocess"
)

// BorderType classifies a contour as an outer region boundary or the
// boundary of a hole inside a region
type BorderType int

const (
	BorderOuter BorderType = iota
	BorderHole
)

// Contour is a closed ordered boundary of a connected region in a binary
// mask, with points in integer pixel coordinates
type Contour struct {
	Points []image.Point
	Border BorderType
}

// Interpolation selects the filter used when upscaling masks from model
// output resolution to original image resolution
type Interpolation int

const (
	InterpBilinear Interpolation = iota
	InterpNearest
)

// scaler returns the x/image scaler implementing the interpolation
func (i Interpolation) scaler() draw.Scaler {

	if i == InterpNearest {
		return draw.NearestNeighbor
	}

	return draw.BiLinear
}

// upscaleMask takes a binary mask at model input resolution, drops the
// letterbox padding, and scales the remaining content to the original image
// resolution recorded in the scale descriptor
func upscaleMask(mask []uint8, modelW, modelH int, s preprocess.ScaleInfo,
	interp Interpolation) (*image.Gray, error) {

	if len(mask) != modelW*modelH {
		return nil, fmt.Errorf("mask buffer is %d bytes, want %d",
			len(mask), modelW*modelH)
	}

	contentW := int(float32(s.SrcWidth) * s.Scale)
	contentH := int(float32(s.SrcHeight) * s.Scale)

	if contentW <= 0 || contentH <= 0 ||
		s.XPad+contentW > modelW || s.YPad+contentH > modelH {
		return nil, fmt.Errorf("scale record places content outside %dx%d model input",
			modelW, modelH)
	}

	src := &image.Gray{
		Pix:    mask,
		Stride: modelW,
		Rect:   image.Rect(0, 0, modelW, modelH),
	}

	content := image.Rect(s.XPad, s.YPad, s.XPad+contentW, s.YPad+contentH)
	dst := image.NewGray(image.Rect(0, 0, s.SrcWidth, s.SrcHeight))

	interp.scaler().Scale(dst, dst.Bounds(), src, content, draw.Src, nil)

	return dst, nil
}

// findContours extracts the region boundaries from a binary mask image and
// classifies each as an outer boundary or hole.  Holes with two or fewer
// points are degenerate and discarded here, all other filtering is left to
// the refinement stage.
func findContours(img *image.Gray) ([]Contour, error) {

	mat, err := gocv.ImageGrayToMatGray(img)

	if err != nil {
		return nil, fmt.Errorf("error creating Mat from mask: %w", err)
	}

	defer mat.Close()

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	pv := gocv.FindContoursWithParams(mat, &hierarchy,
		gocv.RetrievalCComp, gocv.ChainApproxSimple)
	defer pv.Close()

	contours := make([]Contour, 0, pv.Size())

	for i := 0; i < pv.Size(); i++ {

		border := BorderOuter

		if hierarchy.Cols() > i {
			// with RetrievalCComp any contour with a parent is a hole
			if parent := hierarchy.GetVeciAt(0, i)[3]; parent >= 0 {
				border = BorderHole
			}
		}

		pts := pv.At(i).ToPoints()

		if border == BorderHole && len(pts) <= 2 {
			continue
		}

		contours = append(contours, Contour{
			Points: pts,
			Border: border,
		})
	}

	return contours, nil
}
