package preprocess

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// ScaleInfo records how a single image was resized into the model input
// dimensions.  It is created at preprocessing time and consumed read-only by
// the decode pipeline to map model space coordinates back into the original
// image space.
type ScaleInfo struct {
	// SrcWidth is the width of the original image
	SrcWidth int
	// SrcHeight is the height of the original image
	SrcHeight int
	// Scale is the uniform scale factor applied to both axes when resizing
	// the original image into the model input
	Scale float32
	// XPad is the letterbox padding added to the left edge
	XPad int
	// YPad is the letterbox padding added to the top edge
	YPad int
}

// InvertPoint maps a point in model input pixel space back to original image
// pixel space.  The result is not clamped to the image bounds, clamping only
// happens at the final bounding box stage so polygon shapes are not corrupted
// mid refinement.
func (s ScaleInfo) InvertPoint(x, y float32) (float32, float32) {
	return (x - float32(s.XPad)) / s.Scale, (y - float32(s.YPad)) / s.Scale
}

// InvertBox maps a box given as corner coordinates in model input pixel
// space back to original image pixel space, clamped to the image bounds
func (s ScaleInfo) InvertBox(x1, y1, x2, y2 float32) (float32, float32, float32, float32) {

	x1, y1 = s.InvertPoint(x1, y1)
	x2, y2 = s.InvertPoint(x2, y2)

	return clampF32(x1, 0, float32(s.SrcWidth)),
		clampF32(y1, 0, float32(s.SrcHeight)),
		clampF32(x2, 0, float32(s.SrcWidth)),
		clampF32(y2, 0, float32(s.SrcHeight))
}

// clampF32 restricts a value between a minimum and maximum
func clampF32(x, min, max float32) float32 {

	if x < min {
		return min
	} else if x > max {
		return max
	}

	return x
}

// Resizer defines the struct used for handling image resizing
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	// precalculate scaling dimensions
	r.preCalc()

	return r
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// preCalc the scaling factors for source and destination Mats
func (r *Resizer) preCalc() {

	r.resizeW = r.destWidth
	r.resizeH = r.destHeight

	scaleW := float32(r.destWidth) / float32(r.srcWidth)
	scaleH := float32(r.destHeight) / float32(r.srcHeight)
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.resizeH = int(float32(r.srcHeight) * r.scale)
	} else {
		r.resizeW = int(float32(r.srcWidth) * r.scale)
	}

	r.yPad = (r.destHeight - r.resizeH) / 2 // padding height / 2
	r.xPad = (r.destWidth - r.resizeW) / 2  // padding width / 2
}

// LetterBoxResize resizes the input image to the dimensions needed for the
// input tensor size whilst maintaining image aspect.  Color is that used for
// letter box padding.
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.yPad, r.destHeight-r.resizeH-r.yPad,
		r.xPad, r.destWidth-r.resizeW-r.xPad, gocv.BorderConstant, color)
}

// ScaleInfo returns the scale record for the image this resizer was
// constructed for, consumed by the decode pipeline
func (r *Resizer) ScaleInfo() ScaleInfo {
	return ScaleInfo{
		SrcWidth:  r.srcWidth,
		SrcHeight: r.srcHeight,
		Scale:     r.scale,
		XPad:      r.xPad,
		YPad:      r.yPad,
	}
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}
