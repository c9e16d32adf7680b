package postprocess

// Box is an axis aligned bounding box in original image pixel space
type Box struct {
	// X and Y are the top left corner coordinates
	X float32
	Y float32
	// W and H are the box width and height, always >= 0
	W float32
	H float32
	// Conf is the confidence score in [0,1]
	Conf float32
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// ID is a unique ID assigned to the detection result
	ID int64
}

// Right returns the x coordinate of the right edge
func (b Box) Right() float32 {
	return b.X + b.W
}

// Bottom returns the y coordinate of the bottom edge
func (b Box) Bottom() float32 {
	return b.Y + b.H
}

// Area returns the box area
func (b Box) Area() float32 {
	return b.W * b.H
}

// RotatedBox is a minimum area enclosing rectangle at arbitrary orientation,
// derived from the Polygon that produced it
type RotatedBox struct {
	// CX and CY are the center coordinates
	CX float32
	CY float32
	// W and H are the rectangle side lengths
	W float32
	H float32
	// Angle is the rotation in degrees
	Angle float32
	// Conf is the confidence score in [0,1]
	Conf float32
	// Class of the detected object
	Class int
	// ID is a unique ID assigned to the detection result
	ID int64
}

// KeyPoint is a single landmark location with a visibility/confidence score
type KeyPoint struct {
	X    float32
	Y    float32
	Conf float32
	// Class identifies which landmark this is, eg: the COCO keypoint index
	Class int
}

// SegMask is a single channel byte mask at original image resolution, zero
// for background and non zero for the detected region
type SegMask struct {
	Mask   []uint8
	Width  int
	Height int
	// Class of the region the mask covers
	Class int
}

// Y is the decode result for one input image.  Each slice holds zero or more
// primitives in the order the producing decoder emitted them, which follows
// contour extraction order for segmentation outputs and confidence descending
// order after NMS for detection outputs.
type Y struct {
	Boxes        []Box
	Polygons     []Polygon
	RotatedBoxes []RotatedBox
	KeyPoints    [][]KeyPoint
	Masks        []SegMask
}

// Merge appends all primitives from o onto y, preserving the order of both
func (y *Y) Merge(o Y) {
	y.Boxes = append(y.Boxes, o.Boxes...)
	y.Polygons = append(y.Polygons, o.Polygons...)
	y.RotatedBoxes = append(y.RotatedBoxes, o.RotatedBoxes...)
	y.KeyPoints = append(y.KeyPoints, o.KeyPoints...)
	y.Masks = append(y.Masks, o.Masks...)
}

// Empty returns true when the record holds no primitives of any kind
func (y Y) Empty() bool {
	return len(y.Boxes) == 0 && len(y.Polygons) == 0 &&
		len(y.RotatedBoxes) == 0 && len(y.KeyPoints) == 0 && len(y.Masks) == 0
}

// Results holds one Y record per input image, index aligned with the batch
// the output tensors were produced from
type Results []Y
