package postprocess

import (
	"image"
	"math"
	"sort"

	clipper "github.com/ctessum/go.clipper"
	"gonum.org/v1/gonum/floats"
)

// Point is a single coordinate in image pixel space
type Point struct {
	X float64
	Y float64
}

// Polygon is a closed ordered sequence of points, the edge from the last
// point back to the first is implied.  All operations are value semantics and
// return a new Polygon, the receiver is never mutated, so Polygons may be
// processed freely across parallel decode workers.
type Polygon struct {
	Points []Point
	// Class of the region the polygon outlines
	Class int
}

// NewPolygon builds a polygon from the given points
func NewPolygon(points []Point, class int) Polygon {
	return Polygon{
		Points: points,
		Class:  class,
	}
}

// PolygonFromInts builds a polygon from integer contour points
func PolygonFromInts(pts []image.Point, class int) Polygon {

	points := make([]Point, len(pts))

	for i, pt := range pts {
		points[i] = Point{X: float64(pt.X), Y: float64(pt.Y)}
	}

	return NewPolygon(points, class)
}

// signedArea is the shoelace sum over the closed boundary, positive for
// counter clockwise winding
func (p Polygon) signedArea() float64 {

	n := len(p.Points)

	if n < 3 {
		return 0
	}

	area := 0.0

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += p.Points[i].X*p.Points[j].Y - p.Points[j].X*p.Points[i].Y
	}

	return area / 2.0
}

// Area returns the enclosed area of the polygon
func (p Polygon) Area() float64 {
	return math.Abs(p.signedArea())
}

// Perimeter returns the total boundary length including the closing edge
func (p Polygon) Perimeter() float64 {

	n := len(p.Points)

	if n < 2 {
		return 0
	}

	dist := 0.0

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		dist += math.Hypot(p.Points[j].X-p.Points[i].X,
			p.Points[j].Y-p.Points[i].Y)
	}

	return dist
}

// BoundingBox returns the axis aligned bounding box of the polygon.  The
// returned Box carries the polygon's class but no confidence, callers
// recompute confidence from the polygon/box areas.
func (p Polygon) BoundingBox() Box {

	if len(p.Points) == 0 {
		return Box{Class: p.Class}
	}

	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))

	for i, pt := range p.Points {
		xs[i] = pt.X
		ys[i] = pt.Y
	}

	xmin, xmax := floats.Min(xs), floats.Max(xs)
	ymin, ymax := floats.Min(ys), floats.Max(ys)

	return Box{
		X:     float32(xmin),
		Y:     float32(ymin),
		W:     float32(xmax - xmin),
		H:     float32(ymax - ymin),
		Class: p.Class,
	}
}

// Valid reports whether the polygon has at least 3 distinct vertices and a
// positive area.  Polygons failing this after refinement are dropped.
func (p Polygon) Valid() bool {

	if len(p.Points) < 3 {
		return false
	}

	distinct := 0
	seen := make(map[Point]struct{}, len(p.Points))

	for _, pt := range p.Points {
		if _, ok := seen[pt]; !ok {
			seen[pt] = struct{}{}
			distinct++
		}
	}

	return distinct >= 3 && p.Area() > 0
}

// Unclip expands the polygon boundary outward by delta pixels to compensate
// for the systematic boundary erosion of segmentation model outputs.  The
// result is clamped to [0,maxW] x [0,maxH].  An empty polygon is returned
// when the offset produces no usable boundary.
func (p Polygon) Unclip(delta, maxW, maxH float64) Polygon {

	if len(p.Points) < 3 {
		return Polygon{Class: p.Class}
	}

	var path clipper.Path

	for _, pt := range p.Points {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(math.Round(pt.X)),
			Y: clipper.CInt(math.Round(pt.Y)),
		})
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	solution := co.Execute(delta)

	if len(solution) == 0 {
		return Polygon{Class: p.Class}
	}

	// offsetting can split the boundary into multiple paths, keep the largest
	best := 0
	bestArea := math.Inf(-1)

	for i, sol := range solution {
		points := make([]Point, len(sol))
		for j, pt := range sol {
			points[j] = Point{X: float64(pt.X), Y: float64(pt.Y)}
		}
		if a := NewPolygon(points, p.Class).Area(); a > bestArea {
			bestArea = a
			best = i
		}
	}

	points := make([]Point, len(solution[best]))

	for j, pt := range solution[best] {
		points[j] = Point{
			X: clampFloat(float64(pt.X), 0, maxW),
			Y: clampFloat(float64(pt.Y), 0, maxH),
		}
	}

	return NewPolygon(points, p.Class)
}

// Resample redistributes the boundary into n vertices spaced at uniform arc
// length, giving downstream consumers a stable vertex count regardless of raw
// contour complexity
func (p Polygon) Resample(n int) Polygon {

	if n < 3 || len(p.Points) < 3 {
		return Polygon{Class: p.Class}
	}

	per := p.Perimeter()

	if per <= 0 {
		return Polygon{Class: p.Class}
	}

	step := per / float64(n)
	points := make([]Point, 0, n)

	// walk the closed boundary emitting a vertex every step pixels
	edge := 0
	edgeStart := p.Points[0]
	edgeEnd := p.Points[1%len(p.Points)]
	edgeLen := math.Hypot(edgeEnd.X-edgeStart.X, edgeEnd.Y-edgeStart.Y)
	walked := 0.0

	for k := 0; k < n; k++ {
		target := float64(k) * step

		for walked+edgeLen < target && edge < len(p.Points) {
			walked += edgeLen
			edge++
			edgeStart = p.Points[edge%len(p.Points)]
			edgeEnd = p.Points[(edge+1)%len(p.Points)]
			edgeLen = math.Hypot(edgeEnd.X-edgeStart.X, edgeEnd.Y-edgeStart.Y)
		}

		t := 0.0

		if edgeLen > 0 {
			t = (target - walked) / edgeLen
		}

		points = append(points, Point{
			X: edgeStart.X + (edgeEnd.X-edgeStart.X)*t,
			Y: edgeStart.Y + (edgeEnd.Y-edgeStart.Y)*t,
		})
	}

	return NewPolygon(points, p.Class)
}

// ConvexHull replaces the polygon with its convex hull using the monotone
// chain construction.  Raw unclip and resample can introduce local concavity
// artifacts that the hull removes.
func (p Polygon) ConvexHull() Polygon {

	if len(p.Points) < 3 {
		return Polygon{Points: append([]Point(nil), p.Points...), Class: p.Class}
	}

	pts := append([]Point(nil), p.Points...)

	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	// drop duplicates so collinear handling stays simple
	uniq := pts[:1]

	for _, pt := range pts[1:] {
		if pt != uniq[len(uniq)-1] {
			uniq = append(uniq, pt)
		}
	}

	if len(uniq) < 3 {
		return NewPolygon(uniq, p.Class)
	}

	cross := func(o, a, b Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower, upper []Point

	for _, pt := range uniq {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}

	for i := len(uniq) - 1; i >= 0; i-- {
		pt := uniq[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)

	return NewPolygon(hull, p.Class)
}

// MinAreaRect computes the minimum area enclosing rectangle of the polygon
// using rotating calipers over its convex hull.  Returns false when the
// polygon is degenerate.
func (p Polygon) MinAreaRect() (RotatedBox, bool) {

	hull := p.ConvexHull()

	if len(hull.Points) < 3 {
		return RotatedBox{}, false
	}

	pts := hull.Points
	bestArea := math.Inf(1)
	var best RotatedBox

	for i := 0; i < len(pts); i++ {
		j := (i + 1) % len(pts)

		dx := pts[j].X - pts[i].X
		dy := pts[j].Y - pts[i].Y
		length := math.Hypot(dx, dy)

		if length == 0 {
			continue
		}

		cos := dx / length
		sin := dy / length

		// project every hull point onto the edge direction and its normal
		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)

		for _, pt := range pts {
			u := pt.X*cos + pt.Y*sin
			v := -pt.X*sin + pt.Y*cos

			minU = math.Min(minU, u)
			maxU = math.Max(maxU, u)
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}

		w := maxU - minU
		h := maxV - minV
		area := w * h

		if area < bestArea {
			bestArea = area

			midU := (minU + maxU) / 2
			midV := (minV + maxV) / 2

			best = RotatedBox{
				CX:    float32(midU*cos - midV*sin),
				CY:    float32(midU*sin + midV*cos),
				W:     float32(w),
				H:     float32(h),
				Angle: float32(math.Atan2(sin, cos) * 180 / math.Pi),
				Class: p.Class,
			}
		}
	}

	if math.IsInf(bestArea, 1) {
		return RotatedBox{}, false
	}

	return best, true
}

// clampFloat restricts a value between a minimum and maximum
func clampFloat(x, min, max float64) float64 {

	if x < min {
		return min
	} else if x > max {
		return max
	}

	return x
}
