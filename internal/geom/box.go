package geom

import (
	"fmt"
	"math"
)

// MinAngle and MaxAngle bound the sonar fan in radians (±60 degrees).
var (
	MinAngle = -60.0 * math.Pi / 180.0
	MaxAngle = 60.0 * math.Pi / 180.0
)

// ImageSize is the pixel size of a sonar frame.
type ImageSize struct {
	Width  int
	Height int
}

// BearBox is a bounding box in sonar coordinates: bearings in radians,
// distances in metres. It carries the sonar range at capture time so it can
// be projected into pixel coordinates later.
type BearBox struct {
	BearingMin  float64
	BearingMax  float64
	DistanceMin float64
	DistanceMax float64
	SonarRange  float64
}

// NewBearBox validates that both bearings sit inside the fan.
func NewBearBox(bearingMin, bearingMax, distanceMin, distanceMax, sonarRange float64) (BearBox, error) {
	if bearingMin < MinAngle || bearingMin > MaxAngle ||
		bearingMax < MinAngle || bearingMax > MaxAngle {
		return BearBox{}, fmt.Errorf("bearing outside fan: [%f, %f]", bearingMin, bearingMax)
	}
	return BearBox{
		BearingMin:  bearingMin,
		BearingMax:  bearingMax,
		DistanceMin: distanceMin,
		DistanceMax: distanceMax,
		SonarRange:  sonarRange,
	}, nil
}

// RawBox is an integer pixel box in the raw beam-by-range image: X is the
// beam axis, Y the range axis.
type RawBox struct {
	XMin int
	YMin int
	XMax int
	YMax int
}

// XYBox is an integer pixel box in a polar-transformed (fan display) image.
type XYBox struct {
	XMin int
	YMin int
	XMax int
	YMax int
}

// FrameBox ties a RawBox to a frame index within a group's image sequence.
type FrameBox struct {
	Frame int
	Box   RawBox
}

func (b RawBox) Width() int {
	if w := b.XMax - b.XMin; w > 0 {
		return w
	}
	return 0
}

func (b RawBox) Height() int {
	if h := b.YMax - b.YMin; h > 0 {
		return h
	}
	return 0
}

func (b RawBox) Area() int {
	return (b.XMax - b.XMin) * (b.YMax - b.YMin)
}

// Centre returns the midpoint of the box.
func (b RawBox) Centre() (int, int) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Union returns the smallest box containing both a and b.
func (b RawBox) Union(o RawBox) RawBox {
	return RawBox{
		XMin: min(b.XMin, o.XMin),
		YMin: min(b.YMin, o.YMin),
		XMax: max(b.XMax, o.XMax),
		YMax: max(b.YMax, o.YMax),
	}
}

// Overlaps reports whether the two boxes share any interior.
func (b RawBox) Overlaps(o RawBox) bool {
	return b.XMax > o.XMin && b.XMin < o.XMax &&
		b.YMax > o.YMin && b.YMin < o.YMax
}

// Gap returns the X and Y pixel distances between two boxes, zero on an
// axis where they already overlap or touch.
func (b RawBox) Gap(o RawBox) (int, int) {
	var xd, yd int
	if !(b.XMax > o.XMin && b.XMin < o.XMax) {
		if b.XMax < o.XMin {
			xd = o.XMin - b.XMax
		} else {
			xd = b.XMin - o.XMax
		}
	}
	if !(b.YMax > o.YMin && b.YMin < o.YMax) {
		if b.YMax < o.YMin {
			yd = o.YMin - b.YMax
		} else {
			yd = b.YMin - o.YMax
		}
	}
	return max(xd, 0), max(yd, 0)
}

// Expand grows the box by wsize pixels on each side in X and hsize in Y,
// clamping to the image.
func (b *RawBox) Expand(size ImageSize, wsize, hsize int) {
	if wsize == 0 && hsize == 0 {
		return
	}
	b.XMin -= wsize
	b.YMin -= hsize
	if b.XMin < 0 {
		b.XMin = 0
	}
	if b.YMin < 0 {
		b.YMin = 0
	}
	if b.XMax+wsize >= size.Width {
		b.XMax = size.Width - 1
	} else {
		b.XMax += wsize
	}
	if b.YMax+hsize >= size.Height {
		b.YMax = size.Height - 1
	} else {
		b.YMax += hsize
	}
}

// ExpandEqual grows the box by the same amount on all sides.
func (b *RawBox) ExpandEqual(size ImageSize, esize int) {
	b.Expand(size, esize, esize)
}

// Clamp restricts the box to lie inside the image.
func (b *RawBox) Clamp(size ImageSize) {
	if b.XMin < 0 {
		b.XMin = 0
	}
	if b.YMin < 0 {
		b.YMin = 0
	}
	if b.XMax >= size.Width {
		b.XMax = size.Width - 1
	}
	if b.YMax >= size.Height {
		b.YMax = size.Height - 1
	}
}

// Shift moves the box by x,y pixels.
func (b *RawBox) Shift(x, y int) {
	b.XMin += x
	b.XMax += x
	b.YMin += y
	b.YMax += y
}

// FixedSize resizes the box about its centre to exactly width by height.
// When the new extent is odd relative to the old one the remainder goes to
// the max side. A box pushed past an image edge is shifted back inside.
func (b *RawBox) FixedSize(size ImageSize, width, height int) {
	tw := b.XMax - b.XMin
	w := (width - tw) / 2
	n := (width - tw) % 2
	b.XMin -= w
	b.XMax += w + n

	th := b.YMax - b.YMin
	h := (height - th) / 2
	m := (height - th) % 2
	b.YMin -= h
	b.YMax += h + m

	var shiftX, shiftY int
	if b.XMin < 0 {
		shiftX = -b.XMin
	}
	if b.XMax >= size.Width {
		shiftX = size.Width - b.XMax - 1
	}
	if b.YMin < 0 {
		shiftY = -b.YMin
	}
	if b.YMax >= size.Height {
		shiftY = size.Height - b.YMax - 1
	}
	b.Shift(shiftX, shiftY)
}

// PointExtent is the bearing/range footprint of one detected point.
type PointExtent struct {
	MinBearing float64
	MaxBearing float64
	MinRange   float64
	MaxRange   float64
}

// PointsToBear finds the bearing box containing every point. The source
// database stores minbearing and maxbearing swapped relative to the raw
// image's X axis, so the box minimum comes from the point maxima and vice
// versa; ToRaw relies on this orientation.
func PointsToBear(points []PointExtent, sonarRange float64) BearBox {
	minB, maxB := MaxAngle, MinAngle
	minD, maxD := sonarRange, 0.0

	for _, p := range points {
		if p.MaxBearing < minB && p.MaxBearing >= MinAngle {
			minB = p.MaxBearing
		}
		if p.MinBearing > maxB && p.MinBearing < MaxAngle {
			maxB = p.MinBearing
		}
		if p.MinRange < minD && p.MinRange >= 0 {
			minD = p.MinRange
		}
		if p.MaxRange > maxD && p.MaxRange < sonarRange {
			maxD = p.MaxRange
		}
	}

	return BearBox{
		BearingMin:  minB,
		BearingMax:  maxB,
		DistanceMin: minD,
		DistanceMax: maxD,
		SonarRange:  sonarRange,
	}
}

// DistBearingToXY projects a bearing and distance into fan-display pixel
// coordinates, origin top-left with the fan descending from the top edge.
func DistBearingToXY(bearing, distance, maxRange float64, size ImageSize) (int, int) {
	d0 := distance / maxRange * float64(size.Height)
	x0 := math.Abs(math.Sin(bearing)) * d0
	y0 := math.Abs(math.Cos(bearing)) * d0

	hl := float64(size.Width) / 2.0
	if bearing < 0 {
		x0 = hl - x0
	} else {
		x0 = hl + x0
	}

	x := int(math.Round(x0))
	y := int(math.Round(y0))
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}

// BearToXY projects a BearBox into a fan-display XYBox by projecting all
// four corners and taking their bounds.
func BearToXY(bb BearBox, size ImageSize) XYBox {
	corners := [4][2]int{}
	args := [4][2]float64{
		{bb.BearingMin, bb.DistanceMin},
		{bb.BearingMax, bb.DistanceMax},
		{bb.BearingMin, bb.DistanceMax},
		{bb.BearingMax, bb.DistanceMin},
	}
	for i, a := range args {
		x, y := DistBearingToXY(a[0], a[1], bb.SonarRange, size)
		corners[i] = [2]int{x, y}
	}

	out := XYBox{XMin: corners[0][0], YMin: corners[0][1], XMax: corners[0][0], YMax: corners[0][1]}
	for _, c := range corners[1:] {
		out.XMin = min(out.XMin, c[0])
		out.XMax = max(out.XMax, c[0])
		out.YMin = min(out.YMin, c[1])
		out.YMax = max(out.YMax, c[1])
	}
	return out
}

// ToRaw converts a BearBox into raw image pixels. X comes from the bearing
// table index scaled to the image width, Y from linear range scaling. The
// X minimum derives from the maximum bearing because the beam axis runs
// opposite to signed bearing.
func (bb BearBox) ToRaw(size ImageSize, table BearingTable) RawBox {
	xmin := float64(table.Index(bb.BearingMax)) / float64(len(table)) * float64(size.Width)
	xmax := float64(table.Index(bb.BearingMin)) / float64(len(table)) * float64(size.Width)
	ymin := bb.DistanceMin / bb.SonarRange * float64(size.Height)
	ymax := bb.DistanceMax / bb.SonarRange * float64(size.Height)

	return RawBox{XMin: int(xmin), YMin: int(ymin), XMax: int(xmax), YMax: int(ymax)}
}
