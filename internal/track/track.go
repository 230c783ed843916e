package track

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/sealhits/crabseal/internal/catalog"
	"github.com/sealhits/crabseal/internal/geom"
	"github.com/sealhits/crabseal/internal/groups"
)

// Track is a series of frame-numbered boxes, in frame order.
type Track []geom.FrameBox

// First returns the first frame number. Tracks are never empty in the
// pipeline but an empty track reports zero.
func (t Track) First() int {
	if len(t) == 0 {
		return 0
	}
	return t[0].Frame
}

// Last returns the final frame number.
func (t Track) Last() int {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Frame
}

// FromExtract builds the raw track for an extract: one box per marked frame,
// projected from bearing and range space into pixels at the native image
// size. Frame numbers are image indices within the group.
func FromExtract(e *groups.Extract, table geom.BearingTable) (Track, error) {
	var t Track
	for idx, image := range e.Images {
		pts := e.Points[idx]
		if len(pts) == 0 {
			continue
		}
		bb := geom.PointsToBear(pointExtents(pts), image.Range)
		t = append(t, geom.FrameBox{
			Frame: idx,
			Box:   bb.ToRaw(e.Origin.ImgSize, table),
		})
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("group %s has no marked frames", e.Origin.Group.HUID)
	}
	return t, nil
}

func pointExtents(pts []catalog.Point) []geom.PointExtent {
	extents := make([]geom.PointExtent, len(pts))
	for i, p := range pts {
		extents[i] = geom.PointExtent{
			MinBearing: p.MinBearing,
			MaxBearing: p.MaxBearing,
			MinRange:   p.MinRange,
			MaxRange:   p.MaxRange,
		}
	}
	return extents
}

// oneBoxPerFrame collapses a track to a single box per distinct frame
// number, unioning any boxes that share a frame. It returns the boxes
// indexed by position and the sorted distinct frame numbers.
func oneBoxPerFrame(t Track) ([]geom.RawBox, []int) {
	var frames []int
	seen := map[int]int{}
	var boxes []geom.RawBox

	for _, fb := range t {
		if at, ok := seen[fb.Frame]; ok {
			boxes[at] = boxes[at].Union(fb.Box)
			continue
		}
		seen[fb.Frame] = len(frames)
		frames = append(frames, fb.Frame)
		boxes = append(boxes, fb.Box)
	}

	// Insertion keeps first-appearance order; tracks arrive frame sorted,
	// so sort only when they do not.
	for i := 1; i < len(frames); i++ {
		for j := i; j > 0 && frames[j-1] > frames[j]; j-- {
			frames[j-1], frames[j] = frames[j], frames[j-1]
			boxes[j-1], boxes[j] = boxes[j], boxes[j-1]
		}
	}
	return boxes, frames
}

// Interpolate fills the gaps in a track, producing one box for every frame
// between the first and last observed frames. The four box corners are
// interpolated independently and recombined, guarding against corner
// crossover.
func (t Track) Interpolate(size geom.ImageSize) (Track, error) {
	boxes, frames := oneBoxPerFrame(t)
	if len(boxes) == 0 {
		return nil, fmt.Errorf("interpolate: empty track")
	}
	if len(boxes) == 1 {
		return Track{{Frame: frames[0], Box: boxes[0]}}, nil
	}

	knots := make([]float64, len(frames))
	for i, f := range frames {
		knots[i] = float64(f)
	}

	corner := func(pick func(geom.RawBox) float64) (*interp.PiecewiseLinear, error) {
		ys := make([]float64, len(boxes))
		for i, b := range boxes {
			ys[i] = pick(b)
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(knots, ys); err != nil {
			return nil, fmt.Errorf("interpolate: %w", err)
		}
		return &pl, nil
	}

	blx, err := corner(func(b geom.RawBox) float64 { return float64(b.XMin) })
	if err != nil {
		return nil, err
	}
	bly, err := corner(func(b geom.RawBox) float64 { return float64(b.YMin) })
	if err != nil {
		return nil, err
	}
	brx, err := corner(func(b geom.RawBox) float64 { return float64(b.XMax) })
	if err != nil {
		return nil, err
	}
	bry, err := corner(func(b geom.RawBox) float64 { return float64(b.YMin) })
	if err != nil {
		return nil, err
	}
	tlx, err := corner(func(b geom.RawBox) float64 { return float64(b.XMin) })
	if err != nil {
		return nil, err
	}
	tly, err := corner(func(b geom.RawBox) float64 { return float64(b.YMax) })
	if err != nil {
		return nil, err
	}
	trx, err := corner(func(b geom.RawBox) float64 { return float64(b.XMax) })
	if err != nil {
		return nil, err
	}
	try, err := corner(func(b geom.RawBox) float64 { return float64(b.YMax) })
	if err != nil {
		return nil, err
	}

	out := make(Track, 0, frames[len(frames)-1]-frames[0]+1)
	for f := frames[0]; f <= frames[len(frames)-1]; f++ {
		at := float64(f)
		xmin := int(math.Round((blx.Predict(at) + tlx.Predict(at)) / 2))
		ymin := int(math.Round((bly.Predict(at) + bry.Predict(at)) / 2))
		xmax := int(math.Round((brx.Predict(at) + trx.Predict(at)) / 2))
		ymax := int(math.Round((tly.Predict(at) + try.Predict(at)) / 2))

		if xmin > xmax {
			xmin, xmax = xmax, xmin
		}
		if ymin > ymax {
			ymin, ymax = ymax, ymin
		}
		box := geom.RawBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}
		box.Clamp(size)

		out = append(out, geom.FrameBox{Frame: f, Box: box})
	}
	return out, nil
}

// EnforceOverlap expands consecutive boxes that fail to overlap until they
// do, growing both sides by half the gap plus one. Frames are renumbered to
// run contiguously from the first observed frame.
func (t Track) EnforceOverlap(size geom.ImageSize) Track {
	boxes, frames := oneBoxPerFrame(t)

	for i := 0; i+1 < len(boxes); i++ {
		if boxes[i].Overlaps(boxes[i+1]) {
			continue
		}
		xd, yd := boxes[i].Gap(boxes[i+1])
		boxes[i].Expand(size, xd/2+1, yd/2+1)
		boxes[i+1].Expand(size, xd/2+1, yd/2+1)
	}

	out := make(Track, len(boxes))
	for i, b := range boxes {
		out[i] = geom.FrameBox{Frame: frames[0] + i, Box: b}
	}
	return out
}

// Reject reports whether a track is too jittery to keep: the standard
// deviation of either the frame-to-frame centroid displacement or the box
// area exceeds rate.
func (t Track) Reject(rate float64) bool {
	if len(t) < 2 {
		return false
	}

	dists := make([]float64, 0, len(t)-1)
	areas := make([]float64, 0, len(t))

	px, py := t[0].Box.Centre()
	areas = append(areas, float64(t[0].Box.Area()))

	for _, fb := range t[1:] {
		cx, cy := fb.Box.Centre()
		dx := float64(cx - px)
		dy := float64(cy - py)
		dists = append(dists, math.Sqrt(dx*dx+dy*dy))
		areas = append(areas, float64(fb.Box.Area()))
		px, py = cx, cy
	}

	return stat.PopStdDev(dists, nil) > rate || stat.PopStdDev(areas, nil) > rate
}
