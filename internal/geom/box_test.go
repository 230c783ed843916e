package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rad(deg float64) float64 { return deg * math.Pi / 180.0 }

func TestDistBearingToXY(t *testing.T) {
	t.Parallel()

	size := ImageSize{Width: 692, Height: 400}

	x0, y0 := DistBearingToXY(0, 50, 55, size)
	assert.Equal(t, 346, x0)
	assert.Equal(t, 364, y0)

	x1, y1 := DistBearingToXY(rad(30), 50, 55, size)
	assert.Greater(t, x1, 400)
	assert.Less(t, y1, 350)

	// Negative bearings land left of centre.
	x2, _ := DistBearingToXY(rad(-30), 50, 55, size)
	assert.Less(t, x2, 346)

	// A steep bearing on a narrow image would project left of the frame;
	// coordinates saturate at the edge instead of going negative.
	x3, y3 := DistBearingToXY(rad(-60), 55, 55, ImageSize{Width: 40, Height: 400})
	assert.Equal(t, 0, x3)
	assert.GreaterOrEqual(t, y3, 0)
}

func TestFixedSize(t *testing.T) {
	t.Parallel()

	size := ImageSize{Width: 692, Height: 400}

	tests := []struct {
		name   string
		box    RawBox
		w, h   int
		expect RawBox
	}{
		{
			name:   "grow_even",
			box:    RawBox{XMin: 20, YMin: 20, XMax: 40, YMax: 40},
			w:      32,
			h:      32,
			expect: RawBox{XMin: 14, YMin: 14, XMax: 46, YMax: 46},
		},
		{
			name:   "shrink_odd_remainder",
			box:    RawBox{XMin: 20, YMin: 20, XMax: 40, YMax: 40},
			w:      15,
			h:      15,
			expect: RawBox{XMin: 22, YMin: 22, XMax: 37, YMax: 37},
		},
		{
			name:   "shift_back_inside",
			box:    RawBox{XMin: 680, YMin: 0, XMax: 690, YMax: 20},
			w:      30,
			h:      30,
			expect: RawBox{XMin: 661, YMin: 0, XMax: 691, YMax: 30},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := tc.box
			b.FixedSize(size, tc.w, tc.h)
			assert.Equal(t, tc.expect, b)
			assert.Equal(t, tc.w, b.XMax-b.XMin)
			assert.Equal(t, tc.h, b.YMax-b.YMin)
		})
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	size := ImageSize{Width: 400, Height: 692}
	b := RawBox{XMin: 20, YMin: 20, XMax: 40, YMax: 40}
	b.Expand(size, 10, 10)
	assert.Equal(t, RawBox{XMin: 10, YMin: 10, XMax: 50, YMax: 50}, b)

	// Clamped at the image edges, never negative.
	c := RawBox{XMin: 2, YMin: 2, XMax: 398, YMax: 690}
	c.Expand(size, 10, 10)
	assert.Equal(t, RawBox{XMin: 0, YMin: 0, XMax: 399, YMax: 691}, c)

	d := RawBox{XMin: 20, YMin: 20, XMax: 40, YMax: 40}
	d.ExpandEqual(size, 5)
	assert.Equal(t, RawBox{XMin: 15, YMin: 15, XMax: 45, YMax: 45}, d)
}

func TestBearToXY(t *testing.T) {
	t.Parallel()

	bb, err := NewBearBox(rad(-30), rad(30), 40, 50, 55)
	require.NoError(t, err)

	xy := BearToXY(bb, ImageSize{Width: 692, Height: 400})
	assert.Equal(t, XYBox{XMin: 164, YMin: 252, XMax: 528, YMax: 315}, xy)
}

func TestBearBoxToRaw(t *testing.T) {
	t.Parallel()

	bb, err := NewBearBox(rad(-10), rad(10), 40, 42, 55)
	require.NoError(t, err)

	table := SyntheticTable(512)
	rb := bb.ToRaw(ImageSize{Width: 512, Height: 1658}, table)

	assert.Equal(t, 204, rb.XMin)
	assert.Equal(t, 1205, rb.YMin)
	assert.Equal(t, 306, rb.XMax)
	assert.Equal(t, 1266, rb.YMax)
}

func TestNewBearBoxRejectsOutsideFan(t *testing.T) {
	t.Parallel()

	_, err := NewBearBox(rad(-70), rad(10), 0, 10, 55)
	assert.Error(t, err)
	_, err = NewBearBox(rad(-10), rad(61), 0, 10, 55)
	assert.Error(t, err)
}

func TestOverlapAndGap(t *testing.T) {
	t.Parallel()

	bb0 := RawBox{XMin: 20, YMin: 20, XMax: 40, YMax: 40}
	bb1 := RawBox{XMin: 25, YMin: 25, XMax: 45, YMax: 45}
	assert.True(t, bb0.Overlaps(bb1))

	far := RawBox{XMin: 50, YMin: 50, XMax: 60, YMax: 60}
	assert.False(t, bb0.Overlaps(far))

	xd, yd := bb0.Gap(far)
	assert.Equal(t, 10, xd)
	assert.Equal(t, 10, yd)

	inside := RawBox{XMin: 25, YMin: 25, XMax: 35, YMax: 35}
	xd, yd = bb0.Gap(inside)
	assert.Equal(t, 0, xd)
	assert.Equal(t, 0, yd)
}

func TestUnionAndCentre(t *testing.T) {
	t.Parallel()

	a := RawBox{XMin: 10, YMin: 10, XMax: 20, YMax: 20}
	b := RawBox{XMin: 15, YMin: 5, XMax: 30, YMax: 18}
	u := a.Union(b)
	assert.Equal(t, RawBox{XMin: 10, YMin: 5, XMax: 30, YMax: 20}, u)

	cx, cy := u.Centre()
	assert.Equal(t, 20, cx)
	assert.Equal(t, 12, cy)
}

func TestPointsToBear(t *testing.T) {
	t.Parallel()

	points := []PointExtent{
		{MinBearing: rad(12), MaxBearing: rad(-8), MinRange: 30, MaxRange: 35},
		{MinBearing: rad(15), MaxBearing: rad(-3), MinRange: 28, MaxRange: 40},
	}
	bb := PointsToBear(points, 55)

	// The database stores bearing extrema swapped relative to the raw X
	// axis, so the box minimum is taken from the point maxima.
	assert.InDelta(t, rad(-8), bb.BearingMin, 1e-9)
	assert.InDelta(t, rad(15), bb.BearingMax, 1e-9)
	assert.InDelta(t, 28.0, bb.DistanceMin, 1e-9)
	assert.InDelta(t, 40.0, bb.DistanceMax, 1e-9)
	assert.InDelta(t, 55.0, bb.SonarRange, 1e-9)
}
