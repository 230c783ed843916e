package track

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sealhits/crabseal/internal/geom"
)

// Constant-velocity Kalman filter over box state [xc, yc, aspect, height]
// plus velocities, with measurement noise scaled by box height in the
// DeepSORT manner.
const (
	kalmanDim      = 4
	kalmanStateDim = 8
	positionWeight = 1.0 / 20.0
	velocityWeight = 1.0 / 160.0
)

type kalmanState struct {
	mean *mat.VecDense
	cov  *mat.Dense
}

type measurement [kalmanDim]float64

func boxMeasurement(b geom.RawBox) measurement {
	left := max(b.XMin, 0)
	top := max(b.YMin, 0)
	width := float64(max(b.XMax-left, 0))
	height := float64(max(b.YMax-top, 0))

	aspect := 0.0
	if height > 0 {
		aspect = width / height
	}
	return measurement{
		float64(left) + width/2,
		float64(top) + height/2,
		aspect,
		height,
	}
}

func kalmanInitiate(z measurement) *kalmanState {
	mean := mat.NewVecDense(kalmanStateDim, nil)
	for i := 0; i < kalmanDim; i++ {
		mean.SetVec(i, z[i])
	}

	h := z[3]
	std := [kalmanStateDim]float64{
		2 * positionWeight * h,
		2 * positionWeight * h,
		1e-2,
		2 * positionWeight * h,
		10 * velocityWeight * h,
		10 * velocityWeight * h,
		1e-5,
		10 * velocityWeight * h,
	}

	cov := mat.NewDense(kalmanStateDim, kalmanStateDim, nil)
	for i, s := range std {
		cov.Set(i, i, s*s)
	}
	return &kalmanState{mean: mean, cov: cov}
}

// transition is the constant-velocity model with a unit timestep.
func transition() *mat.Dense {
	f := mat.NewDense(kalmanStateDim, kalmanStateDim, nil)
	for i := 0; i < kalmanStateDim; i++ {
		f.Set(i, i, 1)
	}
	for i := 0; i < kalmanDim; i++ {
		f.Set(i, i+kalmanDim, 1)
	}
	return f
}

func (s *kalmanState) predict() {
	f := transition()

	var mean mat.VecDense
	mean.MulVec(f, s.mean)

	var fp, fpft mat.Dense
	fp.Mul(f, s.cov)
	fpft.Mul(&fp, f.T())

	h := s.mean.AtVec(3)
	std := [kalmanStateDim]float64{
		positionWeight * h,
		positionWeight * h,
		1e-2,
		positionWeight * h,
		velocityWeight * h,
		velocityWeight * h,
		1e-5,
		velocityWeight * h,
	}
	for i, sd := range std {
		fpft.Set(i, i, fpft.At(i, i)+sd*sd)
	}

	s.mean = &mean
	s.cov = &fpft
}

func (s *kalmanState) update(z measurement) {
	h := s.mean.AtVec(3)
	std := [kalmanDim]float64{
		positionWeight * h,
		positionWeight * h,
		1e-1,
		positionWeight * h,
	}

	// The measurement projects onto the first four state components, so the
	// innovation covariance is the top-left block of P plus R.
	innov := mat.NewDense(kalmanDim, kalmanDim, nil)
	for i := 0; i < kalmanDim; i++ {
		for j := 0; j < kalmanDim; j++ {
			innov.Set(i, j, s.cov.At(i, j))
		}
		innov.Set(i, i, innov.At(i, i)+std[i]*std[i])
	}

	var innovInv mat.Dense
	if err := innovInv.Inverse(innov); err != nil {
		return
	}

	// Gain K = P Hᵀ S⁻¹ uses the left 8x4 block of P.
	ph := mat.NewDense(kalmanStateDim, kalmanDim, nil)
	for i := 0; i < kalmanStateDim; i++ {
		for j := 0; j < kalmanDim; j++ {
			ph.Set(i, j, s.cov.At(i, j))
		}
	}
	var gain mat.Dense
	gain.Mul(ph, &innovInv)

	residual := mat.NewVecDense(kalmanDim, nil)
	for i := 0; i < kalmanDim; i++ {
		residual.SetVec(i, z[i]-s.mean.AtVec(i))
	}

	var corr mat.VecDense
	corr.MulVec(&gain, residual)

	var mean mat.VecDense
	mean.AddVec(s.mean, &corr)

	// P = P - K H P, where H P is the top 4x8 block.
	hp := mat.NewDense(kalmanDim, kalmanStateDim, nil)
	for i := 0; i < kalmanDim; i++ {
		for j := 0; j < kalmanStateDim; j++ {
			hp.Set(i, j, s.cov.At(i, j))
		}
	}
	var khp, cov mat.Dense
	khp.Mul(&gain, hp)
	cov.Sub(s.cov, &khp)

	s.mean = &mean
	s.cov = &cov
}

// Smooth runs the Kalman filter along the track, replacing every box after
// the first with the filtered estimate. Frames are renumbered to run
// contiguously from the first observed frame. Tracks whose first box is
// smaller than 3x3 are returned unchanged.
func (t Track) Smooth(size geom.ImageSize) Track {
	boxes, frames := oneBoxPerFrame(t)
	if len(boxes) == 0 {
		return t
	}

	first := boxes[0]
	width := first.XMax - first.XMin
	height := first.YMax - first.YMin
	if width < 3 || height < 3 {
		return t
	}

	state := kalmanInitiate(measurement{
		float64(first.XMin) + float64(width)/2,
		float64(first.YMin) + float64(height)/2,
		float64(width) / float64(height),
		float64(height),
	})

	out := make(Track, 0, len(boxes))
	out = append(out, geom.FrameBox{Frame: frames[0], Box: first})

	for idx := 1; idx < len(boxes); idx++ {
		state.update(boxMeasurement(boxes[idx]))
		state.predict()

		xc := state.mean.AtVec(0)
		yc := state.mean.AtVec(1)
		ph := state.mean.AtVec(3)
		pw := ph * state.mean.AtVec(2)
		if math.IsNaN(xc) || math.IsNaN(yc) || math.IsNaN(ph) || math.IsNaN(pw) {
			out = append(out, geom.FrameBox{Frame: frames[0] + idx, Box: boxes[idx]})
			continue
		}

		box := geom.RawBox{
			XMin: max(int(xc)-int(pw/2), 0),
			XMax: min(max(int(xc)+int(pw/2), 0), size.Width-1),
			YMin: max(int(yc)-int(ph/2), 0),
			YMax: min(max(int(yc)+int(ph/2), 0), size.Height-1),
		}
		out = append(out, geom.FrameBox{Frame: frames[0] + idx, Box: box})
	}
	return out
}
