package datum

import (
	"fmt"
	"math/rand"

	"github.com/sealhits/crabseal/internal/imagery"
	"github.com/sealhits/crabseal/internal/volume"
)

// Datum is a base volume and its aligned mask. The mask's extents locate
// the pair; base extents may differ after independent resizing.
type Datum struct {
	Base *volume.Volume
	Mask *volume.Volume
}

// Extents returns the datum's placement, taken from the mask.
func (d *Datum) Extents() volume.Extents {
	return d.Mask.Extents
}

// Depth returns the number of frames in the pair.
func (d *Datum) Depth() int {
	return d.Base.Depth()
}

// Combine pairs a base volume with a mask volume. The two must be the same
// depth; sizes may differ when the mask lives in sector space.
func Combine(base, mask *volume.Volume) (*Datum, error) {
	if base.Depth() != mask.Depth() {
		return nil, fmt.Errorf("combine: base depth %d != mask depth %d",
			base.Depth(), mask.Depth())
	}
	return &Datum{Base: base, Mask: mask}, nil
}

func subVolume(v *volume.Volume, from, to int) *volume.Volume {
	return &volume.Volume{
		Frames:  v.Frames[from:to],
		Extents: v.Extents,
		Origin:  v.Origin,
	}
}

// Slice cuts the datum into consecutive non-overlapping windows of the
// given depth, discarding any remainder. A datum shallower than one window
// is an error.
func Slice(d *Datum, window int) ([]*Datum, error) {
	n := d.Depth()
	if n < window {
		return nil, fmt.Errorf("slice: depth %d below window %d", n, window)
	}

	var out []*Datum
	for at := 0; at+window <= n; at += window {
		out = append(out, &Datum{
			Base: subVolume(d.Base, at, at+window),
			Mask: subVolume(d.Mask, at, at+window),
		})
	}
	return out, nil
}

// SliceOverlap cuts the datum into ceil(n/window) windows of the given
// depth, sliding the later windows back one frame at a time, round robin,
// until the final window fits. Every frame is covered and consecutive
// windows overlap when the depth is not an exact multiple.
func SliceOverlap(d *Datum, window int) ([]*Datum, error) {
	n := d.Depth()
	if n < window {
		return nil, fmt.Errorf("slice: depth %d below window %d", n, window)
	}

	k := n / window
	if n%window != 0 {
		k++
	}

	positions := make([]int, k)
	for i := range positions {
		positions[i] = i * window
	}

	widx := 1
	for k > 1 && positions[k-1]+window > n {
		for j := widx; j < k; j++ {
			positions[j]--
		}
		widx++
		if widx >= k {
			widx = 1
		}
	}

	out := make([]*Datum, 0, k)
	for _, at := range positions {
		out = append(out, &Datum{
			Base: subVolume(d.Base, at, at+window),
			Mask: subVolume(d.Mask, at, at+window),
		})
	}
	return out, nil
}

// RejectNoMask reports whether the datum's mask is too sparse to train on,
// ignoring pixels near the left and right edges where the fan distorts.
func RejectNoMask(d *Datum) bool {
	return !maskAccept(d.Mask, imagery.MaskMargin, imagery.MaskMinCount)
}

// RejectNoMaskTiny is the sector-grid variant: no margin and a single cell
// is enough.
func RejectNoMaskTiny(d *Datum) bool {
	return !maskAccept(d.Mask, 0, imagery.TinyMinCount)
}

func maskAccept(v *volume.Volume, margin, minCount int) bool {
	size := v.Size()
	pixels := make([]uint8, 0, size.Width*size.Height*v.Depth())
	for _, frame := range v.Frames {
		pixels = append(pixels, frame.Pixels...)
	}
	return imagery.MaskAccept(pixels, size, v.Depth(), margin, minCount)
}

// SplitCount is how many random crops SplitRandom draws from a pair.
const SplitCount = 128

// SplitRandom cuts co-aligned random square crops from a base and mask
// volume, for background-sample augmentation. Crops are clipped to stay
// inside the frames.
func SplitRandom(base, mask *volume.Volume, side int, rng *rand.Rand) []*Datum {
	size := base.Size()
	out := make([]*Datum, 0, SplitCount)

	for i := 0; i < SplitCount; i++ {
		nx := int(rng.Float64() * float64(size.Width-side))
		ny := int(rng.Float64() * float64(size.Height-side))
		if nx+side > size.Width {
			nx = size.Width - side
		}
		if ny+side > size.Height {
			ny = size.Height - side
		}

		out = append(out, &Datum{
			Base: volume.Crop(base, nx, ny, side, side),
			Mask: volume.Crop(mask, nx, ny, side, side),
		})
	}
	return out
}
