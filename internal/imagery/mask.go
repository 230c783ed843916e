package imagery

import "github.com/sealhits/crabseal/internal/geom"

// Default mask admission thresholds. The standard check ignores a border
// where sector edges and interpolation artefacts accumulate; the tiny
// variant admits anything with more than a single live pixel.
const (
	MaskMargin   = 32
	MaskMinCount = 50
	TinyMinCount = 1
)

// CountMask returns the number of non-zero pixels across a [D,H,W] mask
// volume, ignoring a margin of pixels around each frame edge.
func CountMask(pixels []uint8, size geom.ImageSize, depth, margin int) int {
	total := 0
	for z := 0; z < depth; z++ {
		frame := pixels[z*size.Width*size.Height:]
		for y := margin; y < size.Height-margin; y++ {
			row := frame[y*size.Width:]
			for x := margin; x < size.Width-margin; x++ {
				if row[x] > 0 {
					total++
				}
			}
		}
	}
	return total
}

// MaskAccept reports whether a mask volume holds enough annotation to be
// worth keeping: more than minCount live pixels inside the margin.
func MaskAccept(pixels []uint8, size geom.ImageSize, depth, margin, minCount int) bool {
	return CountMask(pixels, size, depth, margin) > minCount
}
