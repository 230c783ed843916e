package sink

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"gorgonia.org/tensor"

	"github.com/sealhits/crabseal/internal/datum"
	"github.com/sealhits/crabseal/internal/volume"
)

func pngName(d *datum.Datum, kind string) string {
	ex := d.Extents()
	return fmt.Sprintf("%s_%02d-%02d-%02d-%02d_%s.png",
		d.Base.Origin.Group.HUID, ex.X, ex.Y, ex.X+ex.W, ex.Y+ex.H, kind)
}

// WritePNG squashes a datum along its depth axis into a preview pair: a
// blue-channel mean of the data frames and a binarised mask.
func WritePNG(d *datum.Datum, dir string) error {
	base := d.Base.Size()
	sums := make([]float64, base.Width*base.Height)
	for _, frame := range d.Base.Frames {
		for i, p := range frame.Pixels {
			sums[i] += float64(p)
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, base.Width, base.Height))
	depth := float64(d.Base.Depth())
	for y := 0; y < base.Height; y++ {
		for x := 0; x < base.Width; x++ {
			b := sums[y*base.Width+x] / depth
			if b > 255 {
				b = 255
			}
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: uint8(b), A: 255})
		}
	}
	if err := writePNGFile(filepath.Join(dir, pngName(d, "base")), img); err != nil {
		return err
	}

	mask := d.Mask.Size()
	gray := image.NewGray(image.Rect(0, 0, mask.Width, mask.Height))
	for _, frame := range d.Mask.Frames {
		for i, p := range frame.Pixels {
			if p > 0 {
				gray.Pix[i] = 255
			}
		}
	}
	return writePNGFile(filepath.Join(dir, pngName(d, "mask")), gray)
}

func writePNGFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func npzName(d *datum.Datum, sidx int, suffix, kind string) string {
	ex := d.Extents()
	origin := d.Base.Origin
	return fmt.Sprintf("%s_%02d_%02d-%02d-%02d-%02d_%d_%s_%s.npz",
		origin.Group.HUID, sidx, ex.X, ex.Y, ex.X+ex.W, ex.Y+ex.H,
		origin.SonarID, suffix, kind)
}

// WriteNPZ saves each slice of a datum as a base/mask pair of numpy arrays
// with shape [depth, height, width] and dtype u8. The suffix distinguishes
// variants of the same group in one directory.
func WriteNPZ(slices []*datum.Datum, dir, suffix string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	for sidx, d := range slices {
		if err := writeVolume(d.Base, filepath.Join(dir, npzName(d, sidx, suffix, "base"))); err != nil {
			return err
		}
		if err := writeVolume(d.Mask, filepath.Join(dir, npzName(d, sidx, suffix, "mask"))); err != nil {
			return err
		}
	}
	return nil
}

func writeVolume(v *volume.Volume, path string) error {
	size := v.Size()
	backing := make([]uint8, 0, v.Depth()*size.Width*size.Height)
	for _, frame := range v.Frames {
		backing = append(backing, frame.Pixels...)
	}

	t := tensor.New(
		tensor.WithShape(v.Depth(), size.Height, size.Width),
		tensor.WithBacking(backing),
	)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := t.WriteNpy(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// AppendHUID records a group in a set listing, one HUID per line.
func AppendHUID(path, huid string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, huid); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// Partition fixes the train/test/val split for a run: 80% train, 80% of the
// remainder test, the rest val.
type Partition struct {
	Train int
	Test  int
}

// NewPartition sizes the splits for a total group count.
func NewPartition(total int) Partition {
	train := int(float64(total) * 0.8)
	test := int(float64(total-train) * 0.8)
	return Partition{Train: train, Test: test}
}

// Set names the split the nth group belongs to.
func (p Partition) Set(n int) string {
	switch {
	case n < p.Train:
		return "train"
	case n < p.Train+p.Test:
		return "test"
	default:
		return "val"
	}
}

// Dirs returns the image directory and listing file for a set.
func Dirs(outPath, set string) (imgDir, txtPath string) {
	return filepath.Join(outPath, "images", set),
		filepath.Join(outPath, "set_"+set+".txt")
}
