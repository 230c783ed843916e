package imagery

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/pierrec/lz4/v4"

	"github.com/sealhits/crabseal/internal/geom"
)

// Frame is a single greyscale sonar image, row-major with a top-left
// origin.
type Frame struct {
	Size   geom.ImageSize
	Pixels []uint8
}

// At returns the pixel at x,y.
func (f *Frame) At(x, y int) uint8 {
	return f.Pixels[y*f.Size.Width+x]
}

// Set writes the pixel at x,y.
func (f *Frame) Set(x, y int, v uint8) {
	f.Pixels[y*f.Size.Width+x] = v
}

// NewFrame allocates a zeroed frame.
func NewFrame(size geom.ImageSize) *Frame {
	return &Frame{Size: size, Pixels: make([]uint8, size.Width*size.Height)}
}

// ReadFITS loads a FITS frame from disk, decompressing first when the path
// carries an .lz4 suffix. Only 8-bit primary HDUs appear in our captures.
func ReadFITS(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fits %s: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".lz4") {
		raw, err := io.ReadAll(lz4.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
		frame, err := DecodeFITS(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return frame, nil
	}

	frame, err := DecodeFITS(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return frame, nil
}

// DecodeFITS decodes the primary HDU of a FITS stream.
func DecodeFITS(r io.Reader) (*Frame, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("fits open: %w", err)
	}
	defer f.Close()

	hdu := f.HDU(0)
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("primary hdu is not an image")
	}

	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 {
		return nil, fmt.Errorf("expected 2 axes, got %d", len(axes))
	}
	width, height := axes[0], axes[1]
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("fits axes %dx%d", width, height)
	}

	// Read shrinks the destination to the element count but never grows it,
	// so the slice must be allocated at full size up front.
	data := make([]uint8, width*height)
	if err := img.Read(&data); err != nil {
		return nil, fmt.Errorf("fits read: %w", err)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("fits data is %d bytes, want %d", len(data), width*height)
	}

	return &Frame{Size: geom.ImageSize{Width: width, Height: height}, Pixels: data}, nil
}

// WriteFITS encodes a frame as an 8-bit FITS file, replacing any existing
// file at the path.
func WriteFITS(path string, frame *Frame) error {
	os.Remove(path)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create fits %s: %w", path, err)
	}
	defer f.Close()

	if err := EncodeFITS(f, frame); err != nil {
		return fmt.Errorf("encode fits %s: %w", path, err)
	}
	return nil
}

// EncodeFITS writes a frame's primary HDU to a stream.
func EncodeFITS(w io.Writer, frame *Frame) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("fits create: %w", err)
	}
	defer f.Close()

	img := fitsio.NewImage(8, []int{frame.Size.Width, frame.Size.Height})
	defer img.Close()

	if err := img.Write(&frame.Pixels); err != nil {
		return fmt.Errorf("fits write: %w", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("fits flush: %w", err)
	}
	return nil
}

// WidthFromHeight is the fan distortion function: the display width needed
// for a polar image of the given height on a ±60 degree fan.
func WidthFromHeight(height int) int {
	return int(math.Floor(1.732 * float64(height)))
}

// WriteCompressed stores a frame in the cache as <root>/<yyyy_mm_dd>/
// <name>.lz4, FITS-encoded then lz4-compressed.
func WriteCompressed(root, name string, year, month, day int, frame *Frame) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("%04d_%02d_%02d", year, month, day))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	var buf bytes.Buffer
	if err := EncodeFITS(&buf, frame); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name+".lz4")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	zw := lz4.NewWriter(out)
	if _, err := zw.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	return path, nil
}
