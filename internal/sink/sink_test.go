package sink

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealhits/crabseal/internal/catalog"
	"github.com/sealhits/crabseal/internal/datum"
	"github.com/sealhits/crabseal/internal/geom"
	"github.com/sealhits/crabseal/internal/groups"
	"github.com/sealhits/crabseal/internal/imagery"
	"github.com/sealhits/crabseal/internal/volume"
)

func testDatum(t *testing.T) *datum.Datum {
	t.Helper()
	origin := &groups.Origin{
		Group:   catalog.Group{HUID: "2023_05_01_A"},
		SonarID: 854,
	}
	size := geom.ImageSize{Width: 8, Height: 8}

	mk := func(fill uint8) *imagery.Frame {
		f := imagery.NewFrame(size)
		for i := range f.Pixels {
			f.Pixels[i] = fill
		}
		return f
	}

	base := &volume.Volume{
		Frames:  []*imagery.Frame{mk(100), mk(60)},
		Extents: volume.Extents{X: 1, Y: 2, W: 8, H: 8},
		Origin:  origin,
	}
	maskFrame := imagery.NewFrame(size)
	maskFrame.Set(3, 4, 2)
	mask := &volume.Volume{
		Frames:  []*imagery.Frame{maskFrame, imagery.NewFrame(size)},
		Extents: volume.Extents{X: 1, Y: 2, W: 8, H: 8},
		Origin:  origin,
	}

	d, err := datum.Combine(base, mask)
	require.NoError(t, err)
	return d
}

func TestWritePNG(t *testing.T) {
	dir := t.TempDir()
	d := testDatum(t)
	require.NoError(t, WritePNG(d, dir))

	f, err := os.Open(filepath.Join(dir, "2023_05_01_A_01-02-09-10_base.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(20), g>>8)
	assert.Equal(t, uint32(80), b>>8)

	mf, err := os.Open(filepath.Join(dir, "2023_05_01_A_01-02-09-10_mask.png"))
	require.NoError(t, err)
	defer mf.Close()
	mimg, err := png.Decode(mf)
	require.NoError(t, err)

	mr, _, _, _ := mimg.At(3, 4).RGBA()
	assert.Equal(t, uint32(255), mr>>8)
	zr, _, _, _ := mimg.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), zr>>8)
}

func TestWriteNPZ(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images", "train")
	d := testDatum(t)

	require.NoError(t, WriteNPZ([]*datum.Datum{d}, dir, "half"))

	base, err := os.ReadFile(filepath.Join(dir, "2023_05_01_A_00_01-02-09-10_854_half_base.npz"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(base, []byte("\x93NUMPY")))

	// Depth-major u8 payload sits at the end of the file.
	payload := make([]byte, 0, 128)
	for i := 0; i < 64; i++ {
		payload = append(payload, 100)
	}
	for i := 0; i < 64; i++ {
		payload = append(payload, 60)
	}
	assert.True(t, bytes.HasSuffix(base, payload))

	_, err = os.Stat(filepath.Join(dir, "2023_05_01_A_00_01-02-09-10_854_half_mask.npz"))
	assert.NoError(t, err)
}

func TestAppendHUID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "set_train.txt")
	require.NoError(t, AppendHUID(path, "2023_05_01_A"))
	require.NoError(t, AppendHUID(path, "2023_05_01_B"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2023_05_01_A\n2023_05_01_B\n", string(content))
}

func TestPartition(t *testing.T) {
	p := NewPartition(100)
	assert.Equal(t, 80, p.Train)
	assert.Equal(t, 16, p.Test)

	assert.Equal(t, "train", p.Set(0))
	assert.Equal(t, "train", p.Set(79))
	assert.Equal(t, "test", p.Set(80))
	assert.Equal(t, "test", p.Set(95))
	assert.Equal(t, "val", p.Set(96))

	small := NewPartition(1)
	assert.Equal(t, "val", small.Set(0))
}

func TestDirs(t *testing.T) {
	imgDir, txtPath := Dirs("/data/out", "train")
	assert.Equal(t, filepath.Join("/data/out", "images", "train"), imgDir)
	assert.Equal(t, filepath.Join("/data/out", "set_train.txt"), txtPath)
}
