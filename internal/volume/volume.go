package volume

import (
	"fmt"
	"image"
	"log"
	"math"

	"golang.org/x/image/draw"

	"github.com/sealhits/crabseal/internal/fsutil"
	"github.com/sealhits/crabseal/internal/geom"
	"github.com/sealhits/crabseal/internal/groups"
	"github.com/sealhits/crabseal/internal/imagery"
	"github.com/sealhits/crabseal/internal/track"
)

// Extents locates a volume within the coordinate space of the original fan
// image. X,Y is the top-left corner, W,H the footprint at that resolution.
type Extents struct {
	X int
	Y int
	W int
	H int
}

// Volume is a depth-ordered stack of equally sized frames plus the extents
// and origin they were cut from.
type Volume struct {
	Frames  []*imagery.Frame
	Extents Extents
	Origin  *groups.Origin
}

// Depth returns the number of frames in the stack.
func (v *Volume) Depth() int {
	return len(v.Frames)
}

// Size returns the pixel size of the frames. All frames in a volume share
// one size.
func (v *Volume) Size() geom.ImageSize {
	if len(v.Frames) == 0 {
		return geom.ImageSize{}
	}
	return v.Frames[0].Size
}

// FromExtract reads every frame of an extract from disk and stacks them,
// cropped to the origin's crop height. Groups whose frames are shorter than
// the crop are rejected with a nil volume.
func FromExtract(e *groups.Extract, cache fsutil.PathCache) (*Volume, error) {
	origin := e.Origin
	cropW := origin.CropSize.Width
	cropH := origin.CropSize.Height

	frames := make([]*imagery.Frame, 0, len(e.Images))
	for _, img := range e.Images {
		path, ok := cache.Find(img.Filename)
		if !ok {
			return nil, fmt.Errorf("image %s not in path cache", img.Filename)
		}
		frame, err := imagery.ReadFITS(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if frame.Size.Height < cropH || frame.Size.Width < cropW {
			log.Printf("group %s: frame %s is %dx%d, below crop %dx%d",
				origin.Group.HUID, img.Filename,
				frame.Size.Width, frame.Size.Height, cropW, cropH)
			return nil, nil
		}

		cropped := imagery.NewFrame(geom.ImageSize{Width: cropW, Height: cropH})
		for row := 0; row < cropH; row++ {
			src := frame.Pixels[row*frame.Size.Width:]
			copy(cropped.Pixels[row*cropW:(row+1)*cropW], src[:cropW])
		}
		frames = append(frames, cropped)
	}

	return &Volume{
		Frames: frames,
		Extents: Extents{
			X: 0, Y: 0,
			W: origin.ImgSize.Width,
			H: origin.ImgSize.Height,
		},
		Origin: &origin,
	}, nil
}

// MaskFromTrack paints a track into a volume of class-id pixels at the
// origin's crop size. The volume spans the full group depth; frames the
// track does not touch stay empty.
func MaskFromTrack(t track.Track, origin *groups.Origin, depth int) *Volume {
	size := origin.CropSize
	frames := make([]*imagery.Frame, depth)
	for i := range frames {
		frames[i] = imagery.NewFrame(size)
	}

	for _, fb := range t {
		if fb.Frame < 0 || fb.Frame >= depth {
			continue
		}
		frame := frames[fb.Frame]
		for y := max(fb.Box.YMin, 0); y < min(fb.Box.YMax, size.Height); y++ {
			for x := max(fb.Box.XMin, 0); x < min(fb.Box.XMax, size.Width); x++ {
				frame.Set(x, y, origin.ClassID)
			}
		}
	}

	return &Volume{
		Frames: frames,
		Extents: Extents{
			X: 0, Y: 0,
			W: origin.ImgSize.Width,
			H: origin.ImgSize.Height,
		},
		Origin: origin,
	}
}

// SectorMaskFromTrack paints a track into a sector grid: the crop is divided
// into sector-sized cells and any cell the track touches takes the class id.
// Each mask frame holds one pixel per cell; the extents cover the sector
// footprint at full resolution. The volume spans the full group depth.
func SectorMaskFromTrack(t track.Track, origin *groups.Origin, sector, depth int) *Volume {
	cropW := origin.CropSize.Width
	cropH := origin.CropSize.Height
	numsW := cropW / sector
	numsH := cropH / sector
	size := geom.ImageSize{Width: numsW, Height: numsH}

	frames := make([]*imagery.Frame, depth)
	for i := range frames {
		frames[i] = imagery.NewFrame(size)
	}

	for _, fb := range t {
		if fb.Frame < 0 || fb.Frame >= depth {
			continue
		}
		frame := frames[fb.Frame]
		for y := max(fb.Box.YMin, 0); y < min(fb.Box.YMax, cropH); y++ {
			sy := y * numsH / cropH
			for x := max(fb.Box.XMin, 0); x < min(fb.Box.XMax, cropW); x++ {
				sx := x * numsW / cropW
				frame.Set(sx, sy, origin.ClassID)
			}
		}
	}

	return &Volume{
		Frames: frames,
		Extents: Extents{
			X: 0, Y: 0,
			W: numsW * sector,
			H: numsH * sector,
		},
		Origin: origin,
	}
}

// Trim cuts a volume down to the frames a track covers and renumbers the
// track to start at zero. The extents are unchanged.
func Trim(v *Volume, t track.Track) (*Volume, track.Track, error) {
	if len(t) == 0 {
		return nil, nil, fmt.Errorf("trim: empty track")
	}
	first := t.First()
	last := t.Last()
	if first < 0 || last >= len(v.Frames) {
		return nil, nil, fmt.Errorf("trim: track frames %d..%d outside volume depth %d",
			first, last, len(v.Frames))
	}

	nv := &Volume{
		Frames:  v.Frames[first : last+1],
		Extents: v.Extents,
		Origin:  v.Origin,
	}

	nt := make(track.Track, len(t))
	for i, fb := range t {
		nt[i] = geom.FrameBox{Frame: fb.Frame - first, Box: fb.Box}
	}
	return nv, nt, nil
}

// Resize scales every frame to the given width, keeping the aspect ratio,
// and scales the extents by the same factor. Pass draw.CatmullRom for data
// volumes and draw.NearestNeighbor for masks.
func Resize(v *Volume, width int, scaler draw.Scaler) *Volume {
	size := v.Size()
	height := int(math.Round(float64(size.Height) * float64(width) / float64(size.Width)))

	frames := make([]*imagery.Frame, 0, len(v.Frames))
	for _, frame := range v.Frames {
		if frame.Size.Width == width && frame.Size.Height == height {
			frames = append(frames, frame)
			continue
		}
		src := &image.Gray{
			Pix:    frame.Pixels,
			Stride: frame.Size.Width,
			Rect:   image.Rect(0, 0, frame.Size.Width, frame.Size.Height),
		}
		dst := image.NewGray(image.Rect(0, 0, width, height))
		scaler.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
		frames = append(frames, &imagery.Frame{
			Size:   geom.ImageSize{Width: width, Height: height},
			Pixels: dst.Pix,
		})
	}

	ratio := float64(v.Extents.W) / float64(width)
	return &Volume{
		Frames: frames,
		Extents: Extents{
			X: int(float64(v.Extents.X) / ratio),
			Y: int(float64(v.Extents.Y) / ratio),
			W: int(float64(v.Extents.W) / ratio),
			H: int(float64(v.Extents.H) / ratio),
		},
		Origin: v.Origin,
	}
}

// Crop cuts the given window from every frame, shifting the extents to
// match.
func Crop(v *Volume, x, y, w, h int) *Volume {
	frames := make([]*imagery.Frame, 0, len(v.Frames))
	for _, frame := range v.Frames {
		nf := imagery.NewFrame(geom.ImageSize{Width: w, Height: h})
		for row := 0; row < h; row++ {
			srcOff := (y+row)*frame.Size.Width + x
			copy(nf.Pixels[row*w:(row+1)*w], frame.Pixels[srcOff:srcOff+w])
		}
		frames = append(frames, nf)
	}
	return &Volume{
		Frames: frames,
		Extents: Extents{
			X: v.Extents.X + x,
			Y: v.Extents.Y + y,
			W: w,
			H: h,
		},
		Origin: v.Origin,
	}
}

// CropToSector crops the volume top-left to the largest width and height
// that divide evenly into sectors.
func CropToSector(v *Volume, sector int) *Volume {
	size := v.Size()
	w := (size.Width / sector) * sector
	h := (size.Height / sector) * sector
	nv := Crop(v, 0, 0, w, h)
	nv.Extents = Extents{X: v.Extents.X, Y: v.Extents.Y, W: w, H: h}
	return nv
}
