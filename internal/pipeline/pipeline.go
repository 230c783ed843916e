package pipeline

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/image/draw"

	"github.com/sealhits/crabseal/internal/datum"
	"github.com/sealhits/crabseal/internal/fsutil"
	"github.com/sealhits/crabseal/internal/geom"
	"github.com/sealhits/crabseal/internal/groups"
	"github.com/sealhits/crabseal/internal/sink"
	"github.com/sealhits/crabseal/internal/track"
	"github.com/sealhits/crabseal/internal/volume"
)

// Defaults shared by the drivers.
const (
	DefaultSectorSize = 32
	DefaultCropHeight = 1632
	DefaultRejectRate = 400.0
	DefaultBeams      = 512
)

// Options configures a pipeline run.
type Options struct {
	FITSPath   string
	OutPath    string
	Driver     string
	DSN        string
	Width      int
	SonarIDs   []int32
	Limit      int
	NumFrames  int
	Workers    int
	SQLFilter  string
	RejectRate float64
	SectorSize int
	CropHeight int
	BTablePath string
	CachePath  string
	Shuffle    bool
	Seed       int64
	RandomSize int

	// BearingTable, when non-nil, is used instead of loading BTablePath.
	BearingTable geom.BearingTable
}

// SetupLog tees the standard logger to stdout and output.log under the
// output path. The returned closer flushes the file.
func SetupLog(outPath string) (func(), error) {
	if err := os.MkdirAll(outPath, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outPath, err)
	}
	f, err := os.OpenFile(filepath.Join(outPath, "output.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return func() {
		log.SetOutput(os.Stdout)
		f.Close()
	}, nil
}

type run struct {
	opts      *Options
	cache     fsutil.PathCache
	table     geom.BearingTable
	generator *groups.Generator
	partition sink.Partition
	rng       *rand.Rand
}

func prepare(opts *Options) (*run, error) {
	if opts.SectorSize == 0 {
		opts.SectorSize = DefaultSectorSize
	}
	if opts.CropHeight == 0 {
		opts.CropHeight = DefaultCropHeight
	}

	if opts.CachePath == "" {
		opts.CachePath = fsutil.CacheFile
	}

	cache, err := fsutil.LoadOrBuild(opts.CachePath, opts.FITSPath)
	if err != nil {
		return nil, fmt.Errorf("path cache: %w", err)
	}
	log.Printf("path cache holds %d images", len(cache))

	classMap, err := fsutil.ReadClassMap(filepath.Join(opts.OutPath, "code_to_class.csv"))
	if err != nil {
		log.Printf("no class map at %s: %v; all groups will be skipped", opts.OutPath, err)
		classMap = fsutil.ClassMap{}
	}

	if err := fsutil.CreateImageDirs(opts.OutPath); err != nil {
		return nil, fmt.Errorf("image dirs: %w", err)
	}

	table := opts.BearingTable
	if table == nil {
		table, err = geom.LoadBearingTable(opts.BTablePath)
		if err != nil {
			return nil, fmt.Errorf("bearing table: %w", err)
		}
	}

	generator, err := groups.NewGenerator(&groups.Config{
		Driver:     opts.Driver,
		DSN:        opts.DSN,
		SonarIDs:   opts.SonarIDs,
		PathCache:  cache,
		MinWindow:  opts.NumFrames,
		Limit:      opts.Limit,
		CropHeight: opts.CropHeight,
		SQLFilter:  opts.SQLFilter,
		Workers:    opts.Workers,
		ClassMap:   classMap,
	})
	if err != nil {
		return nil, err
	}

	partition := sink.NewPartition(generator.Size())
	log.Printf("set sizes - train: %d, test: %d, val: %d",
		partition.Train, partition.Test,
		generator.Size()-partition.Train-partition.Test)

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	if opts.Shuffle {
		log.Printf("shuffling groups")
		generator.Shuffle(rng)
	}

	return &run{
		opts:      opts,
		cache:     cache,
		table:     table,
		generator: generator,
		partition: partition,
		rng:       rng,
	}, nil
}

// cleanTrack runs the shared track conditioning: interpolate, overlap,
// smooth, jitter test, then a second overlap pass over the smoothed boxes.
func (r *run) cleanTrack(e *groups.Extract) (track.Track, error) {
	raw, err := track.FromExtract(e, r.table)
	if err != nil {
		return nil, err
	}
	interped, err := raw.Interpolate(e.Origin.ImgSize)
	if err != nil {
		return nil, err
	}
	filled := interped.EnforceOverlap(e.Origin.ImgSize)
	smoothed := filled.Smooth(e.Origin.ImgSize)

	if r.opts.RejectRate > 0 && smoothed.Reject(r.opts.RejectRate) {
		return nil, nil
	}
	return smoothed.EnforceOverlap(e.Origin.ImgSize), nil
}

// Run executes the full-frame pipeline over every generated group.
func Run(opts *Options) error {
	r, err := prepare(opts)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(r.generator.Size()))
	count := 0
	for e := r.generator.Next(); e != nil; e = r.generator.Next() {
		if err := r.processGroup(e, count); err != nil {
			log.Printf("group %s: %v", e.Origin.Group.HUID, err)
		}
		bar.Add(1)
		count++
	}
	return nil
}

func (r *run) processGroup(e *groups.Extract, count int) error {
	cleaned, err := r.cleanTrack(e)
	if err != nil {
		return err
	}
	if cleaned == nil {
		log.Printf("group %s rejected: track too jittery", e.Origin.Group.HUID)
		return nil
	}

	vol, err := volume.FromExtract(e, r.cache)
	if err != nil {
		return err
	}
	if vol == nil {
		return nil
	}

	mask := volume.MaskFromTrack(cleaned, &e.Origin, vol.Depth())
	dataResized := volume.Resize(vol, r.opts.Width, draw.CatmullRom)
	maskResized := volume.Resize(mask, r.opts.Width, draw.NearestNeighbor)

	d, err := datum.Combine(dataResized, maskResized)
	if err != nil {
		return err
	}
	if datum.RejectNoMask(d) {
		log.Printf("group %s rejected: not enough mask", e.Origin.Group.HUID)
		return nil
	}

	trimData, _, err := volume.Trim(dataResized, cleaned)
	if err != nil {
		return err
	}
	trimMask, _, err := volume.Trim(maskResized, cleaned)
	if err != nil {
		return err
	}
	trimmed, err := datum.Combine(trimData, trimMask)
	if err != nil {
		return err
	}

	imgDir, txtPath := sink.Dirs(r.opts.OutPath, r.partition.Set(count))
	if err := sink.WritePNG(trimmed, imgDir); err != nil {
		return err
	}
	if err := sink.AppendHUID(txtPath, e.Origin.Group.HUID); err != nil {
		return err
	}

	slices, err := datum.SliceOverlap(trimmed, r.opts.NumFrames)
	if err != nil {
		log.Printf("group %s: %v", e.Origin.Group.HUID, err)
		return nil
	}
	if err := sink.WriteNPZ(slices, imgDir, ""); err != nil {
		return err
	}

	// Optional background augmentation: random co-aligned crops from the
	// trimmed pair.
	if r.opts.RandomSize > 0 {
		crops := datum.SplitRandom(trimData, trimMask, r.opts.RandomSize, r.rng)
		if err := sink.WriteNPZ(crops, imgDir, "rand"); err != nil {
			return err
		}
	}
	return nil
}

// RunSector executes the sector-grid pipeline over every generated group.
func RunSector(opts *Options) error {
	r, err := prepare(opts)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(r.generator.Size()))
	count := 0
	for e := r.generator.Next(); e != nil; e = r.generator.Next() {
		if err := r.processSectorGroup(e, count); err != nil {
			log.Printf("group %s: %v", e.Origin.Group.HUID, err)
		}
		bar.Add(1)
		count++
	}
	return nil
}

func (r *run) processSectorGroup(e *groups.Extract, count int) error {
	cleaned, err := r.cleanTrack(e)
	if err != nil {
		return err
	}
	if cleaned == nil {
		log.Printf("group %s rejected: track too jittery", e.Origin.Group.HUID)
		return nil
	}

	vol, err := volume.FromExtract(e, r.cache)
	if err != nil {
		return err
	}
	if vol == nil {
		return nil
	}

	mask := volume.SectorMaskFromTrack(cleaned, &e.Origin, r.opts.SectorSize, vol.Depth())
	dataCropped := volume.CropToSector(vol, r.opts.SectorSize)
	dataResized := volume.Resize(dataCropped, r.opts.Width, draw.CatmullRom)

	trimData, _, err := volume.Trim(dataResized, cleaned)
	if err != nil {
		return err
	}
	trimMask, _, err := volume.Trim(mask, cleaned)
	if err != nil {
		return err
	}
	trimOG, _, err := volume.Trim(vol, cleaned)
	if err != nil {
		return err
	}

	trimmed, err := datum.Combine(trimData, trimMask)
	if err != nil {
		return err
	}
	ogTrimmed, err := datum.Combine(trimOG, trimMask)
	if err != nil {
		return err
	}

	if datum.RejectNoMaskTiny(trimmed) {
		log.Printf("group %s rejected: empty sector mask", e.Origin.Group.HUID)
		return nil
	}

	set := r.partition.Set(count)
	imgDir, txtPath := sink.Dirs(r.opts.OutPath, set)
	if err := sink.WritePNG(trimmed, imgDir); err != nil {
		return err
	}
	if err := sink.AppendHUID(txtPath, e.Origin.Group.HUID); err != nil {
		return err
	}

	// Training windows overlap for coverage; held-out sets stay disjoint at
	// sector resolution but keep overlap at full resolution.
	var halves []*datum.Datum
	if set == "train" {
		halves, err = datum.SliceOverlap(trimmed, r.opts.NumFrames)
	} else {
		halves, err = datum.Slice(trimmed, r.opts.NumFrames)
	}
	if err != nil {
		log.Printf("group %s: %v", e.Origin.Group.HUID, err)
		return nil
	}
	if err := sink.WriteNPZ(halves, imgDir, "half"); err != nil {
		return err
	}

	larges, err := datum.SliceOverlap(ogTrimmed, r.opts.NumFrames)
	if err != nil {
		log.Printf("group %s: %v", e.Origin.Group.HUID, err)
		return nil
	}
	return sink.WriteNPZ(larges, imgDir, "large")
}
