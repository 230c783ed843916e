package groups

import (
	"fmt"
	"log"
	"math/rand"
	"sync"

	"github.com/sealhits/crabseal/internal/catalog"
	"github.com/sealhits/crabseal/internal/fsutil"
	"github.com/sealhits/crabseal/internal/geom"
	"github.com/sealhits/crabseal/internal/imagery"
)

// Origin records where an extract came from: the group, the sonar it was
// seen on, the class it maps to and the image geometry everything downstream
// is built against.
type Origin struct {
	Group    catalog.Group
	SonarID  int32
	ClassID  uint8
	ImgSize  geom.ImageSize
	CropSize geom.ImageSize
}

// Extract is one group's worth of raw material: its images in time order and
// the track points recorded against each image. Points[i] belongs to
// Images[i] and may be empty for frames where nothing was marked.
type Extract struct {
	Origin Origin
	Images []catalog.Image
	Points [][]catalog.Point
}

// FramesWithPoints counts the images that carry at least one track point.
func (e *Extract) FramesWithPoints() int {
	n := 0
	for _, pts := range e.Points {
		if len(pts) > 0 {
			n++
		}
	}
	return n
}

// Config holds everything the generator needs to pull and filter groups.
type Config struct {
	Driver     string
	DSN        string
	SonarIDs   []int32
	PathCache  fsutil.PathCache
	MinWindow  int
	Limit      int
	CropHeight int
	SQLFilter  string
	Workers    int
	ClassMap   fsutil.ClassMap
}

// Generator holds the accepted extracts for a run. Extracts are built once,
// up front, on a small worker pool; iteration afterwards is just a slice
// walk.
type Generator struct {
	extracts []*Extract
	next     int
}

// extractGroup builds an Extract for the first sonar that yields an
// acceptable track, or nil if no sonar does.
func extractGroup(cat *catalog.Catalog, group catalog.Group, cfg *Config) (*Extract, error) {
	for _, sonarID := range cfg.SonarIDs {
		images, err := cat.GroupImages(group.UID, sonarID)
		if err != nil {
			return nil, fmt.Errorf("images for group %s: %w", group.HUID, err)
		}

		points := make([][]catalog.Point, 0, len(images))
		tracked := 0
		first, last := -1, -1

		for idx, image := range images {
			pts, err := cat.ImagePoints(group.UID, image.UID)
			if err != nil {
				return nil, fmt.Errorf("points for group %s image %s: %w", group.HUID, image.UID, err)
			}
			points = append(points, pts)

			if len(pts) > 0 {
				tracked++
				if first == -1 {
					first = idx
				}
				last = idx
			}
		}

		// The track span must be stretchable to the minimum window by
		// interpolation, and needs more than three observed frames to be
		// worth smoothing.
		if len(images) == 0 || last-first < cfg.MinWindow || tracked <= 3 {
			continue
		}

		classID, ok := cfg.ClassMap[group.Code]
		if !ok {
			log.Printf("group %s on sonar %d has class %q outside code_to_class.csv",
				group.HUID, sonarID, group.Code)
			return nil, nil
		}

		// Probe the first image for the native size. Width is constant per
		// sonar; height occasionally drifts a few pixels, which cropping
		// later evens out.
		path, ok := cfg.PathCache.Find(images[0].Filename)
		if !ok {
			return nil, fmt.Errorf("group %s: image %s not in path cache", group.HUID, images[0].Filename)
		}
		frame, err := imagery.ReadFITS(path)
		if err != nil {
			return nil, fmt.Errorf("group %s: probe %s: %w", group.HUID, path, err)
		}

		return &Extract{
			Origin: Origin{
				Group:   group,
				SonarID: sonarID,
				ClassID: uint8(classID),
				ImgSize: frame.Size,
				CropSize: geom.ImageSize{
					Width:  frame.Size.Width,
					Height: cfg.CropHeight,
				},
			},
			Images: images,
			Points: points,
		}, nil
	}
	return nil, nil
}

// NewGenerator connects to the catalog, selects the candidate groups and
// builds their extracts concurrently. Each worker opens its own catalog
// connection.
func NewGenerator(cfg *Config) (*Generator, error) {
	cat, err := catalog.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	var candidates []catalog.Group
	switch {
	case cfg.Limit > 0:
		candidates, err = cat.GroupsLimit(cfg.Limit)
	case cfg.SQLFilter != "":
		log.Printf("selecting groups via filter query: %s", cfg.SQLFilter)
		candidates, err = cat.GroupsSQL(cfg.SQLFilter)
	default:
		candidates, err = cat.Groups()
	}
	if err != nil {
		return nil, fmt.Errorf("select groups: %w", err)
	}

	if cfg.MinWindow < 2 {
		cfg.MinWindow = 2
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	log.Printf("processing %d candidate groups on %d workers", len(candidates), workers)

	jobs := make(chan catalog.Group)
	results := make(chan *Extract)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wcat, err := catalog.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				errs <- fmt.Errorf("worker catalog connection: %w", err)
				for range jobs {
				}
				return
			}
			defer wcat.Close()

			for group := range jobs {
				extract, err := extractGroup(wcat, group, cfg)
				if err != nil {
					log.Printf("group %s skipped: %v", group.HUID, err)
					continue
				}
				if extract != nil {
					results <- extract
				}
			}
		}()
	}

	go func() {
		for _, group := range candidates {
			jobs <- group
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var extracts []*Extract
	for extract := range results {
		extracts = append(extracts, extract)
	}
	select {
	case err := <-errs:
		return nil, err
	default:
	}

	log.Printf("final group count: %d", len(extracts))
	return &Generator{extracts: extracts}, nil
}

// Size reports how many extracts the generator will yield.
func (g *Generator) Size() int {
	return len(g.extracts)
}

// Shuffle randomises the iteration order.
func (g *Generator) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(g.extracts), func(i, j int) {
		g.extracts[i], g.extracts[j] = g.extracts[j], g.extracts[i]
	})
}

// Next returns the next extract, or nil once the generator is exhausted.
func (g *Generator) Next() *Extract {
	if g.next >= len(g.extracts) {
		return nil
	}
	e := g.extracts[g.next]
	g.next++
	return e
}
