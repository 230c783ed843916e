// Command trackplot renders the raw and smoothed centroid trajectory of a
// single group to a PNG, for eyeballing what the track conditioning does.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sealhits/crabseal/internal/catalog"
	"github.com/sealhits/crabseal/internal/fsutil"
	"github.com/sealhits/crabseal/internal/geom"
	"github.com/sealhits/crabseal/internal/groups"
	"github.com/sealhits/crabseal/internal/imagery"
	"github.com/sealhits/crabseal/internal/track"
)

func centroids(t track.Track) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i, fb := range t {
		cx, cy := fb.Box.Centre()
		pts[i].X = float64(cx)
		pts[i].Y = float64(cy)
	}
	return pts
}

func loadExtract(cat *catalog.Catalog, huid string, sonarID int32, cache fsutil.PathCache) (*groups.Extract, error) {
	group, err := cat.GroupByHUID(huid)
	if err != nil {
		return nil, err
	}
	images, err := cat.GroupImages(group.UID, sonarID)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("group %s has no images on sonar %d", huid, sonarID)
	}

	points := make([][]catalog.Point, 0, len(images))
	for _, img := range images {
		pts, err := cat.ImagePoints(group.UID, img.UID)
		if err != nil {
			return nil, err
		}
		points = append(points, pts)
	}

	path, ok := cache.Find(images[0].Filename)
	if !ok {
		return nil, fmt.Errorf("image %s not in path cache", images[0].Filename)
	}
	frame, err := imagery.ReadFITS(path)
	if err != nil {
		return nil, err
	}

	return &groups.Extract{
		Origin: groups.Origin{
			Group:    group,
			SonarID:  sonarID,
			ImgSize:  frame.Size,
			CropSize: frame.Size,
		},
		Images: images,
		Points: points,
	}, nil
}

func main() {
	huid := flag.String("huid", "", "Group huid to plot")
	sonarID := flag.Int("sonarid", 854, "Sonar id to plot")
	fitsPath := flag.String("fitspath", ".", "Root directory of the FITS image store")
	out := flag.String("out", "track.png", "Output PNG path")
	dbName := flag.String("dbname", "sealhits", "Annotation database name")
	dbUser := flag.String("dbuser", "sealhits", "Annotation database user")
	dbPass := flag.String("dbpass", "", "Annotation database password")
	dbHost := flag.String("dbhost", "localhost", "Annotation database host")
	btable := flag.String("btable", "btable.dat", "Bearing table file")
	flag.Parse()

	if *huid == "" {
		fmt.Fprintln(os.Stderr, "a group huid is required")
		os.Exit(1)
	}

	cat, err := catalog.Open("postgres", catalog.DSN(*dbUser, *dbPass, *dbHost, *dbName))
	if err != nil {
		log.Fatal(err)
	}
	defer cat.Close()

	cache, err := fsutil.LoadOrBuild(fsutil.CacheFile, *fitsPath)
	if err != nil {
		log.Fatal(err)
	}

	table, err := geom.LoadBearingTable(*btable)
	if err != nil {
		log.Fatal(err)
	}

	extract, err := loadExtract(cat, *huid, int32(*sonarID), cache)
	if err != nil {
		log.Fatal(err)
	}

	raw, err := track.FromExtract(extract, table)
	if err != nil {
		log.Fatal(err)
	}
	interped, err := raw.Interpolate(extract.Origin.ImgSize)
	if err != nil {
		log.Fatal(err)
	}
	smoothed := interped.EnforceOverlap(extract.Origin.ImgSize).Smooth(extract.Origin.ImgSize)

	p := plot.New()
	p.Title.Text = *huid
	p.X.Label.Text = "x (pixels)"
	p.Y.Label.Text = "y (pixels)"

	rawLine, err := plotter.NewLine(centroids(raw))
	if err != nil {
		log.Fatal(err)
	}
	smoothLine, err := plotter.NewLine(centroids(smoothed))
	if err != nil {
		log.Fatal(err)
	}
	smoothLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(rawLine, smoothLine)
	p.Legend.Add("raw", rawLine)
	p.Legend.Add("smoothed", smoothLine)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, *out); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", *out)
}
