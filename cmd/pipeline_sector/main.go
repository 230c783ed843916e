// Command pipeline_sector builds the sector-grid variant of the sonar
// training dataset: masks are pixelated onto sector cells and each group
// yields both sector-space and full-resolution NPZ slices.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sealhits/crabseal/internal/catalog"
	"github.com/sealhits/crabseal/internal/pipeline"
)

func parseSonarIDs(s string) ([]int32, error) {
	parts := strings.Split(s, ",")
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid sonar id %q: %w", p, err)
		}
		out = append(out, int32(v))
	}
	return out, nil
}

func readSQLFilter(path string) (string, error) {
	if path == "" || path == "none" {
		return "", nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read filter %s: %w", path, err)
	}
	return strings.TrimSpace(string(content)), nil
}

func main() {
	fitsPath := flag.String("fitspath", ".", "Root directory of the FITS image store")
	outPath := flag.String("outpath", ".", "Output directory for the dataset")
	dbName := flag.String("dbname", "sealhits", "Annotation database name")
	dbUser := flag.String("dbuser", "sealhits", "Annotation database user")
	dbPass := flag.String("dbpass", "", "Annotation database password")
	dbHost := flag.String("dbhost", "localhost", "Annotation database host")
	width := flag.Int("width", 0, "Target frame width in pixels (minimum 32)")
	sonarIDs := flag.String("sonarids", "853,854", "Comma-separated sonar ids to consider")
	limit := flag.Int("limit", 0, "Limit on the number of groups (0 for all)")
	numFrames := flag.Int("numframes", 16, "Slice depth in frames")
	threads := flag.Int("threads", 6, "Worker threads for group extraction")
	sqlFilter := flag.String("sqlfilter", "none", "File holding a groups selection query")
	rejectRate := flag.Float64("rejectrate", pipeline.DefaultRejectRate, "Track variance rejection threshold (0 disables)")
	btable := flag.String("btable", "btable.dat", "Bearing table file")
	sectorSize := flag.Int("sectorsize", pipeline.DefaultSectorSize, "Sector cell size in pixels")
	flag.Parse()

	if *width < 32 {
		fmt.Fprintln(os.Stderr, "width must be at least 32 pixels")
		os.Exit(1)
	}

	closeLog, err := pipeline.SetupLog(*outPath)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	ids, err := parseSonarIDs(*sonarIDs)
	if err != nil {
		log.Fatal(err)
	}
	query, err := readSQLFilter(*sqlFilter)
	if err != nil {
		log.Fatal(err)
	}

	opts := &pipeline.Options{
		FITSPath:   *fitsPath,
		OutPath:    *outPath,
		Driver:     "postgres",
		DSN:        catalog.DSN(*dbUser, *dbPass, *dbHost, *dbName),
		Width:      *width,
		SonarIDs:   ids,
		Limit:      *limit,
		NumFrames:  *numFrames,
		Workers:    *threads,
		SQLFilter:  query,
		RejectRate: *rejectRate,
		BTablePath: *btable,
		SectorSize: *sectorSize,
	}

	if err := pipeline.RunSector(opts); err != nil {
		log.Fatal(err)
	}
}
