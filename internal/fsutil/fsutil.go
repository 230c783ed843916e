// Package fsutil locates sonar frames on disk and manages the small
// bookkeeping files the dataset builder keeps alongside its output: the
// image path cache, the class code map and the per-set image directories.
package fsutil

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// CacheFile is the name of the path cache written next to the working
// directory. Rebuilding it means walking the whole FITS archive, which is
// slow over network mounts, so it persists between runs.
const CacheFile = "crabseal.cache"

// PathCache maps a FITS filename, without any .lz4 suffix, to its full
// path on disk.
type PathCache map[string]string

// BuildPathCache walks the filesystem under root collecting every regular
// file. Keys are bare filenames with the .lz4 suffix stripped, so lookups
// by catalog filename find compressed and uncompressed frames alike.
func BuildPathCache(fsys fs.FS, root string) (PathCache, error) {
	cache := PathCache{}
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key := strings.TrimSuffix(d.Name(), ".lz4")
		cache[key] = filepath.Join(root, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return cache, nil
}

// LoadPathCache reads a previously saved cache: one `filename,fullpath`
// line per file.
func LoadPathCache(path string) (PathCache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open path cache: %w", err)
	}
	defer f.Close()

	cache := PathCache{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, full, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("bad cache line %q in %s", line, path)
		}
		cache[name] = full
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read path cache: %w", err)
	}
	return cache, nil
}

// Save writes the cache to path, sorted for stable diffs.
func (c PathCache) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create path cache: %w", err)
	}
	defer f.Close()

	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	for _, k := range keys {
		fmt.Fprintf(w, "%s,%s\n", k, c[k])
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write path cache: %w", err)
	}
	return nil
}

// Find resolves a catalog filename to a path on disk.
func (c PathCache) Find(name string) (string, bool) {
	path, ok := c[strings.TrimSuffix(name, ".lz4")]
	return path, ok
}

// LoadOrBuild prefers an existing cache file and otherwise walks the FITS
// root and saves the result for next time.
func LoadOrBuild(cachePath, fitsRoot string) (PathCache, error) {
	if _, err := os.Stat(cachePath); err == nil {
		return LoadPathCache(cachePath)
	}
	cache, err := BuildPathCache(os.DirFS(fitsRoot), fitsRoot)
	if err != nil {
		return nil, err
	}
	if err := cache.Save(cachePath); err != nil {
		return nil, err
	}
	return cache, nil
}

// ClassMap maps a group's class code to its integer class id.
type ClassMap map[string]int

// ReadClassMap loads a code_to_class.csv. The first row is a header.
func ReadClassMap(path string) (ClassMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class map: %w", err)
	}
	defer f.Close()

	rdr := csv.NewReader(f)
	records, err := rdr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse class map %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("class map %s is empty", path)
	}

	classes := ClassMap{}
	for _, rec := range records[1:] {
		if len(rec) < 2 {
			return nil, fmt.Errorf("class map %s: short record %v", path, rec)
		}
		id, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("class map %s: %w", path, err)
		}
		classes[rec[0]] = id
	}
	return classes, nil
}

// Write saves the map as code_to_class.csv under dir, sorted by class id.
func (m ClassMap) Write(dir string) error {
	path := filepath.Join(dir, "code_to_class.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create class map: %w", err)
	}
	defer f.Close()

	type pair struct {
		code string
		id   int
	}
	pairs := make([]pair, 0, len(m))
	for code, id := range m {
		pairs = append(pairs, pair{code, id})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	w := csv.NewWriter(f)
	if err := w.Write([]string{"code", "class"}); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := w.Write([]string{p.code, strconv.Itoa(p.id)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// CreateImageDirs makes the output tree: images/ with train, test and val
// beneath it.
func CreateImageDirs(base string) error {
	for _, set := range []string{"train", "test", "val"} {
		if err := os.MkdirAll(filepath.Join(base, "images", set), 0o755); err != nil {
			return fmt.Errorf("create image dirs: %w", err)
		}
	}
	return nil
}
