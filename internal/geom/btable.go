package geom

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
)

// BearingTable maps beam index to bearing in radians. Entries run from the
// most positive bearing at index 0 to the most negative at the end, one
// per beam, strictly decreasing.
type BearingTable []float64

// LoadBearingTable reads a table file with one radian value per line.
func LoadBearingTable(path string) (BearingTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bearing table: %w", err)
	}
	defer f.Close()

	var table BearingTable
	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("parse bearing table %s entry %d: %w", path, len(table)+1, err)
		}
		table = append(table, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read bearing table: %w", err)
	}
	if len(table) < 2 {
		return nil, fmt.Errorf("bearing table %s has %d entries, need at least 2", path, len(table))
	}
	return table, nil
}

// Index returns the beam whose bearing interval contains b: the largest i
// with table[i] >= b > table[i+1], or 0 when b falls outside the table.
func (t BearingTable) Index(b float64) int {
	for i := 0; i < len(t)-1; i++ {
		if t[i] >= b && t[i+1] < b {
			return i
		}
	}
	return 0
}

// SyntheticTable builds a table with beams spaced uniformly in the sine of
// the bearing across the fan, which matches the beamforming geometry of
// the deployed sonars. Used when no measured table is available.
func SyntheticTable(beams int) BearingTable {
	table := make(BearingTable, beams)
	s := math.Sin(MaxAngle)
	for i := range table {
		table[i] = math.Asin(s * (1.0 - 2.0*float64(i)/float64(beams-1)))
	}
	return table
}
