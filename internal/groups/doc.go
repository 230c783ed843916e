// Package groups turns catalogued sighting groups into extracts ready for
// dataset building. A generator pulls groups from the catalog on a worker
// pool, loads their images and per-image track points, and applies the
// acceptance rules that weed out groups too sparse to train on.
package groups
