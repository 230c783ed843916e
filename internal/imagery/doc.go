// Package imagery reads and writes the sonar frames themselves: FITS
// images, optionally lz4-compressed, plus the mask population checks used
// when filtering training data.
package imagery
