// Package track derives per-frame bounding box tracks from a group's
// detections and cleans them up: interpolation over unmarked frames,
// overlap enforcement between consecutive boxes, Kalman smoothing and a
// jitter-based rejection test.
package track
