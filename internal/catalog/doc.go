// Package catalog provides read-only access to the sonar annotation
// database: groups of annotated detections, the images each group spans
// and the per-image track points.
package catalog
