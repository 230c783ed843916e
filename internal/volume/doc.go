// Package volume stacks a group's sonar frames into a 3D brick and carries
// the spatial extents that locate the brick within the original fan image.
// Volumes are built for both raw data and painted track masks, then trimmed,
// resized and cropped on their way to becoming training samples.
package volume
