// Package pipeline wires the dataset builders together: catalog groups in,
// PNG previews, NPZ volumes and set listings out. Run produces full-frame
// mask datasets; RunSector produces the pixelated sector-grid variant.
package pipeline
