// Package datum pairs a data volume with its mask volume and carves the
// pair into fixed-depth training windows.
package datum
