// Package sink writes finished datums to disk: squashed PNG previews, NPZ
// volumes for training and the per-set HUID listings. It also decides which
// dataset split a group lands in.
package sink
