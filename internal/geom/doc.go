// Package geom holds the bounding-box and coordinate types used throughout
// the dataset builder: bearing/distance boxes as recorded by the sonar
// annotation database, integer pixel boxes in the raw beam-by-range image,
// and the projections between them (bearing table lookup for X, linear
// range scaling for Y, and the polar fan projection used by sector masks).
//
// Raw images have X along the beam axis and Y along the range axis with a
// top-left origin. Negative bearings are clockwise; the raw X axis runs
// opposite to signed bearing, so the most positive bearing maps to the
// smallest X.
package geom
