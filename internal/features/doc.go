// Package features turns a fixed-geometry raster into a numeric fingerprint.
//
// Three extractors each produce one segment of the fingerprint: a joint HSV
// color histogram, a dominant color palette, and a HOG shape descriptor. The
// Fuser concatenates the segments in that order and refuses to mix lengths
// within a batch. Normalize rescales the fused matrix before clustering.
package features
