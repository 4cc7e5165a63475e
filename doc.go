// Package flct estimates a two-dimensional velocity field between two
// time-separated scalar images using Fourier Local Correlation Tracking.
//
// Responsibilities: per-location window extraction and Gaussian
// apodization, FFT cross-correlation with optional low-pass filtering,
// sub-pixel peak refinement, bias correction, threshold and skip/
// interpolation policy, and the plate carree latitude-scaled variant.
// Key types: Image, Params, VelocityField.
//
// The binary image container read and written by ReadPair, ReadTriple,
// WritePair and WriteTriple is the same fixed layout used by the FLCT
// tooling ecosystem: a three-word header (array count, x extent,
// y extent) followed by float32 samples.
package flct
