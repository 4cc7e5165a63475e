package flct

import "math"

// Window geometry and apodization weights. Windows are square boxes of
// half-width ceil(3*sigma) clamped to the image bounds; beyond three
// standard deviations the Gaussian weight is below 1.2% and contributes
// nothing the correlation peak can resolve.

// windowHalf returns the window half-width for an apodization width
// sigma.
func windowHalf(sigma float64) int {
	return int(math.Ceil(3 * sigma))
}

// windowBox returns the clamped window bounds [lo, hi] centered at c
// along an axis of n samples with half-width h.
func windowBox(c, h, n int) (lo, hi int) {
	lo = c - h
	if lo < 0 {
		lo = 0
	}
	hi = c + h
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

// gaussLine fills w[k] with the Gaussian weight of axis position lo+k
// relative to the window center c. sigma must be positive.
func gaussLine(w []float64, lo, c int, sigma float64) {
	inv := 1 / (2 * sigma * sigma)
	for k := range w {
		d := float64(lo + k - c)
		w[k] = math.Exp(-d * d * inv)
	}
}

// lowpassLine fills w[k] with the Gaussian low-pass response at wrapped
// wavenumber k for an axis of n samples, cut off at kr times the
// Nyquist wavenumber n/2.
func lowpassLine(w []float64, n int, kr float64) {
	kmax := float64(n) / 2
	for k := range w {
		kk := k
		if kk > n/2 {
			kk -= n
		}
		r := float64(kk) / (kr * kmax)
		w[k] = math.Exp(-r * r)
	}
}
