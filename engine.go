package flct

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// The correlation engine measures the displacement between two images
// at one grid location: both images are windowed around the location,
// mean-subtracted and Gaussian-apodized, cross-correlated through FFTs,
// and the correlation peak is refined to sub-pixel precision by a
// per-axis parabolic fit. Displacement converts to velocity in
// deltas/deltat units.
//
// Lag convention: the correlation surface is indexed by circular lag,
// and a peak at lag +d means the second image's content sits d pixels
// further along the positive axis than the first's.

const (
	// pcMinCos masks plate carree rows whose latitude is within ~0.6
	// degrees of a pole, where the window stretch and the vx rescale
	// blow up.
	pcMinCos = 0.01

	// biasFloor caps the bias correction divisor, bounding the
	// correction at a factor of ten near |d| ~ sigma.
	biasFloor = 0.1
)

var (
	backendOnce sync.Once
	backendErr  error
)

// checkBackend probes the FFT backend once per process with a known
// four-point transform: a delta sequence must come out as a flat
// spectrum. On failure every Track call reports ErrMissingDependency
// before looking at its arguments.
func checkBackend() error {
	backendOnce.Do(func() {
		fft := fourier.NewCmplxFFT(4)
		got := make([]complex128, 4)
		fft.Coefficients(got, []complex128{1, 0, 0, 0})
		for _, v := range got {
			if cmplx.Abs(v-1) > 1e-9 {
				backendErr = ErrMissingDependency
				return
			}
		}
	})
	return backendErr
}

// correlator holds the per-worker state for measuring locations: FFT
// plans keyed by window extent and scratch buffers grown to the largest
// window seen. Workers never share a correlator; the images, config and
// latitude table are shared read-only.
type correlator struct {
	im1, im2  *Image
	cfg       *config
	cosLat    []float64 // per-row cos(latitude), 1.0 everywhere in planar mode
	effThresh float64
	hy        int // window half-width along y

	plans      map[int]*fourier.CmplxFFT
	w1, w2, cs []complex128
	col        []complex128
	gx, gy     []float64
	fx, fy     []float64
}

func newCorrelator(im1, im2 *Image, cfg *config, cosLat []float64, effThresh float64) *correlator {
	return &correlator{
		im1:       im1,
		im2:       im2,
		cfg:       cfg,
		cosLat:    cosLat,
		effThresh: effThresh,
		hy:        windowHalf(cfg.sigma),
		plans:     make(map[int]*fourier.CmplxFFT),
	}
}

// measure computes the velocity at image location (i, j). computed is
// false when the location is gated out, below the signal threshold or
// outside the plate carree latitude domain; those are mask outcomes,
// not errors.
func (c *correlator) measure(i, j int) (vx, vy float64, computed bool, err error) {
	nx, ny := c.im1.NX, c.im1.NY

	cl := c.cosLat[j]
	if cl < pcMinCos {
		return 0, 0, false, nil
	}

	var x0, x1, y0, y1 int
	sigmaX := c.cfg.sigma
	if c.cfg.sigma == 0 {
		x1, y1 = nx-1, ny-1
	} else {
		sigmaX = c.cfg.sigma / cl
		x0, x1 = windowBox(i, windowHalf(sigmaX), nx)
		y0, y1 = windowBox(j, c.hy, ny)
	}
	wx, wy := x1-x0+1, y1-y0+1
	if wx < 2 || wy < 2 {
		return 0, 0, false, &ComputationError{I: i, J: j, Reason: fmt.Sprintf("correlation window %dx%d is too small", wx, wy)}
	}

	// Extract both windows and accumulate their means. The correlation
	// operates on mean-subtracted samples so the DC component cannot
	// dominate the cross spectrum.
	n := wx * wy
	c.grow(wx, wy)
	var sum1, sum2, sumAbs float64
	for u := 0; u < wx; u++ {
		base := (x0+u)*ny + y0
		row1 := c.im1.Data[base : base+wy]
		row2 := c.im2.Data[base : base+wy]
		for v := 0; v < wy; v++ {
			f1, f2 := row1[v], row2[v]
			if !isFinite(f1) || !isFinite(f2) {
				return 0, 0, false, &ComputationError{I: i, J: j, Reason: fmt.Sprintf("non-finite sample at (%d, %d)", x0+u, y0+v)}
			}
			sum1 += f1
			sum2 += f2
			sumAbs += math.Abs(f1) + math.Abs(f2)
			k := u*wy + v
			c.w1[k] = complex(f1, 0)
			c.w2[k] = complex(f2, 0)
		}
	}

	// Signal gate: the average absolute value at the center pixel, or
	// over the whole image when a single global window is in use.
	ave := 0.5 * (math.Abs(c.im1.Data[i*ny+j]) + math.Abs(c.im2.Data[i*ny+j]))
	if c.cfg.sigma == 0 {
		ave = sumAbs / float64(2*n)
	}
	if ave < c.effThresh {
		return 0, 0, false, nil
	}

	mean1 := complex(sum1/float64(n), 0)
	mean2 := complex(sum2/float64(n), 0)
	if c.cfg.sigma > 0 {
		gaussLine(c.gx, x0, i, sigmaX)
		gaussLine(c.gy, y0, j, c.cfg.sigma)
		for u := 0; u < wx; u++ {
			for v := 0; v < wy; v++ {
				k := u*wy + v
				g := complex(c.gx[u]*c.gy[v], 0)
				c.w1[k] = (c.w1[k] - mean1) * g
				c.w2[k] = (c.w2[k] - mean2) * g
			}
		}
	} else {
		for k := 0; k < n; k++ {
			c.w1[k] -= mean1
			c.w2[k] -= mean2
		}
	}

	c.fft2(c.w1, wx, wy, true)
	c.fft2(c.w2, wx, wy, true)

	if c.cfg.filter {
		lowpassLine(c.fx, wx, c.cfg.kr)
		lowpassLine(c.fy, wy, c.cfg.kr)
		for u := 0; u < wx; u++ {
			for v := 0; v < wy; v++ {
				k := u*wy + v
				f := complex(c.fx[u]*c.fy[v], 0)
				c.w1[k] *= f
				c.w2[k] *= f
			}
		}
	}

	// Cross-power spectrum; its inverse transform is the circular
	// cross-correlation surface over displacement lags.
	for k := 0; k < n; k++ {
		c.cs[k] = cmplx.Conj(c.w1[k]) * c.w2[k]
	}
	c.fft2(c.cs, wx, wy, false)

	// Integer peak. The scan starts at zero lag and replaces only on a
	// strictly greater value, so zero lag wins ties and identical
	// windows always report zero shift.
	best := real(c.cs[0])
	pu, pv := 0, 0
	for u := 0; u < wx; u++ {
		for v := 0; v < wy; v++ {
			if val := real(c.cs[u*wy+v]); val > best {
				best, pu, pv = val, u, v
			}
		}
	}

	dx := float64(signedLag(pu, wx)) + c.peakFrac(pu, pv, wx, wy, true)
	dy := float64(signedLag(pv, wy)) + c.peakFrac(pu, pv, wx, wy, false)

	if c.cfg.biasCorrect && c.cfg.sigma > 0 {
		// Windowed correlation underestimates the true shift; scale the
		// measured vector back up.
		den := 1 - (dx*dx+dy*dy)/(c.cfg.sigma*c.cfg.sigma)
		if den < biasFloor {
			den = biasFloor
		}
		dx /= den
		dy /= den
	}

	rate := c.cfg.deltaS / c.cfg.deltaT
	return dx * rate * cl, dy * rate, true, nil
}

// peakFrac refines the integer peak along one axis by a parabola
// through the peak and its two circular neighbors. The fraction is zero
// when the peak sits at the extreme representable lag (its neighbors
// cross the circular seam) or the stencil is not concave.
func (c *correlator) peakFrac(pu, pv, wx, wy int, alongX bool) float64 {
	p, n := pv, wy
	if alongX {
		p, n = pu, wx
	}
	s := signedLag(p, n)
	if s <= -((n-1)/2) || s >= n/2 {
		return 0
	}
	var a, b, d float64
	if alongX {
		a = real(c.cs[((p-1+n)%n)*wy+pv])
		b = real(c.cs[p*wy+pv])
		d = real(c.cs[((p+1)%n)*wy+pv])
	} else {
		a = real(c.cs[pu*wy+(p-1+n)%n])
		b = real(c.cs[pu*wy+p])
		d = real(c.cs[pu*wy+(p+1)%n])
	}
	den := a - 2*b + d
	if den >= 0 {
		return 0
	}
	return (a - d) / (2 * den)
}

// fft2 transforms buf, a wx by wy grid flattened as buf[u*wy+v], in place
// by transforming the wy-length rows and then the wx-length columns.
// Transforms are unnormalized: a forward/inverse round trip scales the
// grid by wx*wy, which cancels in peak location and parabola ratios.
func (c *correlator) fft2(buf []complex128, wx, wy int, forward bool) {
	rowFFT := c.plan(wy)
	for u := 0; u < wx; u++ {
		row := buf[u*wy : (u+1)*wy]
		if forward {
			rowFFT.Coefficients(row, row)
		} else {
			rowFFT.Sequence(row, row)
		}
	}
	colFFT := c.plan(wx)
	col := c.col[:wx]
	for v := 0; v < wy; v++ {
		for u := 0; u < wx; u++ {
			col[u] = buf[u*wy+v]
		}
		if forward {
			colFFT.Coefficients(col, col)
		} else {
			colFFT.Sequence(col, col)
		}
		for u := 0; u < wx; u++ {
			buf[u*wy+v] = col[u]
		}
	}
}

// plan returns the cached FFT plan for an n-sample axis. Interior
// windows share one extent, so in practice each correlator holds plans
// for a handful of lengths clipped at the image borders.
func (c *correlator) plan(n int) *fourier.CmplxFFT {
	p, ok := c.plans[n]
	if !ok {
		p = fourier.NewCmplxFFT(n)
		c.plans[n] = p
	}
	return p
}

// grow resizes the scratch buffers for a wx by wy window.
func (c *correlator) grow(wx, wy int) {
	n := wx * wy
	if cap(c.w1) < n {
		c.w1 = make([]complex128, n)
		c.w2 = make([]complex128, n)
		c.cs = make([]complex128, n)
	}
	c.w1, c.w2, c.cs = c.w1[:n], c.w2[:n], c.cs[:n]
	if cap(c.gx) < wx {
		c.gx = make([]float64, wx)
		c.fx = make([]float64, wx)
		c.col = make([]complex128, wx)
	}
	c.gx, c.fx, c.col = c.gx[:wx], c.fx[:wx], c.col[:wx]
	if cap(c.gy) < wy {
		c.gy = make([]float64, wy)
		c.fy = make([]float64, wy)
	}
	c.gy, c.fy = c.gy[:wy], c.fy[:wy]
}

// signedLag maps a circular lag index to its signed displacement:
// indices past n/2 alias negative lags.
func signedLag(p, n int) int {
	if p > n/2 {
		return p - n
	}
	return p
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
