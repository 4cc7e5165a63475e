package flct

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
)

// VelocityField is the result of one tracking invocation: signed
// displacement rates per axis in DeltaS/DeltaT units and a provenance
// mask, all shaped like the input images (1x1 when Sigma == 0) and
// stored flat like Image. Mask values: 1 directly computed, 0.5 filled
// by interpolation, 0 not computed.
type VelocityField struct {
	NX, NY     int
	Vx, Vy, Vm []float64
}

func newVelocityField(nx, ny int) *VelocityField {
	return &VelocityField{
		NX: nx,
		NY: ny,
		Vx: make([]float64, nx*ny),
		Vy: make([]float64, nx*ny),
		Vm: make([]float64, nx*ny),
	}
}

// Images wraps the field's three components as Images sharing the
// field's buffers, shaped for WriteTriple.
func (f *VelocityField) Images() (vx, vy, vm *Image) {
	return &Image{NX: f.NX, NY: f.NY, Data: f.Vx},
		&Image{NX: f.NX, NY: f.NY, Data: f.Vy},
		&Image{NX: f.NX, NY: f.NY, Data: f.Vm}
}

// Track estimates the velocity field between two same-shaped images
// separated by p.DeltaT. order declares the storage order of both
// image buffers; column-major buffers are rewritten row-major before
// tracking (see OrderSwap). Evaluated locations are measured
// independently across workers; the only shared pass is the
// domain-wide signal maximum needed for relative thresholds.
func Track(image1, image2 *Image, order Order, p Params) (*VelocityField, error) {
	if err := checkBackend(); err != nil {
		return nil, err
	}
	if image1 == nil || image2 == nil {
		return nil, &InvalidArgumentError{Param: "image", Reason: "two images are required"}
	}
	if image1.NX != image2.NX || image1.NY != image2.NY {
		return nil, &InvalidArgumentError{
			Param:  "image",
			Reason: fmt.Sprintf("shape mismatch: %dx%d vs %dx%d", image1.NX, image1.NY, image2.NX, image2.NY),
		}
	}
	cfg, err := resolveParams(image1.NX, image1.NY, order, p)
	if err != nil {
		return nil, err
	}
	if order == OrderColumnMajor {
		pair := OrderSwap(image1, image2)
		image1, image2 = pair[0], pair[1]
	}

	nx, ny := image1.NX, image1.NY

	cosLat := make([]float64, ny)
	for j := range cosLat {
		cosLat[j] = 1
	}
	if cfg.pc {
		span := cfg.latMax - cfg.latMin
		for j := range cosLat {
			lat := cfg.latMin
			if ny > 1 {
				lat += span * float64(j) / float64(ny-1)
			}
			cosLat[j] = math.Cos(lat)
		}
	}

	// Relative thresholds are fractions of the domain-wide signal
	// maximum, which takes a full first pass before any gate decision.
	effThresh := cfg.thresh
	if cfg.thresh >= 0 && cfg.thresh < 1 && !cfg.absThresh {
		effThresh = cfg.thresh * maxAveAbs(image1, image2)
	}

	out := newVelocityField(cfg.outNX, cfg.outNY)

	if cfg.sigma == 0 {
		c := newCorrelator(image1, image2, &cfg, cosLat, effThresh)
		vx, vy, ok, err := c.measure(nx/2, ny/2)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Vx[0], out.Vy[0], out.Vm[0] = vx, vy, 1
		}
		return out, nil
	}

	xs := latticeLines(nx, cfg.skip, cfg.pOff)
	ys := latticeLines(ny, cfg.skip, cfg.qOff)

	workers := runtime.NumCPU()
	if workers > len(xs) {
		workers = len(xs)
	}

	var (
		wg       sync.WaitGroup
		done     atomic.Int64
		aborted  atomic.Bool
		errOnce  sync.Mutex
		firstErr error
	)
	total := len(xs)
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newCorrelator(image1, image2, &cfg, cosLat, effThresh)
			for i := range jobs {
				if aborted.Load() {
					continue
				}
				if err := evalLine(c, i, ys, out); err != nil {
					errOnce.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errOnce.Unlock()
					aborted.Store(true)
					continue
				}
				n := done.Add(1)
				if !cfg.quiet {
					if pct, prev := int(100*n)/total, int(100*(n-1))/total; pct/10 != prev/10 {
						log.Printf("[flct] evaluated %d/%d pixel columns (%d%%)", n, total, pct)
					}
				}
			}
		}()
	}
	for _, i := range xs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	if cfg.skip > 1 && cfg.interp {
		interpolateSkipped(out, cfg.skip, cfg.pOff, cfg.qOff)
	}
	return out, nil
}

// evalLine measures every evaluated y location along the pixel column
// x = i. Results land at disjoint indices of the output field, so
// concurrent lines need no locking.
func evalLine(c *correlator, i int, ys []int, out *VelocityField) error {
	ny := c.im1.NY
	for _, j := range ys {
		vx, vy, ok, err := c.measure(i, j)
		if err != nil {
			return err
		}
		if ok {
			idx := i*ny + j
			out.Vx[idx] = vx
			out.Vy[idx] = vy
			out.Vm[idx] = 1
		}
	}
	return nil
}

// maxAveAbs returns the domain-wide maximum of the per-pixel average
// absolute value of the two images, the reference for relative
// thresholds. It covers the whole domain regardless of lattice
// striding, so a given thresh gates identically for any skip setting.
func maxAveAbs(im1, im2 *Image) float64 {
	max := 0.0
	for k := range im1.Data {
		if v := 0.5 * (math.Abs(im1.Data[k]) + math.Abs(im2.Data[k])); v > max {
			max = v
		}
	}
	return max
}
