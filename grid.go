package flct

// Lattice striding: with skip s > 1 only locations (poff + k*s,
// qoff + m*s) are evaluated directly. The helpers here enumerate the
// evaluated coordinates and rebuild a full-resolution field by bilinear
// interpolation, clamping to the outermost lattice lines at the image
// borders.

// latticeLines returns the evaluated coordinates along an axis of n
// samples. skip < 2 strides every coordinate.
func latticeLines(n, skip, off int) []int {
	if skip < 2 {
		lines := make([]int, n)
		for v := range lines {
			lines[v] = v
		}
		return lines
	}
	lines := make([]int, 0, (n-off+skip-1)/skip)
	for v := off; v < n; v += skip {
		lines = append(lines, v)
	}
	return lines
}

// onLattice reports whether coordinate v lies on the stride lattice.
// Offsets are already normalized into [0, skip).
func onLattice(v, skip, off int) bool {
	if skip < 2 {
		return true
	}
	return (v-off)%skip == 0
}

// latticeBracket returns the lattice lines bracketing coordinate v,
// clamped to the outermost lines of an n-sample axis. Both returns are
// equal when v falls outside the lattice span.
func latticeBracket(v, skip, off, n int) (lo, hi int) {
	last := off + ((n-1-off)/skip)*skip
	if v <= off {
		return off, off
	}
	if v >= last {
		return last, last
	}
	lo = off + ((v-off)/skip)*skip
	return lo, lo + skip
}

// interpolateSkipped fills every off-lattice location of the field by
// bilinear interpolation of the four surrounding lattice values and
// tags it with mask 0.5. Lattice locations keep their computed values
// and masks.
func interpolateSkipped(f *VelocityField, skip, pOff, qOff int) {
	nx, ny := f.NX, f.NY
	for i := 0; i < nx; i++ {
		iOn := onLattice(i, skip, pOff)
		i0, i1 := latticeBracket(i, skip, pOff, nx)
		fx := 0.0
		if i1 > i0 {
			fx = float64(i-i0) / float64(i1-i0)
		}
		for j := 0; j < ny; j++ {
			if iOn && onLattice(j, skip, qOff) {
				continue
			}
			j0, j1 := latticeBracket(j, skip, qOff, ny)
			fy := 0.0
			if j1 > j0 {
				fy = float64(j-j0) / float64(j1-j0)
			}
			idx := i*ny + j
			f.Vx[idx] = bilinear(f.Vx[i0*ny+j0], f.Vx[i1*ny+j0], f.Vx[i0*ny+j1], f.Vx[i1*ny+j1], fx, fy)
			f.Vy[idx] = bilinear(f.Vy[i0*ny+j0], f.Vy[i1*ny+j0], f.Vy[i0*ny+j1], f.Vy[i1*ny+j1], fx, fy)
			f.Vm[idx] = 0.5
		}
	}
}

// bilinear blends four corner values by the fractional offsets fx, fy.
// p00 and p11 sit at (lo, lo) and (hi, hi) respectively.
func bilinear(p00, p10, p01, p11, fx, fy float64) float64 {
	a := p00*(1-fx) + p10*fx
	b := p01*(1-fx) + p11*fx
	return a*(1-fy) + b*fy
}
