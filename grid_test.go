package flct

import (
	"reflect"
	"testing"
)

func TestLatticeLines(t *testing.T) {
	tests := []struct {
		n, skip, off int
		want         []int
	}{
		{10, 0, 0, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{5, 1, 0, []int{0, 1, 2, 3, 4}},
		{10, 4, 1, []int{1, 5, 9}},
		{10, 4, 3, []int{3, 7}},
		{3, 2, 0, []int{0, 2}},
	}
	for _, tc := range tests {
		got := latticeLines(tc.n, tc.skip, tc.off)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("latticeLines(%d, %d, %d) = %v, want %v", tc.n, tc.skip, tc.off, got, tc.want)
		}
	}
}

func TestOnLattice(t *testing.T) {
	tests := []struct {
		v, skip, off int
		want         bool
	}{
		{7, 0, 0, true},
		{1, 4, 1, true},
		{9, 4, 1, true},
		{2, 4, 1, false},
		{0, 4, 1, false},
	}
	for _, tc := range tests {
		if got := onLattice(tc.v, tc.skip, tc.off); got != tc.want {
			t.Errorf("onLattice(%d, %d, %d) = %v, want %v", tc.v, tc.skip, tc.off, got, tc.want)
		}
	}
}

func TestLatticeBracket(t *testing.T) {
	// Lattice lines for skip=4, off=1 on a 10-sample axis: 1, 5, 9.
	tests := []struct {
		v      int
		lo, hi int
	}{
		{0, 1, 1},
		{1, 1, 1},
		{3, 1, 5},
		{5, 5, 9},
		{6, 5, 9},
		{9, 9, 9},
	}
	for _, tc := range tests {
		lo, hi := latticeBracket(tc.v, 4, 1, 10)
		if lo != tc.lo || hi != tc.hi {
			t.Errorf("latticeBracket(%d) = (%d, %d), want (%d, %d)", tc.v, lo, hi, tc.lo, tc.hi)
		}
	}
}

func TestBilinear(t *testing.T) {
	if got := bilinear(1, 3, 5, 7, 0, 0); got != 1 {
		t.Errorf("corner (0,0) = %v, want 1", got)
	}
	if got := bilinear(1, 3, 5, 7, 1, 1); got != 7 {
		t.Errorf("corner (1,1) = %v, want 7", got)
	}
	if got := bilinear(1, 3, 5, 7, 0.5, 0.5); got != 4 {
		t.Errorf("centre = %v, want 4", got)
	}
	if got := bilinear(1, 3, 5, 7, 0.5, 0); got != 2 {
		t.Errorf("x midpoint = %v, want 2", got)
	}
}

// TestInterpolateSkipped seeds the lattice of a field with a plane
// (which bilinear interpolation reproduces exactly) and checks that the
// gaps are filled with mask 0.5 while lattice values stay untouched.
func TestInterpolateSkipped(t *testing.T) {
	const nx, ny, skip = 5, 5, 2
	plane := func(i, j int) float64 { return float64(i) + 10*float64(j) }

	f := newVelocityField(nx, ny)
	for i := 0; i < nx; i += skip {
		for j := 0; j < ny; j += skip {
			idx := i*ny + j
			f.Vx[idx] = plane(i, j)
			f.Vy[idx] = -2 * plane(i, j)
			f.Vm[idx] = 1
		}
	}

	interpolateSkipped(f, skip, 0, 0)

	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			idx := i*ny + j
			if got, want := f.Vx[idx], plane(i, j); got != want {
				t.Errorf("Vx[%d,%d] = %v, want %v", i, j, got, want)
			}
			if got, want := f.Vy[idx], -2*plane(i, j); got != want {
				t.Errorf("Vy[%d,%d] = %v, want %v", i, j, got, want)
			}
			wantMask := 0.5
			if i%skip == 0 && j%skip == 0 {
				wantMask = 1
			}
			if f.Vm[idx] != wantMask {
				t.Errorf("Vm[%d,%d] = %v, want %v", i, j, f.Vm[idx], wantMask)
			}
		}
	}
}
