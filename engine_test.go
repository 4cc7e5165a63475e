package flct

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testScene samples a smooth synthetic scene of Gaussian blobs,
// displaced by (dx, dy) pixels. Displacing the sample coordinates
// instead of rolling the array keeps the scene analytic, so a (1, 0)
// displacement really is a one-pixel shift and not a circular
// permutation. The blobs are kept narrow relative to the apodization
// widths used in the shift tests: windowing drags measured shifts
// toward zero by roughly sigma^2/(sigma^2+w^2) for feature width w, so
// broad features would sink a one-pixel shift well below the expected
// band.
func testScene(nx, ny int, dx, dy float64) *Image {
	centers := [][2]float64{{8, 8}, {16, 20}, {24, 12}, {10, 24}, {22, 26}}
	data := make([]float64, nx*ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			x := float64(i) - dx
			y := float64(j) - dy
			v := 0.0
			for _, c := range centers {
				ddx, ddy := x-c[0], y-c[1]
				v += math.Exp(-(ddx*ddx + ddy*ddy) / 4.5)
			}
			data[i*ny+j] = v
		}
	}
	return &Image{NX: nx, NY: ny, Data: data}
}

func onesLat(n int) []float64 {
	cl := make([]float64, n)
	for i := range cl {
		cl[i] = 1
	}
	return cl
}

func testCorrelator(t *testing.T, im1, im2 *Image, p Params, effThresh float64) *correlator {
	t.Helper()
	cfg, err := resolveParams(im1.NX, im1.NY, OrderRowMajor, p)
	require.NoError(t, err)
	return newCorrelator(im1, im2, &cfg, onesLat(im1.NY), effThresh)
}

func TestCheckBackend(t *testing.T) {
	require.NoError(t, checkBackend())
}

func TestSignedLag(t *testing.T) {
	tests := []struct {
		p, n, want int
	}{
		{0, 8, 0},
		{3, 8, 3},
		{4, 8, 4},
		{5, 8, -3},
		{7, 8, -1},
		{3, 7, 3},
		{4, 7, -3},
		{0, 1, 0},
	}
	for _, tc := range tests {
		if got := signedLag(tc.p, tc.n); got != tc.want {
			t.Errorf("signedLag(%d, %d) = %d, want %d", tc.p, tc.n, got, tc.want)
		}
	}
}

func TestPeakFrac(t *testing.T) {
	t.Run("interior peak", func(t *testing.T) {
		// 5x1 correlation row with the peak at lag 1; the parabola
		// through (0.5, 2.0, 1.0) has its vertex 0.1 past the peak.
		c := &correlator{cs: []complex128{0.5, 2.0, 1.0, 0.2, 0.1}}
		assert.InDelta(t, 0.1, c.peakFrac(1, 0, 5, 1, true), 1e-12)
	})

	t.Run("peak at extreme positive lag", func(t *testing.T) {
		c := &correlator{cs: []complex128{0.1, 0.2, 5.0, 0.3, 0.4}}
		assert.Zero(t, c.peakFrac(2, 0, 5, 1, true))
	})

	t.Run("peak at extreme negative lag", func(t *testing.T) {
		c := &correlator{cs: []complex128{0.1, 0.2, 0.3, 5.0, 0.4}}
		assert.Zero(t, c.peakFrac(3, 0, 5, 1, true))
	})

	t.Run("flat stencil", func(t *testing.T) {
		c := &correlator{cs: []complex128{2, 2, 2, 0, 0}}
		assert.Zero(t, c.peakFrac(1, 0, 5, 1, true))
	})

	t.Run("along y", func(t *testing.T) {
		// Same surface laid out as a 1x5 column.
		c := &correlator{cs: []complex128{0.5, 2.0, 1.0, 0.2, 0.1}}
		assert.InDelta(t, 0.1, c.peakFrac(0, 1, 1, 5, false), 1e-12)
	})
}

func TestMeasureZeroShift(t *testing.T) {
	im := testScene(16, 16, 0, 0)
	c := testCorrelator(t, im, im, Params{DeltaT: 1, DeltaS: 1, Sigma: 2}, 0)

	vx, vy, ok, err := c.measure(8, 8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0, vx, 1e-9)
	assert.InDelta(t, 0, vy, 1e-9)
}

func TestMeasureUnitShift(t *testing.T) {
	im1 := testScene(32, 32, 0, 0)
	im2 := testScene(32, 32, 1, 0)
	c := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 5}, 0)

	vx, vy, ok, err := c.measure(16, 16)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 1, vx, 0.3)
	assert.InDelta(t, 0, vy, 0.15)
}

// TestMeasureVelocityScaling checks the displacement-to-velocity
// conversion: the same pixel shift reported over half the time at twice
// the pixel size is four times the velocity.
func TestMeasureVelocityScaling(t *testing.T) {
	im1 := testScene(32, 32, 0, 0)
	im2 := testScene(32, 32, 1, 0)

	base := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 5}, 0)
	scaled := testCorrelator(t, im1, im2, Params{DeltaT: 0.5, DeltaS: 2, Sigma: 5}, 0)

	vx1, _, ok, err := base.measure(16, 16)
	require.NoError(t, err)
	require.True(t, ok)
	vx4, _, ok, err := scaled.measure(16, 16)
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 4*vx1, vx4, 1e-9)
}

func TestMeasureBelowThreshold(t *testing.T) {
	im := testScene(16, 16, 0, 0)
	c := testCorrelator(t, im, im, Params{DeltaT: 1, DeltaS: 1, Sigma: 2}, 1e6)

	vx, vy, ok, err := c.measure(8, 8)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, vx)
	assert.Zero(t, vy)
}

func TestMeasureNonFinite(t *testing.T) {
	im1 := testScene(16, 16, 0, 0)
	im2 := testScene(16, 16, 0, 0)
	im2.Data[8*16+9] = math.NaN()
	c := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 2}, 0)

	_, _, _, err := c.measure(8, 8)
	var ce *ComputationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 8, ce.I)
	assert.Equal(t, 8, ce.J)
}

func TestMeasureWindowTooSmall(t *testing.T) {
	im1 := &Image{NX: 1, NY: 8, Data: make([]float64, 8)}
	im2 := &Image{NX: 1, NY: 8, Data: make([]float64, 8)}
	c := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 1}, 0)

	_, _, _, err := c.measure(0, 4)
	var ce *ComputationError
	require.ErrorAs(t, err, &ce)
}

// TestMeasureBiasCorrection: near a one-pixel shift the corrected
// estimate must be larger than the raw one but by less than the floored
// maximum factor of ten.
func TestMeasureBiasCorrection(t *testing.T) {
	im1 := testScene(32, 32, 0, 0)
	im2 := testScene(32, 32, 1, 0)

	raw := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 5}, 0)
	cor := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 5, BiasCorrect: true}, 0)

	vxRaw, _, ok, err := raw.measure(16, 16)
	require.NoError(t, err)
	require.True(t, ok)
	vxCor, _, ok, err := cor.measure(16, 16)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Greater(t, vxCor, vxRaw)
	assert.Less(t, vxCor, 10*vxRaw)
}

// TestMeasureLowpassStability: a mild roll-off must not move a clean
// one-pixel measurement by more than a fraction of a pixel.
func TestMeasureLowpassStability(t *testing.T) {
	im1 := testScene(32, 32, 0, 0)
	im2 := testScene(32, 32, 1, 0)

	plain := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 5}, 0)
	filtered := testCorrelator(t, im1, im2, Params{DeltaT: 1, DeltaS: 1, Sigma: 5, KR: 0.5}, 0)

	vx1, _, ok, err := plain.measure(16, 16)
	require.NoError(t, err)
	require.True(t, ok)
	vx2, _, ok, err := filtered.measure(16, 16)
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, vx1, vx2, 0.2)
}
