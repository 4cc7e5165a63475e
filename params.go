package flct

import (
	"fmt"
	"math"
)

// Order selects how a flat sample buffer is interpreted. Column-major
// buffers are rewritten row-major (a real, lossy transform; see
// OrderSwap) before any computation or serialization.
type Order string

const (
	OrderRowMajor    Order = "row"
	OrderColumnMajor Order = "column"
)

// Params carries the raw caller parameters for Track. The zero value
// of an optional field disables the feature it controls: Skip == 0
// evaluates every pixel, KR == 0 disables the low-pass filter.
type Params struct {
	// DeltaT is the time between the two images. DeltaS is the length
	// of a pixel side; velocities come out in DeltaS/DeltaT units.
	DeltaT float64
	DeltaS float64

	// Sigma is the width of the Gaussian apodization window in pixels.
	// Sigma == 0 requests the single overall shift between the images,
	// computed from one whole-image window and returned as a 1x1 field.
	Sigma float64

	// Thresh gates low-signal locations: no velocity is computed where
	// the average absolute value of the two images falls below it.
	// Values in [0, 1) are taken relative to the domain-wide maximum
	// unless AbsThresh forces an absolute reading.
	Thresh    float64
	AbsThresh bool

	// BiasCorrect compensates the systematic underestimation of
	// displacement inherent to windowed correlation tracking.
	BiasCorrect bool

	// Skip > 0 evaluates only the lattice (POff + k*Skip, QOff + m*Skip).
	// Offset magnitudes must be smaller than Skip; negative offsets are
	// normalized to Skip - |offset|. Interpolate fills the remaining
	// locations bilinearly from their lattice neighbors.
	Skip        int
	POff, QOff  int
	Interpolate bool

	// KR, when nonzero, low-pass filters the window spectra with a
	// Gaussian cut off at KR times the Nyquist wavenumber per axis.
	// Must satisfy 0 < KR < 20.
	KR float64

	// PlateCarree treats the images as an equirectangular projection
	// spanning latitudes [LatMin, LatMax] radians along the y axis. The
	// apodization window widens with latitude and vx is scaled back by
	// cos(latitude); rows too close to a pole are masked out.
	PlateCarree    bool
	LatMin, LatMax float64

	// Quiet suppresses progress logging.
	Quiet bool
}

// config is the resolved, validated form of Params plus the output
// geometry. It is read-only once built.
type config struct {
	deltaT, deltaS float64
	sigma          float64
	thresh         float64
	absThresh      bool
	biasCorrect    bool
	skip           int
	pOff, qOff     int
	interp         bool
	kr             float64
	filter         bool
	pc             bool
	latMin, latMax float64
	quiet          bool
	outNX, outNY   int
}

// resolveParams validates the caller arguments against the image
// extents and normalizes them into a config. It is pure: no allocation
// of outputs and no computation happens before it succeeds.
func resolveParams(nx, ny int, order Order, p Params) (config, error) {
	var cfg config

	if order != OrderRowMajor && order != OrderColumnMajor {
		return cfg, &InvalidArgumentError{
			Param:  "order",
			Reason: fmt.Sprintf("%q is not a storage order; use %q or %q", string(order), OrderRowMajor, OrderColumnMajor),
		}
	}
	if nx < 1 || ny < 1 {
		return cfg, &InvalidArgumentError{Param: "image", Reason: fmt.Sprintf("extents %dx%d must be positive", nx, ny)}
	}
	if !(p.DeltaT > 0) {
		return cfg, &InvalidArgumentError{Param: "deltat", Reason: "must be positive"}
	}
	if !(p.DeltaS > 0) {
		return cfg, &InvalidArgumentError{Param: "deltas", Reason: "must be positive"}
	}
	if !(p.Sigma >= 0) {
		return cfg, &InvalidArgumentError{Param: "sigma", Reason: "must be zero or positive"}
	}

	cfg.deltaT = p.DeltaT
	cfg.deltaS = p.DeltaS
	cfg.sigma = p.Sigma
	cfg.thresh = p.Thresh
	cfg.absThresh = p.AbsThresh
	cfg.biasCorrect = p.BiasCorrect
	cfg.interp = p.Interpolate
	cfg.quiet = p.Quiet

	if p.Skip != 0 {
		if p.Skip < 0 {
			return cfg, &InvalidArgumentError{Param: "skip", Reason: "must be positive"}
		}
		if absInt(p.POff) >= p.Skip {
			return cfg, &InvalidArgumentError{Param: "poff", Reason: fmt.Sprintf("magnitude %d must be less than skip %d", absInt(p.POff), p.Skip)}
		}
		if absInt(p.QOff) >= p.Skip {
			return cfg, &InvalidArgumentError{Param: "qoff", Reason: fmt.Sprintf("magnitude %d must be less than skip %d", absInt(p.QOff), p.Skip)}
		}
		if p.Skip >= nx || p.Skip >= ny {
			return cfg, &InvalidArgumentError{Param: "skip", Reason: fmt.Sprintf("%d must be smaller than both image extents %dx%d", p.Skip, nx, ny)}
		}
		cfg.skip = p.Skip
		cfg.pOff = p.POff
		if cfg.pOff < 0 {
			cfg.pOff = p.Skip - absInt(p.POff)
		}
		cfg.qOff = p.QOff
		if cfg.qOff < 0 {
			cfg.qOff = p.Skip - absInt(p.QOff)
		}
	}

	if p.KR != 0 {
		if !(p.KR > 0 && p.KR < 20) {
			return cfg, &InvalidArgumentError{Param: "kr", Reason: fmt.Sprintf("%g is outside (0, 20)", p.KR)}
		}
		cfg.kr = p.KR
		cfg.filter = true
	}

	if p.PlateCarree {
		if !(p.LatMin < p.LatMax) {
			return cfg, &InvalidArgumentError{Param: "latmin", Reason: fmt.Sprintf("%g must be less than latmax %g", p.LatMin, p.LatMax)}
		}
		if p.LatMin < -math.Pi/2 || p.LatMax > math.Pi/2 {
			return cfg, &InvalidArgumentError{Param: "latmax", Reason: "latitude bounds must lie within [-pi/2, pi/2]"}
		}
		cfg.pc = true
		cfg.latMin = p.LatMin
		cfg.latMax = p.LatMax
	}

	cfg.outNX, cfg.outNY = nx, ny
	if cfg.sigma == 0 {
		// One whole-image window, one output sample. Lattice striding,
		// interpolation and latitude scaling have no locations to act on.
		cfg.outNX, cfg.outNY = 1, 1
		cfg.skip, cfg.pOff, cfg.qOff = 0, 0, 0
		cfg.interp = false
		cfg.pc = false
	}

	return cfg, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
