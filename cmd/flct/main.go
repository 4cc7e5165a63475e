// Command flct tracks the apparent motion between two images stored in
// a binary container and writes the velocity field (vx, vy, vm) as a
// three-array container. A run can optionally be recorded in a SQLite
// ledger for later comparison.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/banshee-data/flct"
	"github.com/banshee-data/flct/internal/runstore"
)

var (
	inPath  = flag.String("in", "", "Input container holding the two images (required)")
	outPath = flag.String("out", "", "Output container for vx, vy, vm (required)")
	deltaT  = flag.Float64("deltat", 1.0, "Time between the two images")
	deltaS  = flag.Float64("deltas", 1.0, "Length of a pixel side; velocities come out in deltas/deltat units")
	sigma   = flag.Float64("sigma", 10.0, "Gaussian window width in pixels (0 computes the single overall shift)")
	thresh  = flag.Float64("thresh", 0, "Signal threshold; values in [0,1) are relative to the domain maximum unless -abs")
	absFlag = flag.Bool("abs", false, "Read -thresh as an absolute value")
	biasCor = flag.Bool("biascor", false, "Correct the systematic underestimation of displacements")
	skip    = flag.Int("skip", 0, "Evaluate only every skip-th pixel per axis (0 evaluates all)")
	pOff    = flag.Int("poff", 0, "x offset of the skip lattice")
	qOff    = flag.Int("qoff", 0, "y offset of the skip lattice")
	interp  = flag.Bool("interp", false, "Fill skipped locations by bilinear interpolation")
	kr      = flag.Float64("kr", 0, "Low-pass the window spectra at kr times Nyquist, 0 < kr < 20 (0 disables)")
	pc      = flag.Bool("pc", false, "Treat the images as plate carree projected")
	latMin  = flag.Float64("latmin", 0, "Lower latitude bound in radians (with -pc)")
	latMax  = flag.Float64("latmax", 0.2, "Upper latitude bound in radians (with -pc)")
	order   = flag.String("order", "row", "Storage order of the input container: row or column")
	quiet   = flag.Bool("quiet", false, "Suppress progress logging")
	dbPath  = flag.String("db", "", "Record the run in this SQLite ledger")
	note    = flag.String("note", "", "Free-form note stored with the run (with -db)")
)

// options carries one tracking invocation from flag parsing to run.
type options struct {
	in, out string
	order   flct.Order
	params  flct.Params
	dbPath  string
	note    string
}

func main() {
	flag.Parse()

	if *inPath == "" {
		log.Fatal("-in is required")
	}
	if *outPath == "" {
		log.Fatal("-out is required")
	}

	opts := options{
		in:    *inPath,
		out:   *outPath,
		order: flct.Order(*order),
		params: flct.Params{
			DeltaT:      *deltaT,
			DeltaS:      *deltaS,
			Sigma:       *sigma,
			Thresh:      *thresh,
			AbsThresh:   *absFlag,
			BiasCorrect: *biasCor,
			Skip:        *skip,
			POff:        *pOff,
			QOff:        *qOff,
			Interpolate: *interp,
			KR:          *kr,
			PlateCarree: *pc,
			LatMin:      *latMin,
			LatMax:      *latMax,
			Quiet:       *quiet,
		},
		dbPath: *dbPath,
		note:   *note,
	}

	if err := run(opts); err != nil {
		log.Fatalf("flct: %v", err)
	}
}

func run(opts options) error {
	im1, im2, err := flct.ReadPair(opts.in, opts.order)
	if err != nil {
		return err
	}

	// The pair is row-major in memory after reading, whatever order the
	// container used.
	start := time.Now()
	field, err := flct.Track(im1, im2, flct.OrderRowMajor, opts.params)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	vx, vy, vm := field.Images()
	if err := flct.WriteTriple(opts.out, vx, vy, vm, flct.OrderRowMajor); err != nil {
		return err
	}

	summary := runstore.Summarize(field)
	log.Printf("tracked %dx%d field in %s: %.1f%% computed, mean vx=%.4g vy=%.4g",
		field.NX, field.NY, duration.Round(time.Millisecond), 100*summary.ComputedFrac, summary.MeanVx, summary.MeanVy)

	if opts.dbPath == "" {
		return nil
	}
	return recordRun(opts, field, summary, duration)
}

func recordRun(opts options, field *flct.VelocityField, summary runstore.FieldSummary, duration time.Duration) error {
	store, err := runstore.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	blob, err := runstore.EncodeField(field)
	if err != nil {
		return err
	}
	rec := &runstore.Run{
		Note:       opts.note,
		NX:         field.NX,
		NY:         field.NY,
		Params:     opts.params,
		DurationMs: duration.Milliseconds(),
		Summary:    summary,
		FieldBlob:  blob,
	}
	if err := store.Insert(rec); err != nil {
		return err
	}
	log.Printf("recorded run %s in %s", rec.RunID, opts.dbPath)
	return nil
}
