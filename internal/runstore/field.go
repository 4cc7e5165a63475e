package runstore

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/flct"
)

// FieldSummary aggregates a velocity field over its directly computed
// (mask 1) locations.
type FieldSummary struct {
	ComputedFrac       float64
	MeanVx, MeanVy     float64
	StdVx, StdVy       float64
	MaxAbsVx, MaxAbsVy float64
}

// Summarize reduces a field to its stored summary statistics.
func Summarize(f *flct.VelocityField) FieldSummary {
	var vx, vy []float64
	for k, m := range f.Vm {
		if m == 1 {
			vx = append(vx, f.Vx[k])
			vy = append(vy, f.Vy[k])
		}
	}

	var s FieldSummary
	if len(f.Vm) > 0 {
		s.ComputedFrac = float64(len(vx)) / float64(len(f.Vm))
	}
	if len(vx) == 0 {
		return s
	}
	s.MeanVx = stat.Mean(vx, nil)
	s.MeanVy = stat.Mean(vy, nil)
	if len(vx) > 1 {
		s.StdVx = stat.StdDev(vx, nil)
		s.StdVy = stat.StdDev(vy, nil)
	}
	abs := make([]float64, len(vx))
	for k, v := range vx {
		abs[k] = math.Abs(v)
	}
	s.MaxAbsVx = floats.Max(abs)
	for k, v := range vy {
		abs[k] = math.Abs(v)
	}
	s.MaxAbsVy = floats.Max(abs)
	return s
}

// EncodeField compresses a field with gob encoding and gzip, the
// storage form of the field_blob column.
func EncodeField(f *flct.VelocityField) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(f); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeField reverses EncodeField.
func DecodeField(blob []byte) (*flct.VelocityField, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open field blob: %w", err)
	}
	defer gz.Close()
	var f flct.VelocityField
	if err := gob.NewDecoder(gz).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode field blob: %w", err)
	}
	return &f, nil
}
