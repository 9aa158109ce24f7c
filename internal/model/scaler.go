package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// StandardScaler applies (x - mean) / scale per column.
type StandardScaler struct {
	Columns []string  `json:"columns,omitempty"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// DecodeScaler parses and validates a scaler artifact.
func DecodeScaler(data []byte) (*StandardScaler, error) {
	var s StandardScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that mean and scale line up and are finite.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler has %d means and %d scales", len(s.Mean), len(s.Scale))
	}
	if len(s.Columns) > 0 && len(s.Columns) != len(s.Mean) {
		return fmt.Errorf("scaler lists %d columns for %d means", len(s.Columns), len(s.Mean))
	}
	for j := range s.Mean {
		if math.IsNaN(s.Mean[j]) || math.IsInf(s.Mean[j], 0) || math.IsNaN(s.Scale[j]) || math.IsInf(s.Scale[j], 0) {
			return fmt.Errorf("scaler column %d is not finite", j)
		}
	}
	return nil
}

// Width is the number of columns the scaler was fit on.
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// Encode serializes the scaler.
func (s *StandardScaler) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Transform returns a scaled copy of X. Zero-variance columns are only centred.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("row %d has %d columns, scaler expects %d", i, len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scale := s.Scale[j]
			if scale == 0 {
				scale = 1
			}
			scaled[j] = (v - s.Mean[j]) / scale
		}
		out[i] = scaled
	}
	return out, nil
}

// FitStandardScaler computes per-column mean and population standard deviation of X.
func FitStandardScaler(X [][]float64, columns []string) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("fit scaler: no rows")
	}
	width := len(X[0])
	if len(columns) > 0 && len(columns) != width {
		return nil, fmt.Errorf("fit scaler: %d column names for %d columns", len(columns), width)
	}

	mean := make([]float64, width)
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("fit scaler: row %d has %d columns, want %d", i, len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, width)
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	cols := append([]string(nil), columns...)
	return &StandardScaler{Columns: cols, Mean: mean, Scale: scale}, nil
}
