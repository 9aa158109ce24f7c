// Package training fits the cognitive-risk forest and writes the artifacts the server loads.
package training

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TargetColumn holds the 0/1 diagnosis label.
const TargetColumn = "Diagnosis"

// DroppedColumns never reach the model.
var DroppedColumns = []string{
	"DoctorInCharge", "PatientID",
	"CholesterolTotal", "CholesterolLDL", "CholesterolHDL", "CholesterolTriglycerides",
}

// ExcludeFromScaling lists the encoded categorical columns, which keep their integer codes.
var ExcludeFromScaling = []string{
	"Gender", "Ethnicity", "EducationLevel", "Smoking", "FamilyHistoryAlzheimers",
	"CardiovascularDisease", "Diabetes", "Depression", "HeadInjury", "Hypertension",
	"MemoryComplaints", "BehavioralProblems", "Disorientation", "PersonalityChanges",
	"DifficultyCompletingTasks", "Forgetfulness", "Confusion",
}

// Dataset is a numeric feature matrix with binary labels. Columns keeps file order.
type Dataset struct {
	Columns []string
	X       [][]float64
	Y       []int
}

func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a header row plus numeric records. Dropped columns are skipped before
// parsing, so they may hold free text.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	drop := toSet(DroppedColumns)
	target := -1
	var (
		keep    []int
		columns []string
	)
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == TargetColumn:
			target = i
		case drop[name]:
		default:
			keep = append(keep, i)
			columns = append(columns, name)
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("dataset has no %s column", TargetColumn)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset has no feature columns")
	}

	ds := &Dataset{Columns: columns}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]float64, len(keep))
		for j, col := range keep {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %q is not numeric", line, columns[j], rec[col])
			}
			row[j] = v
		}

		label, err := strconv.ParseFloat(strings.TrimSpace(rec[target]), 64)
		if err != nil || (label != 0 && label != 1) {
			return nil, fmt.Errorf("line %d: %s must be 0 or 1, got %q", line, TargetColumn, rec[target])
		}

		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, int(label))
	}

	if len(ds.X) == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}
	return ds, nil
}

// ScalingColumns returns the columns to standardize in dataset order, with their indices.
func (d *Dataset) ScalingColumns() ([]string, []int) {
	exclude := toSet(ExcludeFromScaling)
	var (
		names []string
		idx   []int
	)
	for i, name := range d.Columns {
		if !exclude[name] {
			names = append(names, name)
			idx = append(idx, i)
		}
	}
	return names, idx
}

// Subset returns the rows at idx. Rows are shared, not copied.
func (d *Dataset) Subset(idx []int) ([][]float64, []int) {
	X := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for i, r := range idx {
		X[i] = d.X[r]
		y[i] = d.Y[r]
	}
	return X, y
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
