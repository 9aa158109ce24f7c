// Package features converts human-readable patient records into the numeric vectors the model was fit on.
package features

import (
	"sort"
)

// Kind distinguishes features with a closed vocabulary from free numeric ones.
type Kind int

const (
	KindNumerical Kind = iota
	KindCategorical
)

func (k Kind) String() string {
	if k == KindCategorical {
		return "categorical"
	}
	return "numerical"
}

// DefaultRange is reported for numeric features without a documented range.
const DefaultRange = "Numerical value"

// Descriptor describes how a single feature is encoded.
// Categorical features carry a label→code map matched case-sensitively.
// Numerical features carry an advisory range that is never enforced.
type Descriptor struct {
	Name   string
	Kind   Kind
	Labels map[string]int
	Range  string
}

// Table is the immutable feature encoding table. It is safe for concurrent use.
type Table struct {
	descriptors map[string]Descriptor
	names       []string
}

var (
	yesNo = map[string]int{"No": 0, "Yes": 1}

	defaultTable = NewTable(
		categorical("Smoking", yesNo),
		categorical("FamilyHistoryAlzheimers", yesNo),
		categorical("CardiovascularDisease", yesNo),
		categorical("Diabetes", yesNo),
		categorical("Depression", yesNo),
		categorical("HeadInjury", yesNo),
		categorical("Hypertension", yesNo),
		categorical("MemoryComplaints", yesNo),
		categorical("BehavioralProblems", yesNo),
		categorical("Confusion", yesNo),
		categorical("Disorientation", yesNo),
		categorical("PersonalityChanges", yesNo),
		categorical("DifficultyCompletingTasks", yesNo),
		categorical("Forgetfulness", yesNo),
		categorical("Gender", map[string]int{"Male": 0, "Female": 1}),
		categorical("Ethnicity", map[string]int{"Caucasian": 0, "African American": 1, "Asian": 2, "Other": 3}),
		categorical("EducationLevel", map[string]int{"None": 0, "High School": 1, "Bachelor's": 2, "Higher": 3}),

		numerical("Age", "60-90 years"),
		numerical("BMI", "15-40"),
		numerical("AlcoholConsumption", "0-20 units/week"),
		numerical("PhysicalActivity", "0-10 hours/week"),
		numerical("DietQuality", "0-10 score"),
		numerical("SleepQuality", "4-10 score"),
		numerical("SystolicBP", "90-180 mmHg"),
		numerical("DiastolicBP", "60-120 mmHg"),
		numerical("MMSE", "0-30 score"),
		numerical("FunctionalAssessment", ""),
		numerical("ADL", ""),
	)
)

func categorical(name string, labels map[string]int) Descriptor {
	return Descriptor{Name: name, Kind: KindCategorical, Labels: labels}
}

func numerical(name, valueRange string) Descriptor {
	if valueRange == "" {
		valueRange = DefaultRange
	}
	return Descriptor{Name: name, Kind: KindNumerical, Range: valueRange}
}

// DefaultTable returns the process-wide encoding table.
func DefaultTable() *Table {
	return defaultTable
}

// NewTable builds a table from descriptors. A later descriptor with the same name replaces an earlier one.
// Label maps are copied so callers cannot mutate the table afterwards.
func NewTable(descs ...Descriptor) *Table {
	t := &Table{descriptors: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.Kind == KindCategorical {
			d.Labels = copyLabels(d.Labels)
			d.Range = ""
		} else {
			d.Labels = nil
			if d.Range == "" {
				d.Range = DefaultRange
			}
		}
		t.descriptors[d.Name] = d
	}

	t.names = make([]string, 0, len(t.descriptors))
	for name := range t.descriptors {
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t
}

// Descriptor returns the descriptor for name. Unknown names are numerical with the default range.
func (t *Table) Descriptor(name string) (Descriptor, bool) {
	d, ok := t.descriptors[name]
	if !ok {
		return Descriptor{Name: name, Kind: KindNumerical, Range: DefaultRange}, false
	}
	if d.Kind == KindCategorical {
		d.Labels = copyLabels(d.Labels)
	}
	return d, true
}

// IsCategorical reports whether name has a closed vocabulary.
func (t *Table) IsCategorical(name string) bool {
	d, ok := t.descriptors[name]
	return ok && d.Kind == KindCategorical
}

// Has reports whether name is described by the table.
func (t *Table) Has(name string) bool {
	_, ok := t.descriptors[name]
	return ok
}

// ValidLabels returns the accepted labels of a categorical feature ordered by code, or nil.
func (t *Table) ValidLabels(name string) []string {
	d, ok := t.descriptors[name]
	if !ok || d.Kind != KindCategorical {
		return nil
	}
	return sortedLabels(d.Labels)
}

// ValidValues maps every feature to its label→code map or its advisory range string.
func (t *Table) ValidValues() map[string]interface{} {
	out := make(map[string]interface{}, len(t.descriptors))
	for name, d := range t.descriptors {
		if d.Kind == KindCategorical {
			out[name] = copyLabels(d.Labels)
		} else {
			out[name] = d.Range
		}
	}
	return out
}

// FeatureNames returns every feature in the table, sorted and deduplicated.
func (t *Table) FeatureNames() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func lookup(d Descriptor, label string) (int, bool) {
	code, ok := d.Labels[label]
	return code, ok
}

func sortedLabels(labels map[string]int) []string {
	out := make([]string, 0, len(labels))
	for label := range labels {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool {
		if labels[out[i]] != labels[out[j]] {
			return labels[out[i]] < labels[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func copyLabels(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
