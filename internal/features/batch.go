package features

import "sort"

// ConvertBatch encodes a columnar batch. Every column must have the same number of rows.
// A column with any invalid row fails the whole batch; the error lists every distinct
// offending value of that column in first-seen order. Columns are checked in sorted order.
func (c *Converter) ConvertBatch(columns map[string][]interface{}) (map[string][]float64, error) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string][]float64, len(columns))
	if len(names) == 0 {
		return out, nil
	}

	rows := len(columns[names[0]])
	for _, name := range names[1:] {
		if n := len(columns[name]); n != rows {
			return nil, rowCountMismatch(name, n, rows)
		}
	}

	for _, name := range names {
		converted, err := c.convertColumn(name, columns[name])
		if err != nil {
			return nil, err
		}
		out[name] = converted
	}
	return out, nil
}

func (c *Converter) convertColumn(name string, values []interface{}) ([]float64, error) {
	d, ok := c.table.descriptors[name]
	categorical := ok && d.Kind == KindCategorical

	out := make([]float64, len(values))
	var bad []string
	seen := make(map[string]struct{})

	for i, raw := range values {
		var (
			v     float64
			valid bool
		)
		if categorical {
			if label, isString := raw.(string); isString {
				var code int
				code, valid = lookup(d, label)
				v = float64(code)
			}
		} else {
			var err error
			v, err = parseNumber(raw)
			valid = err == nil
		}

		if !valid {
			rendered := formatRaw(raw)
			if _, dup := seen[rendered]; !dup {
				seen[rendered] = struct{}{}
				bad = append(bad, rendered)
			}
			continue
		}
		out[i] = v
	}

	if len(bad) > 0 {
		if categorical {
			return nil, invalidLabels(name, bad, sortedLabels(d.Labels))
		}
		return nil, invalidNumbers(name, bad)
	}
	return out, nil
}

// RowCount returns the number of rows of a converted batch.
func RowCount(columns map[string][]float64) int {
	for _, col := range columns {
		return len(col)
	}
	return 0
}

// Row extracts row i of a converted batch as a record.
func Row(columns map[string][]float64, i int) map[string]float64 {
	rec := make(map[string]float64, len(columns))
	for name, col := range columns {
		rec[name] = col[i]
	}
	return rec
}
