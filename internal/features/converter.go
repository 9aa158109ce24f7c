package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Converter applies an encoding table to raw request values.
type Converter struct {
	table *Table
}

// NewConverter returns a converter over table. A nil table means DefaultTable.
func NewConverter(table *Table) *Converter {
	if table == nil {
		table = DefaultTable()
	}
	return &Converter{table: table}
}

// Table returns the encoding table the converter applies.
func (c *Converter) Table() *Table {
	return c.table
}

// ConvertValue encodes one raw value. Categorical features require an exact label match.
// Everything else must be a finite real number, given either as a JSON number or a numeric string.
func (c *Converter) ConvertValue(feature string, raw interface{}) (float64, error) {
	d, ok := c.table.descriptors[feature]
	if ok && d.Kind == KindCategorical {
		label, isString := raw.(string)
		if !isString {
			return 0, invalidLabel(feature, formatRaw(raw), sortedLabels(d.Labels))
		}
		code, found := lookup(d, label)
		if !found {
			return 0, invalidLabel(feature, label, sortedLabels(d.Labels))
		}
		return float64(code), nil
	}

	v, err := parseNumber(raw)
	if err != nil {
		return 0, invalidNumber(feature, formatRaw(raw))
	}
	return v, nil
}

// ConvertRecord encodes every entry of record. It stops at the first invalid entry;
// keys are visited in sorted order so the reported entry does not depend on map iteration.
func (c *Converter) ConvertRecord(record map[string]interface{}) (map[string]float64, error) {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]float64, len(record))
	for _, k := range keys {
		v, err := c.ConvertValue(k, record[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

var errNotNumeric = fmt.Errorf("not a finite number")

func parseNumber(raw interface{}) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, errNotNumeric
		}
		v = f
	case string:
		text := strings.TrimSpace(x)
		if isHexLiteral(text) {
			return 0, errNotNumeric
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, errNotNumeric
		}
		v = f
	default:
		// bool, nil, arrays and objects
		return 0, errNotNumeric
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotNumeric
	}
	return v, nil
}

// isHexLiteral reports Go hex float syntax, which ParseFloat accepts but decimal text never uses.
func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// formatRaw renders a raw value the way it appears in error messages.
func formatRaw(raw interface{}) string {
	switch x := raw.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []interface{}, map[string]interface{}:
		if b, err := json.Marshal(x); err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", raw)
}
