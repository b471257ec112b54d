package edifact

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/model"
)

// The WAMAS grammar engine interprets declarative field tables for
// fixed-width flat-file records. Floats are packed decimals without a
// separator: the last Decimals characters are the fractional part, e.g.
// a length-8 field with 2 decimals holds 123.45 as "00012345". Decode
// and encode are exact inverses for any value that fits the field width.

// FieldType is the data type of one fixed-width field
type FieldType string

const (
	FieldStr      FieldType = "str"
	FieldInt      FieldType = "int"
	FieldFloat    FieldType = "float"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "datetime"
	FieldBool     FieldType = "bool"
)

const (
	wamasDateLayout     = "20060102"
	wamasDateTimeLayout = "20060102150405"
)

// Field is one column of a fixed-width record
type Field struct {
	Name     string
	Type     FieldType
	Length   int
	Decimals int
}

// Grammar is an ordered field table describing one record type
type Grammar struct {
	Name   string
	Fields []Field
}

// Width returns the total record width
func (g Grammar) Width() int {
	w := 0
	for _, f := range g.Fields {
		w += f.Length
	}
	return w
}

// DecodeRecord splits a fixed-width line into typed values keyed by field
// name. The line must be at least as wide as the grammar
func (g Grammar) DecodeRecord(line string) (map[string]interface{}, error) {
	if len(line) < g.Width() {
		return nil, &model.MalformedInterchangeError{
			Segment: g.Name,
			Message: fmt.Sprintf("record is %d characters, grammar needs %d", len(line), g.Width()),
		}
	}
	values := make(map[string]interface{}, len(g.Fields))
	offset := 0
	for _, f := range g.Fields {
		raw := line[offset : offset+f.Length]
		offset += f.Length
		v, err := f.decode(raw)
		if err != nil {
			return nil, err
		}
		values[f.Name] = v
	}
	return values, nil
}

// EncodeRecord renders typed values as one fixed-width line. Missing
// values encode as the type's zero value
func (g Grammar) EncodeRecord(values map[string]interface{}) (string, error) {
	var sb strings.Builder
	for _, f := range g.Fields {
		s, err := f.encode(values[f.Name])
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func (f Field) decode(raw string) (interface{}, error) {
	switch f.Type {
	case FieldStr:
		return strings.TrimRight(raw, " "), nil
	case FieldInt:
		s := strings.TrimSpace(raw)
		s = strings.TrimLeft(s, "0")
		if s == "" {
			return int64(0), nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid integer %q: %w", f.Name, raw, err)
		}
		return n, nil
	case FieldFloat:
		s := strings.TrimSpace(raw)
		if s == "" {
			return decimal.Zero, nil
		}
		// Negative values carry a leading sign before the zero padding
		neg := strings.HasPrefix(s, "-")
		if neg {
			s = s[1:]
		}
		if f.Decimals > 0 {
			if len(s) <= f.Decimals {
				s = strings.Repeat("0", f.Decimals-len(s)+1) + s
			}
			cut := len(s) - f.Decimals
			s = s[:cut] + "." + s[cut:]
		}
		if neg {
			s = "-" + s
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid packed decimal %q: %w", f.Name, raw, err)
		}
		return d, nil
	case FieldDate:
		s := strings.TrimSpace(raw)
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(wamasDateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid date %q: %w", f.Name, raw, err)
		}
		return t, nil
	case FieldDateTime:
		s := strings.TrimSpace(raw)
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(wamasDateTimeLayout, s)
		if err != nil {
			return nil, fmt.Errorf("field %s: invalid datetime %q: %w", f.Name, raw, err)
		}
		return t, nil
	case FieldBool:
		switch strings.TrimSpace(raw) {
		case "1", "J", "X", "true", "True":
			return true, nil
		default:
			return false, nil
		}
	}
	return nil, fmt.Errorf("field %s: unknown field type %q", f.Name, f.Type)
}

func (f Field) encode(value interface{}) (string, error) {
	switch f.Type {
	case FieldStr:
		s, _ := value.(string)
		if len(s) > f.Length {
			return s[:f.Length], nil
		}
		return s + strings.Repeat(" ", f.Length-len(s)), nil
	case FieldInt:
		var n int64
		switch v := value.(type) {
		case nil:
		case int64:
			n = v
		case int:
			n = int64(v)
		default:
			return "", fmt.Errorf("field %s: cannot encode %T as int", f.Name, value)
		}
		sign := ""
		s := strconv.FormatInt(n, 10)
		if strings.HasPrefix(s, "-") {
			sign = "-"
			s = s[1:]
		}
		if len(sign)+len(s) > f.Length {
			return "", fmt.Errorf("field %s: value %d exceeds width %d", f.Name, n, f.Length)
		}
		return sign + strings.Repeat("0", f.Length-len(sign)-len(s)) + s, nil
	case FieldFloat:
		var d decimal.Decimal
		switch v := value.(type) {
		case nil:
		case decimal.Decimal:
			d = v
		case float64:
			d = decimal.NewFromFloat(v)
		default:
			return "", fmt.Errorf("field %s: cannot encode %T as float", f.Name, value)
		}
		// Shift the fractional part into the integer range, then pad.
		// 123.45 with 2 decimals becomes 12345. A negative value puts
		// the sign first and pads the magnitude: -123.45 in a width-8
		// field becomes -0012345
		packed := d.Shift(int32(f.Decimals)).Round(0)
		sign := ""
		if packed.IsNegative() {
			sign = "-"
		}
		s := packed.Abs().String()
		if len(sign)+len(s) > f.Length {
			return "", fmt.Errorf("field %s: value %s exceeds width %d", f.Name, d.String(), f.Length)
		}
		return sign + strings.Repeat("0", f.Length-len(sign)-len(s)) + s, nil
	case FieldDate:
		t, _ := value.(time.Time)
		if t.IsZero() {
			return strings.Repeat(" ", f.Length), nil
		}
		return padRight(t.Format(wamasDateLayout), f.Length), nil
	case FieldDateTime:
		t, _ := value.(time.Time)
		if t.IsZero() {
			return strings.Repeat(" ", f.Length), nil
		}
		return padRight(t.Format(wamasDateTimeLayout), f.Length), nil
	case FieldBool:
		b, _ := value.(bool)
		s := "0"
		if b {
			s = "1"
		}
		return padRight(s, f.Length), nil
	}
	return "", fmt.Errorf("field %s: unknown field type %q", f.Name, f.Type)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}
