package validation

import (
	"strconv"
	"strings"
	"time"

	"b3ingest/pkg/contracts/domain"
)

var coerceDateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Coerce returns a new table whose cells are normalized to their schema
// kinds: date-like columns to UTC timestamps, prices to floats, volume to
// integers. Cells that cannot be coerced are left as-is so Validate can
// report them with the failing value; Coerce itself never rejects anything.
func Coerce(t *domain.Table, s domain.Schema) *domain.Table {
	if t == nil {
		return nil
	}

	out := &domain.Table{
		Fields: t.Fields,
		Index:  append([]int(nil), t.Index...),
		Rows:   make([][]domain.Value, len(t.Rows)),
		Meta:   t.Meta,
	}

	kinds := make([]domain.FieldKind, len(t.Fields))
	for j, f := range t.Fields {
		kinds[j] = f.Kind
		if sf, ok := s.Field(f.Name); ok {
			kinds[j] = sf.Kind
		}
	}

	for i, row := range t.Rows {
		newRow := make([]domain.Value, len(row))
		for j, v := range row {
			if j < len(kinds) {
				newRow[j] = coerceCell(v, kinds[j])
			} else {
				newRow[j] = v
			}
		}
		out.Rows[i] = newRow
	}
	return out
}

func coerceCell(v domain.Value, kind domain.FieldKind) domain.Value {
	if v.IsNull() || v.Kind() != domain.ValueString {
		return v
	}

	text := strings.TrimSpace(v.AsString())
	if text == "" {
		return domain.Null()
	}

	switch kind {
	case domain.FieldFloat:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return domain.Float(f)
		}
	case domain.FieldInt:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return domain.Int(n)
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil && f == float64(int64(f)) {
			return domain.Int(int64(f))
		}
	case domain.FieldDate, domain.FieldDatetime:
		for _, layout := range coerceDateLayouts {
			if ts, err := time.Parse(layout, text); err == nil {
				return domain.Time(ts.UTC())
			}
		}
	}
	return v
}
