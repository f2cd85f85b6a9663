// Package validation partitions canonical tables into valid and invalid rows
// against the loaded schema. Data-quality problems are data here, never
// errors; only the threshold check can turn them into a failure.
package validation

import (
	"fmt"
	"time"

	"b3ingest/pkg/contracts/domain"
)

// Outcome is the result of validating one batch. RowErrors is keyed by the
// row's original ordinal (Table.Index value); Records also includes
// schema-level entries that could not be pinned to a row.
type Outcome struct {
	Valid     *domain.Table
	Invalid   *domain.Table
	RowErrors map[int][]domain.ErrorRecord
	Records   []domain.ErrorRecord
	Summary   domain.ValidationSummary
}

// Validate checks every row of t against the schema and partitions the
// table. It never returns an error for data quality; the caller always gets
// a complete Outcome with RowsValid+RowsInvalid == RowsTotal.
func Validate(t *domain.Table, s domain.Schema) Outcome {
	out := Outcome{
		RowErrors: make(map[int][]domain.ErrorRecord),
		Summary:   domain.ValidationSummary{ErrorCodesCount: make(map[domain.ReasonCode]int)},
	}

	if t == nil || t.Len() == 0 {
		out.Valid = emptyLike(t, s)
		out.Invalid = emptyLike(t, s)
		return out
	}
	out.Summary.RowsTotal = t.Len()

	// A schema column absent from the table invalidates the whole batch:
	// no row can be complete without it.
	missing := missingColumns(t, s)
	for _, name := range missing {
		for i := range t.Rows {
			ordinal := t.Index[i]
			out.addRowError(ordinal, domain.ErrorRecord{
				RowIndex:      intPtr(ordinal),
				Column:        name,
				ReasonCode:    domain.ReasonMissingCol,
				ReasonMessage: fmt.Sprintf("required column %q is missing from the batch", name),
			})
		}
	}

	// Columns the schema does not know are a schema-level condition, not a
	// per-row one; report once and leave the rows alone.
	for _, f := range t.Fields {
		if _, ok := s.Field(f.Name); !ok {
			out.addSchemaError(domain.ErrorRecord{
				Column:        f.Name,
				ReasonCode:    domain.ReasonValidationError,
				ReasonMessage: fmt.Sprintf("column %q is not part of the canonical schema", f.Name),
			})
		}
	}

	if len(missing) == 0 {
		validateCells(t, s, &out)
	}
	checkHighLow(t, &out)

	partition(t, &out)
	return out
}

func (o *Outcome) addRowError(ordinal int, rec domain.ErrorRecord) {
	o.RowErrors[ordinal] = append(o.RowErrors[ordinal], rec)
	o.Records = append(o.Records, rec)
	o.Summary.ErrorCodesCount[rec.ReasonCode]++
}

func (o *Outcome) addSchemaError(rec domain.ErrorRecord) {
	o.Records = append(o.Records, rec)
	o.Summary.ErrorCodesCount[rec.ReasonCode]++
}

func missingColumns(t *domain.Table, s domain.Schema) []string {
	var missing []string
	for _, sf := range s.Fields {
		found := false
		for _, f := range t.Fields {
			if f.Name == sf.Name {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, sf.Name)
		}
	}
	return missing
}

func validateCells(t *domain.Table, s domain.Schema, out *Outcome) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for i, row := range t.Rows {
		ordinal := t.Index[i]
		var rowDate time.Time
		var haveDate bool

		for j, f := range t.Fields {
			sf, known := s.Field(f.Name)
			if !known || j >= len(row) {
				continue
			}
			v := row[j]

			if v.IsNull() {
				if !sf.Nullable {
					out.addRowError(ordinal, nullViolation(ordinal, sf))
				}
				continue
			}

			if rec, ok := checkCell(ordinal, sf, v, today); !ok {
				out.addRowError(ordinal, rec)
				continue
			}

			if sf.Name == "date" && v.Kind() == domain.ValueTime {
				rowDate, haveDate = v.AsTime(), true
			}
		}

		// fetched_at can never precede the trading date it claims to
		// have fetched.
		if haveDate {
			if j := fieldPos(t, "fetched_at"); j >= 0 && j < len(row) {
				if v := row[j]; v.Kind() == domain.ValueTime && v.AsTime().Before(rowDate) {
					out.addRowError(ordinal, domain.ErrorRecord{
						RowIndex:      intPtr(ordinal),
						Column:        "fetched_at",
						ReasonCode:    domain.ReasonConstraintViolation,
						ReasonMessage: "fetched_at precedes the row date",
						FailureValue:  strPtr(v.Render("2006-01-02T15:04:05Z", "")),
					})
				}
			}
		}
	}
}

func nullViolation(ordinal int, sf domain.Field) domain.ErrorRecord {
	code := domain.ReasonTypeError
	if sf.Kind == domain.FieldDate || sf.Kind == domain.FieldDatetime {
		code = domain.ReasonBadDate
	}
	return domain.ErrorRecord{
		RowIndex:      intPtr(ordinal),
		Column:        sf.Name,
		ReasonCode:    code,
		ReasonMessage: fmt.Sprintf("column %q does not allow nulls", sf.Name),
	}
}

// checkCell verifies one non-null cell against its schema field. The reason
// code is chosen by the column's semantic role, not just its declared kind.
func checkCell(ordinal int, sf domain.Field, v domain.Value, today time.Time) (domain.ErrorRecord, bool) {
	fail := func(code domain.ReasonCode, msg string) (domain.ErrorRecord, bool) {
		return domain.ErrorRecord{
			RowIndex:      intPtr(ordinal),
			Column:        sf.Name,
			ReasonCode:    code,
			ReasonMessage: msg,
			FailureValue:  strPtr(v.Render("2006-01-02T15:04:05Z", "")),
		}, false
	}

	switch sf.Kind {
	case domain.FieldString:
		if v.Kind() != domain.ValueString {
			return fail(domain.ReasonTypeError, fmt.Sprintf("expected string in %q", sf.Name))
		}
	case domain.FieldFloat:
		if v.Kind() != domain.ValueFloat {
			if isPriceColumn(sf.Name) {
				return fail(domain.ReasonNonNumericPrice, fmt.Sprintf("non-numeric value in price column %q", sf.Name))
			}
			return fail(domain.ReasonTypeError, fmt.Sprintf("expected float in %q", sf.Name))
		}
		if isPriceColumn(sf.Name) && v.AsFloat() < 0 {
			return fail(domain.ReasonConstraintViolation, fmt.Sprintf("negative price in %q", sf.Name))
		}
	case domain.FieldInt:
		if v.Kind() != domain.ValueInt {
			if sf.Name == "volume" {
				return fail(domain.ReasonNonNumericVolume, "non-numeric volume")
			}
			return fail(domain.ReasonTypeError, fmt.Sprintf("expected integer in %q", sf.Name))
		}
		if sf.Name == "volume" && v.AsInt() < 0 {
			return fail(domain.ReasonNegativeVolume, "volume must be non-negative")
		}
	case domain.FieldDate, domain.FieldDatetime:
		if v.Kind() != domain.ValueTime {
			return fail(domain.ReasonBadDate, fmt.Sprintf("unparseable date in %q", sf.Name))
		}
		if sf.Name == "date" && v.AsTime().After(today.Add(24*time.Hour-time.Nanosecond)) {
			return fail(domain.ReasonConstraintViolation, "date is in the future")
		}
	}
	return domain.ErrorRecord{}, true
}

func isPriceColumn(name string) bool {
	switch name {
	case "open", "high", "low", "close", "adj_close":
		return true
	}
	return false
}

// checkHighLow is the cross-column heuristic: rows where high and low are
// both present and high <= low are flagged regardless of what the per-cell
// checks found. Per-column rules cannot see this relation.
func checkHighLow(t *domain.Table, out *Outcome) {
	highPos := fieldPos(t, "high")
	lowPos := fieldPos(t, "low")
	if highPos < 0 || lowPos < 0 {
		return
	}

	for i, row := range t.Rows {
		if highPos >= len(row) || lowPos >= len(row) {
			continue
		}
		high, low := row[highPos], row[lowPos]
		if high.Kind() != domain.ValueFloat || low.Kind() != domain.ValueFloat {
			continue
		}
		if high.AsFloat() <= low.AsFloat() {
			ordinal := t.Index[i]
			out.addRowError(ordinal, domain.ErrorRecord{
				RowIndex:      intPtr(ordinal),
				Column:        "high",
				ReasonCode:    domain.ReasonConstraintViolation,
				ReasonMessage: fmt.Sprintf("high %v must exceed low %v", high.AsFloat(), low.AsFloat()),
				FailureValue:  strPtr(high.Render("2006-01-02", "")),
			})
		}
	}
}

func partition(t *domain.Table, out *Outcome) {
	var validPos, invalidPos []int
	for i := range t.Rows {
		if _, bad := out.RowErrors[t.Index[i]]; bad {
			invalidPos = append(invalidPos, i)
		} else {
			validPos = append(validPos, i)
		}
	}

	out.Valid = t.Select(validPos)
	out.Invalid = t.Select(invalidPos)
	out.Summary.RowsValid = len(validPos)
	out.Summary.RowsInvalid = len(invalidPos)
	if out.Summary.RowsTotal > 0 {
		out.Summary.InvalidPercent = float64(out.Summary.RowsInvalid) / float64(out.Summary.RowsTotal)
	}
}

func emptyLike(t *domain.Table, s domain.Schema) *domain.Table {
	fields := s.Fields
	meta := domain.TableMeta{}
	if t != nil {
		fields = t.Fields
		meta = t.Meta
	}
	return &domain.Table{Fields: fields, Meta: meta}
}

func fieldPos(t *domain.Table, name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
