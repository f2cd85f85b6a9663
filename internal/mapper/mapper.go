// Package mapper transforms provider-native payloads into canonical tables
// shaped by the externally-loaded schema document.
package mapper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"b3ingest/internal/checksum"
	"b3ingest/pkg/contracts/domain"
)

// requiredRawColumns must be present, case-insensitively, in every provider
// payload before mapping is attempted.
var requiredRawColumns = []string{"open", "high", "low", "close", "volume"}

// columnAliases maps canonical field names to the provider spellings they
// may arrive under. Lookup is case-insensitive; the canonical name itself is
// always tried first.
var columnAliases = map[string][]string{
	"open":      {"open", "opening price", "abertura"},
	"high":      {"high", "highest price", "maxima", "máxima"},
	"low":       {"low", "lowest price", "minima", "mínima"},
	"close":     {"close", "closing price", "fechamento"},
	"adj_close": {"adj_close", "adj close", "adjclose", "adjusted close"},
	"volume":    {"volume", "traded volume"},
}

// Options carries the caller-supplied provenance for one mapping call.
// RawChecksum and FetchedAt are optional; when absent they are derived
// (checksum from the payload's deterministic serialization, fetched_at
// stamped at mapping time).
type Options struct {
	Provider    string
	Ticker      string
	RawChecksum string
	FetchedAt   string
}

// ToCanonical maps a raw provider payload onto the canonical schema. Fields
// the payload cannot supply are filled with nulls; the special fields
// (ticker, date, source, fetched_at, raw_checksum) are injected from the
// row index and Options. The returned table carries its provenance as
// out-of-band metadata, never as extra columns beyond what the schema
// defines.
func ToCanonical(raw *domain.RawPayload, s domain.Schema, opts Options) (*domain.Table, error) {
	if raw == nil || raw.Empty() {
		return nil, newMappingError(opts.Ticker, "empty payload, nothing to map", nil)
	}

	if missing := missingRequiredColumns(raw); len(missing) > 0 {
		return nil, newMappingError(opts.Ticker,
			fmt.Sprintf("required columns missing: %v (available: %v)", missing, raw.Columns), nil)
	}

	rawChecksum := opts.RawChecksum
	if rawChecksum == "" {
		rawChecksum = checksum.SHA256Bytes(checksum.SerializeRaw(raw, checksum.Options{IncludeIndex: true}))
	}
	fetchedAt := opts.FetchedAt
	if fetchedAt == "" {
		fetchedAt = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}

	dateCol := raw.ColumnFold("date")

	t := &domain.Table{
		Fields: s.Fields,
		Meta: domain.TableMeta{
			RawChecksum: rawChecksum,
			Provider:    opts.Provider,
			Ticker:      opts.Ticker,
		},
	}

	for i := range raw.Rows {
		row := make([]domain.Value, len(s.Fields))
		for j, field := range s.Fields {
			row[j] = mapCell(raw, i, field, dateCol, opts, fetchedAt, rawChecksum)
		}
		t.Index = append(t.Index, i)
		t.Rows = append(t.Rows, row)
	}

	if err := checkStructure(t); err != nil {
		return nil, newMappingError(opts.Ticker, "canonical schema rejected the mapped table", err)
	}
	return t, nil
}

func missingRequiredColumns(raw *domain.RawPayload) []string {
	var missing []string
	for _, col := range requiredRawColumns {
		if raw.ColumnFold(col) < 0 {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}

func mapCell(raw *domain.RawPayload, i int, field domain.Field, dateCol int, opts Options, fetchedAt, rawChecksum string) domain.Value {
	switch field.Name {
	case "ticker":
		// File-based providers carry the symbol per row; the request-level
		// ticker covers the rest.
		if col := raw.ColumnFold("ticker"); col >= 0 {
			if cell := strings.TrimSpace(raw.Cell(i, col)); cell != "" {
				return domain.String(cell)
			}
		}
		return domain.String(opts.Ticker)
	case "source":
		return domain.String(opts.Provider)
	case "fetched_at":
		return domain.String(fetchedAt)
	case "raw_checksum":
		return domain.String(rawChecksum)
	case "date":
		if dateCol >= 0 {
			return coerceValue(raw.Cell(i, dateCol), field.Kind)
		}
		if i < len(raw.Index) {
			return domain.Time(raw.Index[i].UTC())
		}
		return domain.Null()
	}

	col := matchRawColumn(raw, field.Name)
	if col < 0 {
		return domain.Null()
	}
	return coerceValue(raw.Cell(i, col), field.Kind)
}

func matchRawColumn(raw *domain.RawPayload, canonical string) int {
	aliases, ok := columnAliases[canonical]
	if !ok {
		aliases = []string{canonical}
	}
	for _, alias := range aliases {
		if col := raw.ColumnFold(alias); col >= 0 {
			return col
		}
	}
	return -1
}

// dateLayouts accepted when the payload carries dates as text.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// coerceValue converts a provider cell to the canonical field's kind where
// the text allows it. Cells that resist coercion are kept as strings so the
// validation pass can report them with the offending value attached.
func coerceValue(cell string, kind domain.FieldKind) domain.Value {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return domain.Null()
	}

	switch kind {
	case domain.FieldString:
		return domain.String(cell)
	case domain.FieldFloat:
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			return domain.Float(f)
		}
	case domain.FieldInt:
		if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return domain.Int(n)
		}
		// Providers hand volumes back as floats ("1000000.0"); accept the
		// ones that are integral.
		if f, err := strconv.ParseFloat(cell, 64); err == nil && f == float64(int64(f)) {
			return domain.Int(int64(f))
		}
	case domain.FieldDate, domain.FieldDatetime:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, cell); err == nil {
				return domain.Time(t.UTC())
			}
		}
	}
	return domain.String(cell)
}

// checkStructure enforces the cross-column invariant the canonical schema
// cannot express per-cell: high must exceed low when both are present.
func checkStructure(t *domain.Table) error {
	highPos := fieldPosition(t, "high")
	lowPos := fieldPosition(t, "low")
	if highPos < 0 || lowPos < 0 {
		return nil
	}
	for i, row := range t.Rows {
		high, low := row[highPos], row[lowPos]
		if high.Kind() != domain.ValueFloat || low.Kind() != domain.ValueFloat {
			continue
		}
		if high.AsFloat() < low.AsFloat() {
			return fmt.Errorf("row %d: high %v is below low %v", t.Index[i], high.AsFloat(), low.AsFloat())
		}
	}
	return nil
}

func fieldPosition(t *domain.Table, name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
