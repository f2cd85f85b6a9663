package ingest

import (
	"b3ingest/pkg/contracts/domain"
)

// priceRows flattens a validated canonical table into store-shaped rows.
// Rows without a usable date are skipped; the store key needs one.
func priceRows(t *domain.Table) []domain.PriceRow {
	if t == nil || t.Len() == 0 {
		return nil
	}

	pos := make(map[string]int, len(t.Fields))
	for i, f := range t.Fields {
		pos[f.Name] = i
	}

	rows := make([]domain.PriceRow, 0, t.Len())
	for _, row := range t.Rows {
		get := func(name string) domain.Value {
			i, ok := pos[name]
			if !ok || i >= len(row) {
				return domain.Null()
			}
			return row[i]
		}

		dateVal := get("date")
		if dateVal.Kind() != domain.ValueTime {
			continue
		}

		rows = append(rows, domain.PriceRow{
			Ticker:      stringOr(get("ticker"), t.Meta.Ticker),
			Date:        dateVal.AsTime(),
			Open:        floatPtr(get("open")),
			High:        floatPtr(get("high")),
			Low:         floatPtr(get("low")),
			Close:       floatPtr(get("close")),
			AdjClose:    floatPtr(get("adj_close")),
			Volume:      intPtr(get("volume")),
			Source:      stringOr(get("source"), t.Meta.Provider),
			FetchedAt:   renderTime(get("fetched_at")),
			RawChecksum: stringOr(get("raw_checksum"), t.Meta.RawChecksum),
		})
	}
	return rows
}

func floatPtr(v domain.Value) *float64 {
	if v.Kind() != domain.ValueFloat {
		return nil
	}
	f := v.AsFloat()
	return &f
}

func intPtr(v domain.Value) *int64 {
	if v.Kind() != domain.ValueInt {
		return nil
	}
	n := v.AsInt()
	return &n
}

func stringOr(v domain.Value, fallback string) string {
	if v.Kind() == domain.ValueString && v.AsString() != "" {
		return v.AsString()
	}
	return fallback
}

func renderTime(v domain.Value) string {
	switch v.Kind() {
	case domain.ValueTime:
		return v.AsTime().UTC().Format("2006-01-02T15:04:05Z")
	case domain.ValueString:
		return v.AsString()
	}
	return ""
}
