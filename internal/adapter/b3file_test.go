package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripThousands(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1.234,56", want: "1234.56"}, // Brazilian notation
		{in: "1,234.56", want: "1234.56"}, // spreadsheet export notation
		{in: "1234.56", want: "1234.56"},
		{in: "1234,56", want: "1234.56"},
		{in: "1000000", want: "1000000"},
		{in: " 42 ", want: "42"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, stripThousands(tt.in), "input %q", tt.in)
	}
}

func TestParseWorkbookDate(t *testing.T) {
	got, err := parseWorkbookDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseWorkbookDate("01/03/2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseWorkbookDate("yesterday")
	assert.Error(t, err)
}

func TestFindHeaderRow(t *testing.T) {
	rows := [][]string{
		{"B3 - Cotações do Pregão"},
		{},
		{"Ticker", "Data", "Abertura", "Máxima", "Mínima", "Fechamento", "Volume"},
		{"PETR4", "2024-03-01", "100", "105", "99", "104", "1000000"},
	}

	headerRow, columnMap := findHeaderRow(rows)
	require.Equal(t, 2, headerRow)
	assert.Equal(t, 0, columnMap["ticker"])
	assert.Equal(t, 1, columnMap["date"])
	assert.Equal(t, 2, columnMap["open"])
	assert.Equal(t, 3, columnMap["high"])
	assert.Equal(t, 4, columnMap["low"])
	assert.Equal(t, 5, columnMap["close"])
	assert.Equal(t, 6, columnMap["volume"])
}

func TestFindHeaderRowEnglish(t *testing.T) {
	rows := [][]string{
		{"Ticker", "Date", "Open", "High", "Low", "Close", "Volume"},
	}
	headerRow, columnMap := findHeaderRow(rows)
	require.Equal(t, 0, headerRow)
	assert.Len(t, columnMap, 7)
}

func TestFindHeaderRowMissing(t *testing.T) {
	rows := [][]string{
		{"just", "some", "unrelated", "cells", "here"},
	}
	headerRow, _ := findHeaderRow(rows)
	assert.Equal(t, -1, headerRow)
}

func TestSkipWorkbookRow(t *testing.T) {
	columnMap := map[string]int{"ticker": 0, "close": 1}

	tests := []struct {
		name string
		row  []string
		want bool
	}{
		{name: "data row kept", row: []string{"PETR4", "104"}, want: false},
		{name: "empty row skipped", row: []string{"", ""}, want: true},
		{name: "zero-length row skipped", row: nil, want: true},
		{name: "sector band skipped", row: []string{"Setor Financeiro", "x"}, want: true},
		{name: "total band skipped", row: []string{"Total", "999"}, want: true},
		{name: "missing ticker skipped", row: []string{"", "104"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, skipWorkbookRow(tt.row, columnMap))
		})
	}
}

func TestHeaderLooksLikeQuotes(t *testing.T) {
	assert.True(t, headerLooksLikeQuotes("ticker data abertura fechamento volume"))
	assert.True(t, headerLooksLikeQuotes("papel open close volume"))
	assert.False(t, headerLooksLikeQuotes("company name sector employees"))
}
