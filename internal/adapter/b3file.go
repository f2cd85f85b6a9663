package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"b3ingest/pkg/contracts/domain"
)

// B3FileAdapter reads daily-report Excel workbooks exported from B3 and
// extracts one OHLCV row per ticker. The workbook layout drifts between
// report vintages, so the sheet and header row are located heuristically.
type B3FileAdapter struct {
	logger *slog.Logger
}

// NewB3FileAdapter creates a local-file adapter.
func NewB3FileAdapter(logger *slog.Logger) *B3FileAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &B3FileAdapter{logger: logger}
}

// Source returns the provider identifier stamped on payloads.
func (a *B3FileAdapter) Source() string { return "b3file" }

// possibleSheetNames are tried before falling back to header sniffing.
var possibleSheetNames = []string{"Cotacoes", "Cotações", "Negociacao", "Negociação", "Daily", "Sheet1"}

// Fetch reads the workbook named by req.Ticker (the request carries a file
// path for this adapter) and returns its rows as a provider-shaped payload.
func (a *B3FileAdapter) Fetch(ctx context.Context, req FetchRequest) (*domain.RawPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath := req.Ticker
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, NewFetchError(fmt.Sprintf("failed to open workbook %s", filePath), err)
	}
	defer f.Close()

	rows, sheetName, err := a.findDataSheet(f)
	if err != nil {
		return nil, err
	}
	a.logger.Info("found trading data sheet",
		slog.String("sheet_name", sheetName),
		slog.Int("total_rows", len(rows)))

	headerRow, columnMap := findHeaderRow(rows)
	if headerRow == -1 {
		return nil, NewValidationError(
			fmt.Sprintf("could not find header row in %s", filePath))
	}

	for _, col := range []string{"ticker", "date", "open", "high", "low", "close", "volume"} {
		if _, ok := columnMap[col]; !ok {
			return nil, NewValidationError(
				fmt.Sprintf("required column %q not found in %s", col, filePath))
		}
	}

	payload := &domain.RawPayload{
		Columns: []string{"Ticker", "Open", "High", "Low", "Close", "Volume"},
	}

	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if skipWorkbookRow(row, columnMap) {
			continue
		}

		dateCell := strings.TrimSpace(cellAt(row, columnMap["date"]))
		date, derr := parseWorkbookDate(dateCell)
		if derr != nil {
			a.logger.Warn("skipping row with unparseable date",
				slog.Int("row", i),
				slog.String("value", dateCell))
			continue
		}

		payload.Index = append(payload.Index, date)
		payload.Rows = append(payload.Rows, []string{
			strings.TrimSpace(cellAt(row, columnMap["ticker"])),
			stripThousands(cellAt(row, columnMap["open"])),
			stripThousands(cellAt(row, columnMap["high"])),
			stripThousands(cellAt(row, columnMap["low"])),
			stripThousands(cellAt(row, columnMap["close"])),
			stripThousands(cellAt(row, columnMap["volume"])),
		})
	}

	if payload.Empty() {
		return nil, NewValidationError(
			fmt.Sprintf("no data rows found in %s", filePath))
	}

	payload.Meta = domain.PayloadMeta{
		Source:    a.Source(),
		Ticker:    filePath,
		FetchedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
	return payload, nil
}

func (a *B3FileAdapter) findDataSheet(f *excelize.File) ([][]string, string, error) {
	for _, name := range possibleSheetNames {
		if rows, err := f.GetRows(name); err == nil && len(rows) > 1 {
			return rows, name, nil
		}
	}

	// None of the common names matched; sniff for a sheet whose first few
	// rows look like a quote table.
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		limit := len(rows)
		if limit > 6 {
			limit = 6
		}
		for _, row := range rows[:limit] {
			rowText := strings.ToLower(strings.Join(row, " "))
			if headerLooksLikeQuotes(rowText) {
				return rows, name, nil
			}
		}
	}
	return nil, "", NewValidationError("could not find quote data sheet in workbook")
}

func headerLooksLikeQuotes(rowText string) bool {
	hasTicker := strings.Contains(rowText, "ticker") ||
		strings.Contains(rowText, "codigo") || strings.Contains(rowText, "código") ||
		strings.Contains(rowText, "papel")
	hasPrice := strings.Contains(rowText, "open") || strings.Contains(rowText, "abertura") ||
		strings.Contains(rowText, "close") || strings.Contains(rowText, "fechamento")
	hasVolume := strings.Contains(rowText, "volume")
	return hasTicker && hasPrice && hasVolume
}

// findHeaderRow locates the header row and maps logical column names to
// positions. Both English and Portuguese header variants are accepted.
func findHeaderRow(rows [][]string) (int, map[string]int) {
	for i, row := range rows {
		if len(row) < 5 {
			continue
		}
		rowText := strings.ToLower(strings.Join(row, " "))
		if !headerLooksLikeQuotes(rowText) {
			continue
		}

		columnMap := make(map[string]int)
		for j, header := range row {
			h := strings.ToLower(strings.TrimSpace(header))
			switch {
			case h == "ticker" || h == "papel" || strings.Contains(h, "codigo") || strings.Contains(h, "código"):
				columnMap["ticker"] = j
			case h == "date" || h == "data" || strings.Contains(h, "pregao") || strings.Contains(h, "pregão"):
				columnMap["date"] = j
			case strings.Contains(h, "open") || strings.Contains(h, "abertura"):
				columnMap["open"] = j
			case strings.Contains(h, "high") || strings.Contains(h, "max") || strings.Contains(h, "máx"):
				columnMap["high"] = j
			case strings.Contains(h, "low") || strings.Contains(h, "min") || strings.Contains(h, "mín"):
				columnMap["low"] = j
			case strings.Contains(h, "close") || strings.Contains(h, "fechamento"):
				columnMap["close"] = j
			case strings.Contains(h, "volume"):
				columnMap["volume"] = j
			}
		}
		return i, columnMap
	}
	return -1, nil
}

// skipWorkbookRow reports whether a data row is filler: too short, empty,
// a sector/total band, or missing its ticker cell.
func skipWorkbookRow(row []string, columnMap map[string]int) bool {
	if len(row) == 0 {
		return true
	}

	isEmpty := true
	for _, colIndex := range columnMap {
		if strings.TrimSpace(cellAt(row, colIndex)) != "" {
			isEmpty = false
			break
		}
	}
	if isEmpty {
		return true
	}

	first := strings.ToLower(row[0])
	if strings.Contains(first, "setor") || strings.Contains(first, "sector") || strings.Contains(first, "total") {
		return true
	}

	return strings.TrimSpace(cellAt(row, columnMap["ticker"])) == ""
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// stripThousands removes thousands separators so numeric cells survive
// strconv parsing downstream. Brazilian reports use "1.234,56"; exports
// aimed at spreadsheets often use "1,234.56". Decide by which separator
// comes last.
func stripThousands(s string) string {
	s = strings.TrimSpace(s)
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastDot > lastComma:
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

var workbookDateLayouts = []string{"2006-01-02", "02/01/2006", "01/02/06", "2006-01-02 15:04:05"}

func parseWorkbookDate(s string) (time.Time, error) {
	for _, layout := range workbookDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
