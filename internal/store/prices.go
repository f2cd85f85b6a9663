package store

import (
	"context"
	"fmt"

	"b3ingest/pkg/contracts/domain"
)

const upsertPriceSQL = `
INSERT INTO prices (ticker, date, open, high, low, close, adj_close, volume, source, fetched_at, raw_checksum)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(ticker, date) DO UPDATE SET
	open = excluded.open,
	high = excluded.high,
	low = excluded.low,
	close = excluded.close,
	adj_close = excluded.adj_close,
	volume = excluded.volume,
	source = excluded.source,
	fetched_at = excluded.fetched_at,
	raw_checksum = excluded.raw_checksum
`

// UpsertPrices writes canonical rows keyed by (ticker, date), replacing any
// prior values for the same key. The whole batch goes in one transaction.
func (s *Store) UpsertPrices(ctx context.Context, rows []domain.PriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPriceSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.Ticker,
			row.Date.UTC().Format("2006-01-02"),
			row.Open,
			row.High,
			row.Low,
			row.Close,
			row.AdjClose,
			row.Volume,
			row.Source,
			row.FetchedAt,
			row.RawChecksum,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert %s/%s: %w", row.Ticker, row.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price batch: %w", err)
	}
	return nil
}

// CountPrices returns the number of stored rows for a ticker; with an empty
// ticker it counts every row.
func (s *Store) CountPrices(ctx context.Context, ticker string) (int, error) {
	var count int
	var err error
	if ticker == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prices`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prices WHERE ticker = ?`, ticker).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return count, nil
}

// ClosePrices returns a ticker's close series in date order. Rows without
// a close value are skipped so the series stays usable for return math.
func (s *Store) ClosePrices(ctx context.Context, ticker string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT close FROM prices WHERE ticker = ? AND close IS NOT NULL ORDER BY date`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query close prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var series []float64
	for rows.Next() {
		var close float64
		if err := rows.Scan(&close); err != nil {
			return nil, fmt.Errorf("failed to scan close price: %w", err)
		}
		series = append(series, close)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read close prices: %w", err)
	}
	return series, nil
}

// RecordJob mirrors one audit entry into the ingest_logs table when the
// schema exists. Best effort alongside the JSONL audit log.
func (s *Store) RecordJob(ctx context.Context, r *domain.IngestJobResult) error {
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO ingest_logs (job_id, source, fetched_at, raw_checksum, rows, filepath, status, error_message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.JobID, r.Source, r.FetchedAt, r.RawChecksum, r.Rows, r.Filepath, string(r.Status), r.ErrorMessage, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", r.JobID, err)
	}
	return nil
}
