package domain

import (
	"time"
)

// JobStatus is the terminal status of one ingest job.
type JobStatus string

const (
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
)

// IngestJobResult records one fetch-and-persist attempt. It is written once
// to the audit log and immutable thereafter.
type IngestJobResult struct {
	JobID        string    `json:"job_id" validate:"required,uuid"`
	Source       string    `json:"source" validate:"required"`
	FetchedAt    string    `json:"fetched_at" validate:"required"`
	RawChecksum  string    `json:"raw_checksum,omitempty" validate:"omitempty,len=64,hexadecimal"`
	Rows         int       `json:"rows" validate:"min=0"`
	Filepath     string    `json:"filepath"`
	Status       JobStatus `json:"status" validate:"required,oneof=success error"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    string    `json:"created_at" validate:"required"`
}

// InvalidRowsEntry is the audit-log record written when a batch produced
// invalid rows.
type InvalidRowsEntry struct {
	JobID           string        `json:"job_id"`
	Provider        string        `json:"provider"`
	Ticker          string        `json:"ticker"`
	RawFile         string        `json:"raw_file"`
	InvalidFilepath string        `json:"invalid_filepath"`
	InvalidCount    int           `json:"invalid_count"`
	ErrorDetails    []ErrorRecord `json:"error_details"`
	CreatedAt       string        `json:"created_at"`
}

// PriceRow is one canonical row shaped for the price store, keyed by
// (Ticker, Date). Nullable columns are pointers; downstream consumers never
// mutate a PriceRow, they read or re-derive.
type PriceRow struct {
	Ticker      string    `json:"ticker" db:"ticker" validate:"required"`
	Date        time.Time `json:"date" db:"date" validate:"required"`
	Open        *float64  `json:"open" db:"open"`
	High        *float64  `json:"high" db:"high"`
	Low         *float64  `json:"low" db:"low"`
	Close       *float64  `json:"close" db:"close"`
	AdjClose    *float64  `json:"adj_close" db:"adj_close"`
	Volume      *int64    `json:"volume" db:"volume" validate:"omitempty,min=0"`
	Source      string    `json:"source" db:"source" validate:"required"`
	FetchedAt   string    `json:"fetched_at" db:"fetched_at" validate:"required"`
	RawChecksum string    `json:"raw_checksum" db:"raw_checksum" validate:"required,len=64,hexadecimal"`
}
