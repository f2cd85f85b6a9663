// Package ingest orchestrates one ticker's pull: fetch, map, persist,
// validate, audit, threshold.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"b3ingest/internal/adapter"
	"b3ingest/internal/checksum"
	"b3ingest/internal/exporter"
	"b3ingest/internal/mapper"
	"b3ingest/internal/store"
	"b3ingest/internal/validation"
	"b3ingest/pkg/contracts/domain"
)

// Pipeline wires the collaborators for ingest jobs. Store is optional;
// when absent (or uninitialized) valid rows stay in the artifacts only.
// SnapshotDir, when set, gets a deterministic export of each accepted
// batch's valid rows.
type Pipeline struct {
	Engine      *adapter.Engine
	Fetch       adapter.FetchFunc
	Provider    string
	Schema      domain.Schema
	RawDir      string
	SnapshotDir string
	Audit       *AuditLog
	Store       *store.Store
	Logger      *slog.Logger
	Tracer      trace.Tracer

	now func() time.Time
}

// Job describes one ticker's ingest request.
type Job struct {
	Ticker         string
	StartDate      string
	EndDate        string
	Threshold      *float64
	AbortOnExceed  bool
	PersistInvalid bool
}

// Run executes one ingest job start to finish. The returned result is never
// nil; when err is non-nil the result's Status is error and its
// ErrorMessage carries the classified cause. Artifacts and audit entries
// written before a late failure stay on disk, so every failure is
// diagnosable after the fact.
func (p *Pipeline) Run(ctx context.Context, job Job) (*domain.IngestJobResult, error) {
	logger := p.logger().With(
		slog.String("ticker", job.Ticker),
		slog.String("provider", p.Provider))

	ctx, span := p.tracer().Start(ctx, "ingest.run",
		trace.WithAttributes(
			attribute.String("ticker", job.Ticker),
			attribute.String("provider", p.Provider)))
	defer span.End()

	result := &domain.IngestJobResult{
		JobID:     uuid.NewString(),
		Source:    p.Provider,
		Status:    domain.JobStatusSuccess,
		CreatedAt: p.timeNow().Format("2006-01-02T15:04:05Z"),
	}

	payload, err := p.fetchStep(ctx, job)
	if err != nil {
		logger.Error("fetch failed, job aborted", slog.String("error", err.Error()))
		result.Status = domain.JobStatusError
		result.ErrorMessage = err.Error()
		p.auditResult(result, logger)
		if adapter.IsValidationError(err) {
			// Structural failures get their own audit record so shape
			// problems at the provider are queryable like row problems.
			p.auditAdapterValidation(job, result, err, logger)
		}
		return result, err
	}
	result.FetchedAt = payload.Meta.FetchedAt
	result.Rows = len(payload.Rows)

	rawPath, digest, err := p.persistRawStep(ctx, job.Ticker, payload)
	if err != nil {
		logger.Error("raw artifact write failed", slog.String("error", err.Error()))
		return p.fail(result, err)
	}
	result.Filepath = rawPath
	result.RawChecksum = digest
	logger.Info("raw artifact persisted",
		slog.String("path", rawPath),
		slog.String("checksum", digest),
		slog.Int("rows", result.Rows))

	table, err := p.mapStep(ctx, payload, job.Ticker, digest)
	if err != nil {
		// The raw artifact stays on disk as evidence.
		logger.Error("mapping failed", slog.String("error", err.Error()))
		return p.fail(result, err)
	}

	outcome := p.validateStep(ctx, table)
	logger.Info("batch validated",
		slog.Int("rows_total", outcome.Summary.RowsTotal),
		slog.Int("rows_valid", outcome.Summary.RowsValid),
		slog.Int("rows_invalid", outcome.Summary.RowsInvalid))

	invalidPath := p.persistInvalidStep(job, outcome, logger)

	p.auditResult(result, logger)
	if outcome.Summary.RowsInvalid > 0 {
		p.auditInvalid(job, result, outcome, rawPath, invalidPath, logger)
	}

	// The threshold gate runs before the store write: an aborted batch
	// must not promote any of its rows, valid or not.
	threshold := validation.ResolveThreshold(job.Threshold, logger)
	ok, err := validation.CheckThreshold(outcome.Summary, threshold, job.AbortOnExceed)
	if err != nil {
		// The audit entry and artifacts are already durable; just mark
		// the job aborted.
		logger.Error("invalid-rate threshold exceeded, job aborted",
			slog.Float64("invalid_percent", outcome.Summary.InvalidPercent),
			slog.Float64("threshold", threshold))
		result.Status = domain.JobStatusError
		result.ErrorMessage = err.Error()
		return result, err
	}
	if !ok {
		logger.Warn("invalid-rate threshold exceeded",
			slog.Float64("invalid_percent", outcome.Summary.InvalidPercent),
			slog.Float64("threshold", threshold))
	}

	if err := p.storeStep(ctx, outcome.Valid, result, logger); err != nil {
		logger.Error("store write failed", slog.String("error", err.Error()))
		result.Status = domain.JobStatusError
		result.ErrorMessage = err.Error()
		return result, err
	}

	p.snapshotStep(job, outcome.Valid, logger)

	return result, nil
}

func (p *Pipeline) fetchStep(ctx context.Context, job Job) (*domain.RawPayload, error) {
	ctx, span := p.tracer().Start(ctx, "ingest.fetch")
	defer span.End()

	return p.Engine.Fetch(ctx, adapter.FetchRequest{
		Ticker:    job.Ticker,
		StartDate: job.StartDate,
		EndDate:   job.EndDate,
		Timeout:   p.Engine.Config().Timeout,
	}, p.Fetch)
}

func (p *Pipeline) persistRawStep(ctx context.Context, ticker string, payload *domain.RawPayload) (string, string, error) {
	_, span := p.tracer().Start(ctx, "ingest.persist_raw")
	defer span.End()

	data := checksum.SerializeRaw(payload, checksum.Options{IncludeIndex: true})
	path := filepath.Join(p.RawDir, p.Provider,
		fmt.Sprintf("%s-%s.csv", safeName(ticker), p.timeNow().Format("20060102T150405Z")))

	digest, err := writeArtifact(path, data)
	if err != nil {
		return "", "", err
	}
	return path, digest, nil
}

func (p *Pipeline) mapStep(ctx context.Context, payload *domain.RawPayload, ticker, digest string) (*domain.Table, error) {
	_, span := p.tracer().Start(ctx, "ingest.map")
	defer span.End()

	return mapper.ToCanonical(payload, p.Schema, mapper.Options{
		Provider:    p.Provider,
		Ticker:      ticker,
		RawChecksum: digest,
		FetchedAt:   payload.Meta.FetchedAt,
	})
}

func (p *Pipeline) validateStep(ctx context.Context, table *domain.Table) validation.Outcome {
	_, span := p.tracer().Start(ctx, "ingest.validate")
	defer span.End()

	coerced := validation.Coerce(table, p.Schema)
	return validation.Validate(coerced, p.Schema)
}

// persistInvalidStep writes the invalid-row artifact when requested,
// returning its path (empty when nothing was written). A write failure is
// logged, not fatal: the audit records still carry the error details.
func (p *Pipeline) persistInvalidStep(job Job, outcome validation.Outcome, logger *slog.Logger) string {
	if !job.PersistInvalid || outcome.Summary.RowsInvalid == 0 {
		return ""
	}

	data := checksum.SerializeTable(outcome.Invalid, checksum.Options{IncludeIndex: true})
	path := filepath.Join(p.RawDir, p.Provider, "invalid",
		fmt.Sprintf("invalid-%s-%s.csv", safeName(job.Ticker), p.timeNow().Format("20060102T150405Z")))

	if _, err := writeArtifact(path, data); err != nil {
		logger.Warn("failed to persist invalid-row artifact",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return ""
	}
	logger.Info("invalid rows persisted",
		slog.String("path", path),
		slog.Int("count", outcome.Summary.RowsInvalid))
	return path
}

// auditResult appends the ingest-attempt record. Best effort: a failed
// append is logged once and never fails the job.
func (p *Pipeline) auditResult(result *domain.IngestJobResult, logger *slog.Logger) {
	if p.Audit == nil {
		return
	}
	if err := p.Audit.Append(result); err != nil {
		logger.Warn("failed to append audit record", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) auditInvalid(job Job, result *domain.IngestJobResult, outcome validation.Outcome, rawPath, invalidPath string, logger *slog.Logger) {
	if p.Audit == nil {
		return
	}
	entry := domain.InvalidRowsEntry{
		JobID:           result.JobID,
		Provider:        p.Provider,
		Ticker:          job.Ticker,
		RawFile:         rawPath,
		InvalidFilepath: invalidPath,
		InvalidCount:    outcome.Summary.RowsInvalid,
		ErrorDetails:    outcome.Records,
		CreatedAt:       p.timeNow().Format("2006-01-02T15:04:05Z"),
	}
	if err := p.Audit.Append(entry); err != nil {
		logger.Warn("failed to append invalid-rows audit record", slog.String("error", err.Error()))
	}
}

// snapshotStep exports the accepted batch's valid rows when a snapshot
// directory is configured. Best effort: the store already holds the rows,
// a failed export only costs the flat file.
func (p *Pipeline) snapshotStep(job Job, valid *domain.Table, logger *slog.Logger) {
	if p.SnapshotDir == "" || valid == nil || valid.Len() == 0 {
		return
	}
	path := filepath.Join(p.SnapshotDir,
		fmt.Sprintf("%s-%s.csv", safeName(job.Ticker), p.timeNow().Format("20060102T150405Z")))
	digest, err := exporter.WriteSnapshot(valid, path)
	if err != nil {
		logger.Warn("failed to write snapshot",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("snapshot written",
		slog.String("path", path),
		slog.String("checksum", digest),
		slog.Int("rows", valid.Len()))
}

// auditAdapterValidation records a structural fetch failure as an
// invalid-rows entry so the audit trail covers provider-shape problems,
// not just row-level ones.
func (p *Pipeline) auditAdapterValidation(job Job, result *domain.IngestJobResult, cause error, logger *slog.Logger) {
	if p.Audit == nil {
		return
	}
	entry := domain.InvalidRowsEntry{
		JobID:        result.JobID,
		Provider:     p.Provider,
		Ticker:       job.Ticker,
		InvalidCount: 0,
		ErrorDetails: []domain.ErrorRecord{{
			ReasonCode:    domain.ReasonAdapterValidation,
			ReasonMessage: cause.Error(),
		}},
		CreatedAt: p.timeNow().Format("2006-01-02T15:04:05Z"),
	}
	if err := p.Audit.Append(entry); err != nil {
		logger.Warn("failed to append adapter-validation audit record", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) storeStep(ctx context.Context, valid *domain.Table, result *domain.IngestJobResult, logger *slog.Logger) error {
	if p.Store == nil {
		return nil
	}
	if !p.Store.Initialized(ctx) {
		logger.Warn("price store schema missing, skipping store writes",
			slog.String("db", p.Store.Path()))
		return nil
	}

	ctx, span := p.tracer().Start(ctx, "ingest.store")
	defer span.End()

	rows := priceRows(valid)
	if err := p.Store.UpsertPrices(ctx, rows); err != nil {
		return fmt.Errorf("failed to store valid rows: %w", err)
	}
	if err := p.Store.RecordJob(ctx, result); err != nil {
		logger.Warn("failed to mirror job into ingest_logs", slog.String("error", err.Error()))
	}
	logger.Info("valid rows stored", slog.Int("count", len(rows)))
	return nil
}

func (p *Pipeline) fail(result *domain.IngestJobResult, err error) (*domain.IngestJobResult, error) {
	result.Status = domain.JobStatusError
	result.ErrorMessage = err.Error()
	p.auditResult(result, p.logger())
	return result, err
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) tracer() trace.Tracer {
	if p.Tracer != nil {
		return p.Tracer
	}
	return otel.Tracer("b3ingest/ingest")
}

func (p *Pipeline) timeNow() time.Time {
	if p.now != nil {
		return p.now().UTC()
	}
	return time.Now().UTC()
}

func safeName(ticker string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return r.Replace(ticker)
}
