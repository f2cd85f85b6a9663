package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3ingest/internal/adapter"
	"b3ingest/internal/checksum"
	"b3ingest/internal/schema"
	"b3ingest/internal/store"
	"b3ingest/internal/validation"
	"b3ingest/pkg/contracts/domain"
)

const pipelineSchemaDoc = `{
	"version": 1,
	"columns": [
		{"name": "ticker", "type": "string", "nullable": false},
		{"name": "date", "type": "date", "nullable": false},
		{"name": "open", "type": "float", "nullable": true},
		{"name": "high", "type": "float", "nullable": true},
		{"name": "low", "type": "float", "nullable": true},
		{"name": "close", "type": "float", "nullable": true},
		{"name": "adj_close", "type": "float", "nullable": true},
		{"name": "volume", "type": "int", "nullable": true},
		{"name": "source", "type": "string", "nullable": false},
		{"name": "fetched_at", "type": "datetime", "nullable": false},
		{"name": "raw_checksum", "type": "string", "nullable": false}
	]
}`

var checksumRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPipeline(t *testing.T, fetch adapter.FetchFunc) *Pipeline {
	t.Helper()
	s, err := schema.Parse([]byte(pipelineSchemaDoc))
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := adapter.NewRetryConfig()
	cfg.MaxAttempts = 1

	return &Pipeline{
		Engine:   adapter.NewEngine(cfg, adapter.NewMetrics(), discardLogger()),
		Fetch:    fetch,
		Provider: "yahoo",
		Schema:   s,
		RawDir:   filepath.Join(dir, "raw"),
		Audit:    NewAuditLog(filepath.Join(dir, "metadata", "ingest_logs.json")),
		Logger:   discardLogger(),
		now:      func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) },
	}
}

func stubPayload(rows [][]string) *domain.RawPayload {
	index := make([]time.Time, len(rows))
	for i := range rows {
		index[i] = time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC)
	}
	return &domain.RawPayload{
		Columns: []string{"Open", "High", "Low", "Close", "Adj Close", "Volume"},
		Index:   index,
		Rows:    rows,
		Meta: domain.PayloadMeta{
			Source:    "yahoo",
			Ticker:    "PETR4.SA",
			FetchedAt: "2024-03-05T12:00:00Z",
		},
	}
}

func stubFetch(payload *domain.RawPayload, err error) adapter.FetchFunc {
	return func(ctx context.Context, req adapter.FetchRequest) (*domain.RawPayload, error) {
		if err != nil {
			return nil, err
		}
		return payload, nil
	}
}

func TestPipelineRunHappyPath(t *testing.T) {
	payload := stubPayload([][]string{
		{"100", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))

	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA", PersistInvalid: true})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, domain.JobStatusSuccess, result.Status)
	assert.Equal(t, "yahoo", result.Source)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, "2024-03-05T12:00:00Z", result.FetchedAt)
	assert.Regexp(t, checksumRe, result.RawChecksum)
	assert.NotEmpty(t, result.JobID)

	// Raw artifact and sidecar on disk.
	assert.FileExists(t, result.Filepath)
	assert.FileExists(t, result.Filepath+".checksum")

	// Exactly one audit record, the job result.
	records, err := p.Audit.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	var logged domain.IngestJobResult
	require.NoError(t, json.Unmarshal(records[0], &logged))
	assert.Equal(t, result.JobID, logged.JobID)
	assert.Equal(t, domain.JobStatusSuccess, logged.Status)
}

func TestPipelineRunInvalidRows(t *testing.T) {
	payload := stubPayload([][]string{
		{"n/a", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
		{"105", "107", "101", "106", "105.5", "3000000"},
		{"106", "108", "102", "107", "106.5", "4000000"},
		{"107", "109", "103", "108", "107.5", "5000000"},
		{"108", "110", "104", "109", "108.5", "6000000"},
		{"109", "111", "105", "110", "109.5", "7000000"},
		{"110", "112", "106", "111", "110.5", "8000000"},
		{"111", "113", "107", "112", "111.5", "9000000"},
		{"112", "114", "108", "113", "112.5", "9500000"},
		{"113", "115", "109", "114", "113.5", "9600000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))

	// 1 of 11 rows invalid (~9.1%) stays under the default 10% ceiling.
	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA", AbortOnExceed: true, PersistInvalid: true})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, result.Status)

	// Invalid-row artifact written under the provider's invalid/ dir.
	invalidDir := filepath.Join(p.RawDir, "yahoo", "invalid")
	entries, err := os.ReadDir(invalidDir)
	require.NoError(t, err)
	require.Len(t, entries, 2) // artifact + sidecar
	var found bool
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".csv" {
			found = true
			assert.Contains(t, e.Name(), "invalid-PETR4.SA")
		}
	}
	assert.True(t, found)

	// Two audit records: the job result and the invalid-rows entry.
	records, err := p.Audit.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)

	var entry domain.InvalidRowsEntry
	require.NoError(t, json.Unmarshal(records[1], &entry))
	assert.Equal(t, result.JobID, entry.JobID)
	assert.Equal(t, "yahoo", entry.Provider)
	assert.Equal(t, 1, entry.InvalidCount)
	require.NotEmpty(t, entry.ErrorDetails)
	assert.Equal(t, domain.ReasonNonNumericPrice, entry.ErrorDetails[0].ReasonCode)
	assert.NotEmpty(t, entry.InvalidFilepath)
	assert.Equal(t, result.Filepath, entry.RawFile)
}

func TestPipelineRunThresholdAbort(t *testing.T) {
	payload := stubPayload([][]string{
		{"n/a", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))

	// 50% invalid, abort requested.
	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA", AbortOnExceed: true})
	require.Error(t, err)
	var thErr *validation.ThresholdError
	require.ErrorAs(t, err, &thErr)
	assert.Equal(t, 1, thErr.RowsInvalid)
	assert.Equal(t, 2, thErr.RowsTotal)

	assert.Equal(t, domain.JobStatusError, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)

	// The abort does not duplicate the audit record: one job result plus
	// the invalid-rows entry.
	records, auditErr := p.Audit.Records()
	require.NoError(t, auditErr)
	assert.Len(t, records, 2)

	// Raw artifact survives the abort.
	assert.FileExists(t, result.Filepath)
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

func TestPipelineRunThresholdAbortSkipsStore(t *testing.T) {
	payload := stubPayload([][]string{
		{"n/a", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))
	p.Store = testStore(t)

	// 50% invalid with abort requested: the batch never reaches the
	// store, valid rows included.
	_, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA", AbortOnExceed: true})
	var thErr *validation.ThresholdError
	require.ErrorAs(t, err, &thErr)

	count, err := p.Store.CountPrices(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPipelineRunStoresValidRows(t *testing.T) {
	payload := stubPayload([][]string{
		{"100", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))
	p.Store = testStore(t)

	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, result.Status)

	count, err := p.Store.CountPrices(context.Background(), "PETR4.SA")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPipelineRunWritesSnapshot(t *testing.T) {
	payload := stubPayload([][]string{
		{"100", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))
	p.SnapshotDir = filepath.Join(t.TempDir(), "snapshots")

	_, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA"})
	require.NoError(t, err)

	path := filepath.Join(p.SnapshotDir, "PETR4.SA-20240305T120000Z.csv")
	require.FileExists(t, path)
	require.FileExists(t, path+".checksum")

	digest, err := checksum.SHA256File(path)
	require.NoError(t, err)
	sidecar, err := os.ReadFile(path + ".checksum")
	require.NoError(t, err)
	assert.Equal(t, digest+"\n", string(sidecar))
}

func TestPipelineRunThresholdExceededWithoutAbort(t *testing.T) {
	payload := stubPayload([][]string{
		{"n/a", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))

	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, result.Status)
}

func TestPipelineRunExplicitThreshold(t *testing.T) {
	payload := stubPayload([][]string{
		{"n/a", "105", "99", "104", "103.5", "1000000"},
		{"104", "106", "100", "105", "104.5", "2000000"},
	})
	p := testPipeline(t, stubFetch(payload, nil))

	// A permissive explicit threshold keeps the 50% batch alive.
	loose := 0.60
	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA", Threshold: &loose, AbortOnExceed: true})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, result.Status)
}

func TestPipelineRunFetchFailure(t *testing.T) {
	p := testPipeline(t, stubFetch(nil, adapter.NewValidationError("provider returned an empty payload")))

	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA"})
	require.Error(t, err)
	assert.True(t, adapter.IsValidationError(err))

	assert.Equal(t, domain.JobStatusError, result.Status)
	assert.Contains(t, result.ErrorMessage, "empty payload")
	assert.Empty(t, result.Filepath)

	// The failed attempt is audited, plus an invalid-rows record carrying
	// the adapter-validation reason code.
	records, auditErr := p.Audit.Records()
	require.NoError(t, auditErr)
	require.Len(t, records, 2)
	var logged domain.IngestJobResult
	require.NoError(t, json.Unmarshal(records[0], &logged))
	assert.Equal(t, domain.JobStatusError, logged.Status)

	var entry domain.InvalidRowsEntry
	require.NoError(t, json.Unmarshal(records[1], &entry))
	assert.Equal(t, result.JobID, entry.JobID)
	assert.Zero(t, entry.InvalidCount)
	require.Len(t, entry.ErrorDetails, 1)
	assert.Equal(t, domain.ReasonAdapterValidation, entry.ErrorDetails[0].ReasonCode)
	assert.Contains(t, entry.ErrorDetails[0].ReasonMessage, "empty payload")
}

func TestPipelineRunNetworkFailureNoAdapterRecord(t *testing.T) {
	p := testPipeline(t, stubFetch(nil, adapter.NewNetworkError("connection reset", nil)))

	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA"})
	require.Error(t, err)
	assert.Equal(t, domain.JobStatusError, result.Status)

	// A transient failure audits only the job result.
	records, auditErr := p.Audit.Records()
	require.NoError(t, auditErr)
	assert.Len(t, records, 1)
}

func TestPipelineRunMappingFailure(t *testing.T) {
	payload := &domain.RawPayload{
		Columns: []string{"Open"},
		Index:   []time.Time{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		Rows:    [][]string{{"100"}},
		Meta:    domain.PayloadMeta{Source: "yahoo", Ticker: "PETR4.SA", FetchedAt: "2024-03-05T12:00:00Z"},
	}
	p := testPipeline(t, stubFetch(payload, nil))

	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA"})
	require.Error(t, err)
	assert.Equal(t, domain.JobStatusError, result.Status)

	// The raw artifact stays on disk as evidence of what was fetched.
	assert.FileExists(t, result.Filepath)
	assert.Regexp(t, checksumRe, result.RawChecksum)
}

func TestPipelineRunNilAuditTolerated(t *testing.T) {
	payload := stubPayload([][]string{{"100", "105", "99", "104", "103.5", "1000000"}})
	p := testPipeline(t, stubFetch(payload, nil))
	p.Audit = nil

	result, err := p.Run(context.Background(), Job{Ticker: "PETR4.SA"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSuccess, result.Status)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "PETR4.SA", safeName("PETR4.SA"))
	assert.Equal(t, "_etc_passwd", safeName("/etc/passwd"))
	assert.Equal(t, "__up", safeName("../up"))
	assert.Equal(t, "a_b", safeName("a b"))
}
