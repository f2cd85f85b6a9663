// Package checksum computes SHA-256 digests and deterministic byte
// serializations of tabular data. Determinism is load-bearing: two
// serializations of logically equal tables must be byte-identical, which is
// what makes raw_checksum a reliable provenance and dedup key across re-runs.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"

	"b3ingest/pkg/contracts/domain"
)

// fileChunkSize is the streaming read size for SHA256File.
const fileChunkSize = 8 * 1024

// SHA256Bytes returns the lowercase hex SHA-256 digest of data.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256File returns the lowercase hex SHA-256 digest of the file at path,
// read in fixed-size chunks so memory stays constant for large artifacts.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, fileChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file for checksum: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Options controls table serialization. Zero values pick the fixed defaults
// used for provenance checksums.
type Options struct {
	// IncludeIndex emits the row index as the first column.
	IncludeIndex bool
	// ColumnOrder fixes the emitted column order. Nil means sorted
	// alphabetically.
	ColumnOrder []string
	// DateFormat renders time values. Empty means "2006-01-02T15:04:05".
	DateFormat string
	// NARep renders missing values. Default is the empty string.
	NARep string
}

func (o Options) dateFormat() string {
	if o.DateFormat == "" {
		return "2006-01-02T15:04:05"
	}
	return o.DateFormat
}

// SerializeRaw serializes a provider payload deterministically: columns
// sorted alphabetically unless an explicit order is given, rows sorted by
// index timestamp, index rendered with the fixed date format.
func SerializeRaw(p *domain.RawPayload, opts Options) []byte {
	cols := opts.ColumnOrder
	if cols == nil {
		cols = append([]string(nil), p.Columns...)
		sort.Strings(cols)
	}

	order := make([]int, len(p.Rows))
	for i := range order {
		order[i] = i
	}
	if len(p.Index) == len(p.Rows) {
		sort.SliceStable(order, func(a, b int) bool {
			return p.Index[order[a]].Before(p.Index[order[b]])
		})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := cols
	if opts.IncludeIndex {
		header = append([]string{"index"}, cols...)
	}
	w.Write(header)

	colIdx := make([]int, len(cols))
	for i, c := range cols {
		colIdx[i] = p.Column(c)
	}

	for _, row := range order {
		record := make([]string, 0, len(header))
		if opts.IncludeIndex {
			if row < len(p.Index) {
				record = append(record, p.Index[row].UTC().Format(opts.dateFormat()))
			} else {
				record = append(record, opts.NARep)
			}
		}
		for _, ci := range colIdx {
			if ci < 0 {
				record = append(record, opts.NARep)
				continue
			}
			cell := p.Cell(row, ci)
			if cell == "" {
				cell = opts.NARep
			}
			record = append(record, cell)
		}
		w.Write(record)
	}

	w.Flush()
	return buf.Bytes()
}

// SerializeTable serializes a canonical table deterministically: columns
// sorted alphabetically unless an explicit order is given, rows sorted by
// original row ordinal, floats rendered with a fixed precision, missing
// values as the NA sentinel.
func SerializeTable(t *domain.Table, opts Options) []byte {
	names := opts.ColumnOrder
	if names == nil {
		names = make([]string, len(t.Fields))
		for i, f := range t.Fields {
			names[i] = f.Name
		}
		sort.Strings(names)
	}

	order := make([]int, t.Len())
	for i := range order {
		order[i] = i
	}
	if len(t.Index) == t.Len() {
		sort.SliceStable(order, func(a, b int) bool {
			return t.Index[order[a]] < t.Index[order[b]]
		})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := names
	if opts.IncludeIndex {
		header = append([]string{"index"}, names...)
	}
	w.Write(header)

	colIdx := make([]int, len(names))
	for i, n := range names {
		colIdx[i] = t.Column(n)
	}

	for _, row := range order {
		record := make([]string, 0, len(header))
		if opts.IncludeIndex {
			if row < len(t.Index) {
				record = append(record, fmt.Sprintf("%d", t.Index[row]))
			} else {
				record = append(record, opts.NARep)
			}
		}
		for _, ci := range colIdx {
			if ci < 0 {
				record = append(record, opts.NARep)
				continue
			}
			record = append(record, t.At(row, ci).Render(opts.dateFormat(), opts.NARep))
		}
		w.Write(record)
	}

	w.Flush()
	return buf.Bytes()
}
