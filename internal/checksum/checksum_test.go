package checksum

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3ingest/pkg/contracts/domain"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestSHA256Bytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "empty input",
			data: nil,
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "known vector",
			data: []byte("abc"),
			want: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SHA256Bytes(tt.data))
		})
	}
}

func TestSHA256File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.csv")

	// Larger than one read chunk so the streaming path is exercised.
	data := []byte(strings.Repeat("a,b,c\n1,2,3\n", 4096))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := SHA256File(path)
	require.NoError(t, err)
	assert.Equal(t, SHA256Bytes(data), got)
	assert.Regexp(t, hexPattern, got)
}

func TestSHA256FileMissing(t *testing.T) {
	_, err := SHA256File(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func samplePayload() *domain.RawPayload {
	return &domain.RawPayload{
		Columns: []string{"Open", "High", "Low", "Close", "Volume"},
		Index: []time.Time{
			time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		Rows: [][]string{
			{"101", "106", "100", "105", "2000000"},
			{"100", "105", "99", "104", "1000000"},
		},
	}
}

func TestSerializeRawDeterministic(t *testing.T) {
	p := samplePayload()

	first := SerializeRaw(p, Options{IncludeIndex: true})
	second := SerializeRaw(p, Options{IncludeIndex: true})
	assert.Equal(t, first, second, "repeated serialization must be byte-identical")
	assert.Equal(t, SHA256Bytes(first), SHA256Bytes(second))
}

func TestSerializeRawSortsColumnsAndRows(t *testing.T) {
	p := samplePayload()
	out := string(SerializeRaw(p, Options{IncludeIndex: true}))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,Close,High,Low,Open,Volume", lines[0])
	// Rows come back sorted by index date, not input order.
	assert.True(t, strings.HasPrefix(lines[1], "2024-03-01T00:00:00"))
	assert.True(t, strings.HasPrefix(lines[2], "2024-03-02T00:00:00"))
}

func TestSerializeRawColumnOrderOverride(t *testing.T) {
	p := samplePayload()
	out := string(SerializeRaw(p, Options{ColumnOrder: []string{"Open", "Close"}}))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "Open,Close", lines[0])
	assert.Equal(t, "100,104", lines[1])
}

func TestSerializeRawNARep(t *testing.T) {
	p := &domain.RawPayload{
		Columns: []string{"Open"},
		Index:   []time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		Rows:    [][]string{{""}},
	}
	out := string(SerializeRaw(p, Options{NARep: "NA"}))
	assert.Contains(t, out, "NA")
}

func TestSerializeTableDeterministic(t *testing.T) {
	table := &domain.Table{
		Fields: []domain.Field{
			{Name: "ticker", Kind: domain.FieldString},
			{Name: "close", Kind: domain.FieldFloat, Nullable: true},
			{Name: "volume", Kind: domain.FieldInt, Nullable: true},
		},
		Index: []int{1, 0},
		Rows: [][]domain.Value{
			{domain.String("PETR4.SA"), domain.Float(104.5), domain.Int(1000000)},
			{domain.String("PETR4.SA"), domain.Float(103.25), domain.Null()},
		},
	}

	first := SerializeTable(table, Options{IncludeIndex: true, NARep: "NA"})
	second := SerializeTable(table, Options{IncludeIndex: true, NARep: "NA"})
	assert.Equal(t, first, second)

	lines := strings.Split(strings.TrimSpace(string(first)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,close,ticker,volume", lines[0])
	// Rows sorted by ordinal: row with Index 0 first.
	assert.Equal(t, "0,103.25,PETR4.SA,NA", lines[1])
	assert.Equal(t, "1,104.5,PETR4.SA,1000000", lines[2])
}
