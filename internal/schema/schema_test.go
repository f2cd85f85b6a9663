package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3ingest/pkg/contracts/domain"
)

const sampleDoc = `{
	"version": 1,
	"columns": [
		{"name": "ticker", "type": "string", "nullable": false},
		{"name": "date", "type": "date", "nullable": false},
		{"name": "open", "type": "float", "nullable": true},
		{"name": "volume", "type": "int", "nullable": true},
		{"name": "fetched_at", "type": "datetime", "nullable": false}
	]
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	require.Len(t, s.Fields, 5)

	assert.Equal(t, []string{"ticker", "date", "open", "volume", "fetched_at"}, s.Names())

	open, ok := s.Field("open")
	require.True(t, ok)
	assert.Equal(t, domain.FieldFloat, open.Kind)
	assert.True(t, open.Nullable)

	ticker, ok := s.Field("ticker")
	require.True(t, ok)
	assert.False(t, ticker.Nullable)

	_, ok = s.Field("nope")
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "invalid json",
			doc:     `{"columns": [`,
			wantErr: "failed to parse",
		},
		{
			name:    "no columns",
			doc:     `{"columns": []}`,
			wantErr: "defines no columns",
		},
		{
			name:    "missing name",
			doc:     `{"columns": [{"name": "", "type": "string"}]}`,
			wantErr: "no name",
		},
		{
			name:    "duplicate column",
			doc:     `{"columns": [{"name": "open", "type": "float"}, {"name": "open", "type": "float"}]}`,
			wantErr: "twice",
		},
		{
			name:    "unknown type",
			doc:     `{"columns": [{"name": "open", "type": "decimal"}]}`,
			wantErr: `unknown type in canonical schema: "decimal"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Fields, 5)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadDefaultEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alt.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	t.Setenv(EnvSchemaPath, path)
	s, err := LoadDefault()
	require.NoError(t, err)
	assert.Len(t, s.Fields, 5)
}

func TestShippedSchemaDocument(t *testing.T) {
	// The document in docs/ is the one production loads; keep it parseable
	// and carrying the full canonical column set.
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "schema.json"))
	require.NoError(t, err)

	s, err := Parse(data)
	require.NoError(t, err)

	for _, name := range []string{"ticker", "date", "open", "high", "low", "close", "volume", "source", "fetched_at", "raw_checksum"} {
		_, ok := s.Field(name)
		assert.True(t, ok, "schema document must define %q", name)
	}
}
