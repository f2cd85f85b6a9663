package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRelPath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "plain file", path: "cotacoes.xlsx"},
		{name: "nested file", path: filepath.Join("2024", "march", "cotacoes.xlsx")},
		{name: "empty", path: "", wantErr: "empty path"},
		{name: "whitespace only", path: "   ", wantErr: "empty path"},
		{name: "parent traversal", path: "../secrets.xlsx", wantErr: "traversal pattern"},
		{name: "deep traversal", path: "a/../../b", wantErr: "traversal pattern"},
		{name: "windows traversal", path: "..\\secrets.xlsx", wantErr: "traversal pattern"},
		{name: "url encoded traversal", path: "..%2fsecrets.xlsx", wantErr: "traversal pattern"},
		{name: "double encoded traversal", path: "%2e%2e%2fsecrets.xlsx", wantErr: "traversal pattern"},
		{name: "uppercase encoded traversal", path: "..%2Fsecrets.xlsx", wantErr: "traversal pattern"},
		{name: "absolute path", path: "/etc/passwd", wantErr: "not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeRelPath(base, tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
			assert.Equal(t, filepath.Join(base, tt.path), got)
		})
	}
}

func TestValidateTicker(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain b3 symbol", in: "PETR4", want: "PETR4"},
		{name: "with exchange suffix", in: "PETR4.SA", want: "PETR4.SA"},
		{name: "lowercase upcased", in: "vale3.sa", want: "VALE3.SA"},
		{name: "surrounding spaces", in: " ITUB4 ", want: "ITUB4"},
		{name: "empty", in: "", wantErr: true},
		{name: "too short", in: "A", wantErr: true},
		{name: "path injection", in: "../PETR4", wantErr: true},
		{name: "shell metacharacters", in: "PETR4;rm", wantErr: true},
		{name: "too long", in: "ABCDEFGHIJKLMNOP", wantErr: true},
		{name: "bad suffix", in: "PETR4.TOOLONG", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTicker(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
