package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    func(c *Config)
		wantErr string
	}{
		{
			name:  "empty file keeps defaults",
			input: "",
			want:  func(c *Config) {},
		},
		{
			name:  "backend only",
			input: `backend = "llvm-ir"`,
			want:  func(c *Config) { c.Backend = "llvm-ir" },
		},
		{
			name: "optimizer table",
			input: `
[optimizer]
enabled = false
max_iterations = 3
inline = true
`,
			want: func(c *Config) {
				c.Optimizer = Optimizer{Enabled: false, MaxIterations: 3, Inline: true}
			},
		},
		{
			name: "emit table",
			input: `
[emit]
indent = "\t"
debug = true
`,
			want: func(c *Config) { c.Emit = Emit{Indent: "\t", Debug: true} },
		},
		{
			name:    "malformed",
			input:   `backend = `,
			wantErr: "failed to parse config",
		},
		{
			name:    "empty backend",
			input:   `backend = ""`,
			wantErr: "backend must not be empty",
		},
		{
			name: "zero iterations",
			input: `
[optimizer]
max_iterations = 0
`,
			wantErr: "max_iterations must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := Decode([]byte(tt.input), cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			want := Default()
			tt.want(want)
			assert.Equal(t, want, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("backend = \"go-ir\"\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "go-ir", cfg.Backend)
	assert.True(t, cfg.Optimizer.Enabled)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Optimizer.Inline = true

	data, err := cfg.Encode()
	require.NoError(t, err)

	got := &Config{}
	require.NoError(t, Decode(data, got))
	assert.Equal(t, cfg, got)
}
