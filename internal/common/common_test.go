package common

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"applysharp/internal/errors"
	"applysharp/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name             string
		format           string
		supportedFormats []string
		expectedError    string
	}{
		{name: "valid json", format: "json", supportedFormats: []string{"json", "text", "markdown"}},
		{name: "valid markdown", format: "markdown", supportedFormats: []string{"json", "text", "markdown"}},
		{
			name:             "invalid format",
			format:           "xml",
			supportedFormats: []string{"json", "text", "markdown"},
			expectedError:    "unsupported output format 'xml'. Supported formats: [json text markdown]",
		},
		{
			name:             "empty format",
			format:           "",
			supportedFormats: []string{"json"},
			expectedError:    "unsupported output format ''. Supported formats: [json]",
		},
		{name: "no restrictions", format: "xml", supportedFormats: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supportedFormats)
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestReadAnswers(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
		return path
	}

	fp := NewFileProcessor(nil)

	t.Run("yaml", func(t *testing.T) {
		answers, err := fp.ReadAnswers(write("answers.yaml", "g-1a2b3c4d: \"  Two years of Kubernetes  \"\nc-99887766: I was promoted\n"))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"g-1a2b3c4d": "Two years of Kubernetes",
			"c-99887766": "I was promoted",
		}, answers)
	})

	t.Run("json", func(t *testing.T) {
		answers, err := fp.ReadAnswers(write("answers.json", `{"g-1a2b3c4d": "yes"}`))
		require.NoError(t, err)
		assert.Equal(t, "yes", answers["g-1a2b3c4d"])
	})

	t.Run("empty path", func(t *testing.T) {
		answers, err := fp.ReadAnswers("")
		require.NoError(t, err)
		assert.Empty(t, answers)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := fp.ReadAnswers(filepath.Join(dir, "nope.yaml"))
		assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := fp.ReadAnswers(write("list.yaml", "- one\n- two\n"))
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
	})
}

func TestRunCommand(t *testing.T) {
	resp := types.AnalyzeResponse{SessionID: "abc", GapsFound: []string{"Terraform"}}

	t.Run("writes formatted output", func(t *testing.T) {
		var out bytes.Buffer
		var logged bool
		err := RunCommand(context.Background(), &out, nil, CommandConfig{OutputFormat: "text"},
			func(ctx context.Context) (string, error) { return "input", nil },
			func(ctx context.Context, in string) (types.AnalyzeResponse, error) { return resp, nil },
			func(in string, cfg CommandConfig) { logged = true })
		require.NoError(t, err)
		assert.True(t, logged)
		assert.Contains(t, out.String(), "Terraform")
	})

	t.Run("writes to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "out.json")
		err := RunCommand(context.Background(), &bytes.Buffer{}, nil, CommandConfig{OutputFile: path, OutputFormat: "json"},
			func(ctx context.Context) (int, error) { return 1, nil },
			func(ctx context.Context, in int) (types.AnalyzeResponse, error) { return resp, nil },
			nil)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"session_id": "abc"`)
	})

	t.Run("build failure stops before operation", func(t *testing.T) {
		called := false
		err := RunCommand(context.Background(), &bytes.Buffer{}, nil, CommandConfig{OutputFormat: "json"},
			func(ctx context.Context) (int, error) { return 0, fmt.Errorf("no cv") },
			func(ctx context.Context, in int) (int, error) { called = true; return in, nil },
			nil)
		assert.EqualError(t, err, "no cv")
		assert.False(t, called)
	})

	t.Run("output path is a directory", func(t *testing.T) {
		err := RunCommand(context.Background(), &bytes.Buffer{}, nil, CommandConfig{OutputFile: t.TempDir(), OutputFormat: "json"},
			func(ctx context.Context) (int, error) { return 0, nil },
			func(ctx context.Context, in int) (int, error) { return in, nil },
			nil)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
	})
}
