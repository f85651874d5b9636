package main

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	tests := []struct {
		args []string
		use  string
	}{
		{args: []string{"upload"}, use: "upload <file> [key]"},
		{args: []string{"download"}, use: "download <key> [destination]"},
		{args: []string{"delete"}, use: "delete <key>..."},
		{args: []string{"head"}, use: "head <key>"},
		{args: []string{"list"}, use: "list [prefix]"},
		{args: []string{"ping"}, use: "ping"},
		{args: []string{"url", "resolve"}, use: "resolve <key>"},
		{args: []string{"url", "extract"}, use: "extract <url>"},
		{args: []string{"url", "enable-dev"}, use: "enable-dev [key]"},
		{args: []string{"url", "custom-status"}, use: "custom-status [domain]"},
		{args: []string{"dedup", "stats"}, use: "stats"},
		{args: []string{"dedup", "groups"}, use: "groups"},
		{args: []string{"dedup", "find"}, use: "find <file>"},
		{args: []string{"config", "show"}, use: "show"},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			cmd, _, err := rootCmd.Find(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.use, cmd.Use)
		})
	}
}

func TestGlobalFlagsBindConfig(t *testing.T) {
	for _, name := range []string{"config", "json", "no-progress", "bucket", "endpoint", "secret-id", "strategy", "metrics-listen"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestOutput(t *testing.T) {
	v := map[string]string{"key": "zotero-attachments/a.pdf"}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "zotero-attachments/a.pdf\n")
		return err
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, output(&buf, v, text))
		assert.Equal(t, "zotero-attachments/a.pdf\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		jsonOutput = true
		t.Cleanup(func() { jsonOutput = false })

		var buf bytes.Buffer
		require.NoError(t, output(&buf, v, text))
		assert.JSONEq(t, `{"key":"zotero-attachments/a.pdf"}`, buf.String())
	})
}

func TestProgressBarDisabled(t *testing.T) {
	noProgress = true
	t.Cleanup(func() { noProgress = false })

	update, finish := progressBar("uploading")
	assert.Nil(t, update)
	assert.NotPanics(t, finish)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
