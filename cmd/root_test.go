package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const movementsPage = `<div class="view-vessel-movement"><div class="view-content"><table>
<thead><tr><th>Date &amp; Time</th><th>Vessel</th></tr></thead>
<tbody><tr><td>Mon 15 Jan09:30</td><td>Ocean Star</td></tr></tbody>
</table></div></div>`

func writeConfig(t *testing.T, url, dir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("source:\n  url: %s\noutput:\n  dir: %s\nlogging:\n  level: error\n", url, dir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func executeRoot(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func TestRootScrapesIntoOutputDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, movementsPage)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, executeRoot(t, "--config", writeConfig(t, srv.URL, dir)))

	matches, err := filepath.Glob(filepath.Join(dir, "*", "*", "*", "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Vessel":"Ocean Star"`)
}

func TestRootReportsScrapeFailureOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := executeRoot(t, "--config", writeConfig(t, srv.URL, filepath.Join(t.TempDir(), "data")))
	require.Error(t, err)
	var reported reportedError
	assert.True(t, errors.As(err, &reported))
}

func TestRootConfigErrorIsNotReported(t *testing.T) {
	err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	var reported reportedError
	assert.False(t, errors.As(err, &reported))
}

func TestRootRejectsArguments(t *testing.T) {
	assert.Error(t, executeRoot(t, "extra"))
}
