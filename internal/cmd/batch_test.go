package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charybdis/charybdis/internal/core"
	"github.com/charybdis/charybdis/internal/core/engine"
	"github.com/charybdis/charybdis/internal/core/hirez"
)

func TestParseCallLines(t *testing.T) {
	input := `
# gods first
getgods 1
getplayer "some player"

getgodranks 'quoted name' 7
`
	requests, err := parseCallLines(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, requests, 3)

	require.Equal(t, core.CallRequest{ID: "line-3", Method: "getgods", Args: []string{"1"}}, requests[0])
	require.Equal(t, []string{"some player"}, requests[1].Args)
	require.Equal(t, "getgodranks", requests[2].Method)
	require.Equal(t, []string{"quoted name", "7"}, requests[2].Args)

	_, err = parseCallLines(strings.NewReader(`getplayer "open`))
	require.Error(t, err)
}

func TestParseCallFile(t *testing.T) {
	yamlInput := `
calls:
  - id: gods
    method: getgods
    args: ["1"]
  - method: getdataused
`
	requests, err := parseCallFile(strings.NewReader(yamlInput))
	require.NoError(t, err)
	require.Len(t, requests, 2)
	require.Equal(t, "gods", requests[0].ID)
	require.Equal(t, []string{"1"}, requests[0].Args)
	require.Empty(t, requests[1].Args)

	jsonInput := `{"calls":[{"method":"getitems","args":["1"]}]}`
	requests, err = parseCallFile(strings.NewReader(jsonInput))
	require.NoError(t, err)
	require.Equal(t, "getitems", requests[0].Method)

	_, err = parseCallFile(strings.NewReader("calls:\n  - args: [\"1\"]\n"))
	require.Error(t, err)

	requests, err = parseCallFile(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, requests)
}

func TestReadBatchFileByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "calls.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("calls:\n  - method: getgods\n"), 0o600))
	textPath := filepath.Join(dir, "calls.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("getgods 1\ngetitems 1\n"), 0o600))

	requests, err := readBatchFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, requests, 1)

	requests, err = readBatchFile(textPath)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	_, err = readBatchFile(filepath.Join(dir, "missing.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestAsyncCallerSharesOneSession(t *testing.T) {
	var sessions, calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/createsessionjson/") {
			sessions.Add(1)
			_, _ = w.Write([]byte(`{"ret_msg":"Approved","session_id":"ABC123","timestamp":"1/1/2026 12:00:00 AM"}`))
			return
		}
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"ret_msg":null}]`))
	}))
	t.Cleanup(upstream.Close)

	client, err := hirez.New(hirez.Options{
		DevID:   "1004",
		AuthKey: "secret",
		BaseURL: upstream.URL,
		Workers: 3,
	})
	require.NoError(t, err)
	require.NoError(t, client.Start())
	t.Cleanup(func() { _ = client.Close() })

	orchestrator := &engine.Orchestrator{Caller: asyncCaller{client: client}, Concurrency: 3}
	requests := []core.CallRequest{
		{Method: "getgods", Args: []string{"1"}},
		{Method: "getitems", Args: []string{"1"}},
		{Method: "getdataused"},
		{Method: "gethirezserverstatus"},
	}

	results, err := orchestrator.Run(context.Background(), requests)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, result := range results {
		require.True(t, result.OK(), result.Error)
		var body []map[string]any
		require.NoError(t, json.Unmarshal(result.Body, &body))
	}
	require.Equal(t, int32(1), sessions.Load())
	require.Equal(t, int32(4), calls.Load())
}
