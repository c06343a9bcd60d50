package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/charybdis/charybdis/internal/core"
)

const godsBody = `[
  {"Name":"Zeus","id":1920,"Pantheon":"Greek","ret_msg":null},
  {"Name":"Ymir","id":1670,"Pantheon":"Norse","Roles":["Guardian"],"ret_msg":null}
]`

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestTableFormatterArrayOfObjects(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).FormatBody(json.RawMessage(godsBody))
	require.NoError(t, err)
	require.Contains(t, rendered, "Zeus")
	require.Contains(t, rendered, "Ymir")
	require.Contains(t, rendered, "1920")
	require.Contains(t, rendered, `["Guardian"]`)

	upper := strings.ToUpper(rendered)
	require.Less(t, strings.Index(upper, "PANTHEON"), strings.Index(upper, "RET_MSG"))
}

func TestTableFormatterObjectAndScalar(t *testing.T) {
	formatter := NewFormatter(FormatTable)

	rendered, err := formatter.FormatBody(json.RawMessage(`{"Name":"Zeus","Level":30}`))
	require.NoError(t, err)
	require.Contains(t, rendered, "Level")
	require.Contains(t, rendered, "30")

	rendered, err = formatter.FormatBody(json.RawMessage(`"This was a successful test"`))
	require.NoError(t, err)
	require.Equal(t, "This was a successful test", rendered)

	rendered, err = formatter.FormatBody(json.RawMessage(`[]`))
	require.NoError(t, err)
	require.Equal(t, "(no results)", rendered)

	_, err = formatter.FormatBody(json.RawMessage(`{oops`))
	require.Error(t, err)
}

func TestMarkdownFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).FormatBody(json.RawMessage(godsBody))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "|"))
	require.Contains(t, rendered, "| Zeus")
}

func TestJSONFormatterBody(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).FormatBody(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, "{\n  \"a\": 1\n}", rendered)

	rendered, err = NewFormatter(FormatRaw).FormatBody(json.RawMessage(" {\"a\":1}\n"))
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, rendered)
}

func TestYAMLFormatterKeepsLargeIntegers(t *testing.T) {
	rendered, err := NewFormatter(FormatYAML).FormatBody(json.RawMessage(`[{"Match":1234567890123,"Win":true}]`))
	require.NoError(t, err)
	require.Contains(t, rendered, "Match: 1234567890123")

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &decoded))
	require.Equal(t, true, decoded[0]["Win"])
}

func testResults() []*core.CallResult {
	start := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return []*core.CallResult{
		{
			Request:     core.CallRequest{ID: "gods", Method: "getgods", Args: []string{"1"}},
			Body:        json.RawMessage(godsBody),
			RequestedAt: start,
			ResolvedAt:  start.Add(120 * time.Millisecond),
		},
		{
			Request:     core.CallRequest{Method: "getplayer", Args: []string{"nobody"}},
			Error:       "hirez: getplayer returned 404 Not Found",
			RequestedAt: start,
			ResolvedAt:  start.Add(80 * time.Millisecond),
		},
	}
}

func TestFormatResults(t *testing.T) {
	results := testResults()

	tableRendered, err := NewFormatter(FormatTable).FormatResults(results)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "getgods")
	require.Contains(t, tableRendered, "2 items")
	require.Contains(t, tableRendered, "404 Not Found")
	require.Contains(t, tableRendered, "1/2 ok")
	require.Contains(t, tableRendered, "120ms")

	jsonRendered, err := NewFormatter(FormatJSON).FormatResults(results)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(jsonRendered), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "gods", decoded[0]["request"].(map[string]any)["id"])
	require.Len(t, decoded[0]["body"], 2)
	require.NotContains(t, decoded[1], "body")

	yamlRendered, err := NewFormatter(FormatYAML).FormatResults(results)
	require.NoError(t, err)
	require.Contains(t, yamlRendered, "method: getgods")
	require.Contains(t, yamlRendered, "Name: Zeus")
	require.Contains(t, yamlRendered, "getplayer returned 404 Not Found")
}
