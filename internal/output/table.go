package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/charybdis/charybdis/internal/core"
)

// maxCellWidth bounds how much of a nested value a table cell shows.
const maxCellWidth = 60

// TableFormatter renders results as an ASCII table, or as a Markdown table
// when Markdown is set.
type TableFormatter struct {
	Markdown bool
}

// FormatBody renders a raw response body. Arrays of objects become one row
// per element, a single object becomes a field/value listing and scalars
// print as-is.
func (f *TableFormatter) FormatBody(body json.RawMessage) (string, error) {
	value, err := decodeBody(body)
	if err != nil {
		return "", err
	}

	switch v := value.(type) {
	case nil:
		return "", nil
	case []any:
		if len(v) == 0 {
			return "(no results)", nil
		}
		if rows, ok := objectRows(v); ok {
			return f.render(objectTable(rows)), nil
		}
		t := f.newWriter()
		t.AppendHeader(table.Row{"#", "Value"})
		for i, item := range v {
			t.AppendRow(table.Row{i, cell(item)})
		}
		return f.render(t), nil
	case map[string]any:
		t := f.newWriter()
		t.AppendHeader(table.Row{"Field", "Value"})
		for _, key := range sortedKeys(v) {
			t.AppendRow(table.Row{key, cell(v[key])})
		}
		return f.render(t), nil
	default:
		return cell(v), nil
	}
}

// FormatResults renders one row per batch call.
func (f *TableFormatter) FormatResults(results []*core.CallResult) (string, error) {
	t := f.newWriter()
	t.AppendHeader(table.Row{"ID", "Method", "Args", "Status", "Latency", "Result"})

	failed := 0
	for i, r := range results {
		if r == nil {
			continue
		}
		id := r.Request.ID
		if id == "" {
			id = fmt.Sprintf("%d", i+1)
		}
		status := "ok"
		summary := summarize(r.Body)
		if !r.OK() {
			status = "error"
			summary = r.Error
			failed++
		}
		latency := ""
		if !r.ResolvedAt.IsZero() && !r.RequestedAt.IsZero() {
			latency = r.ResolvedAt.Sub(r.RequestedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			id,
			r.Request.Method,
			strings.Join(r.Request.Args, ", "),
			status,
			latency,
			truncate(summary),
		})
	}

	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d/%d ok", len(results)-failed, len(results)), "", ""})
	return f.render(t), nil
}

func (f *TableFormatter) newWriter() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) render(t table.Writer) string {
	if f.Markdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}

func objectRows(items []any) ([]map[string]any, bool) {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		rows = append(rows, row)
	}
	return rows, true
}

func objectTable(rows []map[string]any) table.Writer {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	columns = orderColumns(columns)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)

	for _, row := range rows {
		values := make(table.Row, len(columns))
		for i, column := range columns {
			values[i] = cell(row[column])
		}
		t.AppendRow(values)
	}
	return t
}

// orderColumns sorts columns alphabetically but moves ret_msg last, where the
// API reports per-row errors.
func orderColumns(columns []string) []string {
	sort.Strings(columns)
	out := make([]string, 0, len(columns))
	hasRetMsg := false
	for _, column := range columns {
		if column == "ret_msg" {
			hasRetMsg = true
			continue
		}
		out = append(out, column)
	}
	if hasRetMsg {
		out = append(out, "ret_msg")
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool, int64, float64:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return truncate(string(data))
	}
}

func summarize(body json.RawMessage) string {
	value, err := decodeBody(body)
	if err != nil {
		return "invalid JSON"
	}
	switch v := value.(type) {
	case []any:
		if len(v) == 1 {
			return "1 item"
		}
		return fmt.Sprintf("%d items", len(v))
	case map[string]any:
		return fmt.Sprintf("object (%d fields)", len(v))
	default:
		return cell(v)
	}
}

func truncate(value string) string {
	runes := []rune(value)
	if len(runes) <= maxCellWidth {
		return value
	}
	return string(runes[:maxCellWidth-3]) + "..."
}
