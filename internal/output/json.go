package output

import (
	"bytes"
	"encoding/json"

	"github.com/charybdis/charybdis/internal/core"
)

// JSONFormatter renders results as JSON. Without Indent the upstream body is
// passed through untouched.
type JSONFormatter struct {
	Indent bool
}

// FormatBody renders a raw response body.
func (f *JSONFormatter) FormatBody(body json.RawMessage) (string, error) {
	if !f.Indent {
		return string(bytes.TrimSpace(body)), nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatResults renders batch results as a JSON array.
func (f *JSONFormatter) FormatResults(results []*core.CallResult) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(results, "", "  ")
	} else {
		data, err = json.Marshal(results)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
