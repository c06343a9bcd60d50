package output

import (
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charybdis/charybdis/internal/core"
)

// YAMLFormatter renders results as YAML documents.
type YAMLFormatter struct{}

// yamlResult mirrors core.CallResult with the body decoded so it renders as
// nested YAML instead of a byte string.
type yamlResult struct {
	ID          string    `yaml:"id,omitempty"`
	Method      string    `yaml:"method"`
	Args        []string  `yaml:"args,omitempty"`
	Body        any       `yaml:"body,omitempty"`
	Error       string    `yaml:"error,omitempty"`
	RequestedAt time.Time `yaml:"requested_at"`
	ResolvedAt  time.Time `yaml:"resolved_at"`
}

// FormatBody renders a raw response body.
func (f *YAMLFormatter) FormatBody(body json.RawMessage) (string, error) {
	value, err := decodeBody(body)
	if err != nil {
		return "", err
	}
	return marshalYAML(value)
}

// FormatResults renders batch results as a YAML sequence.
func (f *YAMLFormatter) FormatResults(results []*core.CallResult) (string, error) {
	docs := make([]yamlResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		body, err := decodeBody(r.Body)
		if err != nil {
			return "", err
		}
		docs = append(docs, yamlResult{
			ID:          r.Request.ID,
			Method:      r.Request.Method,
			Args:        r.Request.Args,
			Body:        body,
			Error:       r.Error,
			RequestedAt: r.RequestedAt,
			ResolvedAt:  r.ResolvedAt,
		})
	}
	return marshalYAML(docs)
}

func marshalYAML(value any) (string, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
