package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charybdis/charybdis/internal/output"
)

// outputSink is where a command renders its result. path is "-" for stdout.
type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

// outputTarget is the parsed form of --out and --out-dir.
type outputTarget struct {
	file string
	dir  string
}

var extensions = map[output.Format]string{
	output.FormatJSON:     "json",
	output.FormatRaw:      "json",
	output.FormatYAML:     "yaml",
	output.FormatMarkdown: "md",
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// addOutputFlags registers the shared rendering flags.
func addOutputFlags(cmd *cobra.Command, defaultFormat output.Format) {
	cmd.Flags().StringP("output-format", "o", string(defaultFormat), "Output format: table|json|yaml|markdown|raw")
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("out-dir", "", "Write output to a directory")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

func readOutputTarget(cmd *cobra.Command) (outputTarget, error) {
	var target outputTarget
	file, err := cmd.Flags().GetString("out")
	if err != nil {
		return target, err
	}
	dir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return target, err
	}
	target.file = strings.TrimSpace(file)
	target.dir = strings.TrimSpace(dir)
	if target.file != "" && target.dir != "" {
		return outputTarget{}, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	return target, nil
}

// path resolves the destination file. name is the stem used with --out-dir.
func (t outputTarget) path(format output.Format, name string) string {
	if t.dir == "" {
		return t.file
	}
	ext, ok := extensions[format]
	if !ok {
		ext = "txt"
	}
	return filepath.Join(t.dir, safeFileStem(name)+"."+ext)
}

func safeFileStem(value string) string {
	stem := unsafeNameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	stem = strings.Trim(stem, "-.")
	if stem == "" {
		return "output"
	}
	return stem
}

// openOutput resolves --out/--out-dir into a sink, falling back to the
// command's stdout.
func openOutput(cmd *cobra.Command, format output.Format, name string) (*outputSink, error) {
	target, err := readOutputTarget(cmd)
	if err != nil {
		return nil, err
	}

	path := target.path(format, name)
	if path == "" || path == "-" {
		return &outputSink{writer: cmd.OutOrStdout(), close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: path}, nil
}

// writeRendered writes rendered followed by a newline unless it is empty.
func writeRendered(sink *outputSink, rendered string) error {
	if strings.TrimSpace(rendered) == "" {
		return nil
	}
	_, err := fmt.Fprintln(sink.writer, rendered)
	return err
}
