package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/charybdis/charybdis/internal/core"
	"github.com/charybdis/charybdis/internal/core/engine"
	"github.com/charybdis/charybdis/internal/core/hirez"
	"github.com/charybdis/charybdis/internal/observability"
	"github.com/charybdis/charybdis/internal/output"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run many API calls from a file",
	Long: `Read calls from a file and run them on the asynchronous worker pool.
All calls share one session and the rate limit ledger.

YAML and JSON files hold a list under "calls":

  calls:
    - id: gods
      method: getgods
      args: ["1"]
    - method: getplayer
      args: ["some player"]

Any other file (or "-" for stdin) is read one call per line as
"method arg1 arg2"; blank lines and lines starting with # are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addOutputFlags(batchCmd, output.FormatTable)
	batchCmd.Flags().Int("concurrency", 0, "Concurrent calls (default api.workers)")
	batchCmd.Flags().Bool("fail-fast", false, "Stop at the first failed call")
}

// asyncCaller routes orchestrated calls through the client's worker pool.
type asyncCaller struct {
	client *hirez.Client
}

func (a asyncCaller) CallMethod(ctx context.Context, method string, args ...string) (json.RawMessage, error) {
	return a.client.Go(ctx, method, args...).Await(ctx)
}

func runBatch(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	failFast, err := cmd.Flags().GetBool("fail-fast")
	if err != nil {
		return err
	}

	requests, err := readBatchFile(args[0])
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return errors.New("no calls found in batch file")
	}

	ctx := commandContext(cmd)
	startedAt := time.Now()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.API.Workers = concurrency
	}

	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close() // nolint:errcheck // best-effort cleanup

	if err := client.Start(); err != nil {
		return err
	}

	orchestrator := &engine.Orchestrator{
		Caller:      asyncCaller{client: client.Client},
		Concurrency: cfg.API.Workers,
		FailFast:    failFast,
	}
	results, runErr := orchestrator.Run(ctx, requests)
	if results == nil {
		return runErr
	}

	rendered, err := output.NewFormatter(format).FormatResults(results)
	if err != nil {
		return err
	}
	sink, err := openOutput(cmd, format, "batch."+strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])))
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()
	if err := writeRendered(sink, rendered); err != nil {
		return err
	}

	logThroughput(len(results), startedAt)
	return runErr
}

func logThroughput(calls int, startedAt time.Time) {
	if observability.CLILogger == nil || calls == 0 {
		return
	}
	elapsed := time.Since(startedAt)
	rate := float64(calls) / elapsed.Seconds()
	observability.CLILogger.Debug("Batch complete",
		zap.Int("calls", calls),
		zap.Duration("elapsed", elapsed),
		zap.Float64("calls_per_second", rate))
}

func readBatchFile(path string) ([]core.CallRequest, error) {
	var reader io.Reader
	if strings.TrimSpace(path) == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close() // nolint:errcheck // best-effort cleanup on read-only file
		reader = file
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return parseCallFile(reader)
	default:
		return parseCallLines(reader)
	}
}

// parseCallFile decodes a YAML or JSON call file.
func parseCallFile(r io.Reader) ([]core.CallRequest, error) {
	var file core.CallFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	for i, call := range file.Calls {
		if strings.TrimSpace(call.Method) == "" {
			return nil, fmt.Errorf("call %d: method is required", i+1)
		}
	}
	return file.Calls, nil
}

// parseCallLines reads one whitespace separated call per line. Arguments
// containing spaces can be quoted.
func parseCallLines(r io.Reader) ([]core.CallRequest, error) {
	var requests []core.CallRequest
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		fields, err := splitFields(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		requests = append(requests, core.CallRequest{
			ID:     fmt.Sprintf("line-%d", line),
			Method: fields[0],
			Args:   fields[1:],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

func splitFields(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		quote   rune
		inField bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inField {
		fields = append(fields, current.String())
	}
	return fields, nil
}
