package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/core/store"
	"github.com/charybdis/charybdis/internal/observability"
	"github.com/charybdis/charybdis/internal/output"
)

var callCacheTTL time.Duration

var callCmd = &cobra.Command{
	Use:   "call <method> [args...]",
	Short: "Call an API method",
	Long: `Call any API method by name. Positional arguments are appended to the
signed URL in order, after the session id and timestamp.

Examples:
  charybdis call getgods 1
  charybdis call getplayer "some player" -o json
  charybdis call getitems 1 --cache-ttl 1h`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
	addOutputFlags(callCmd, output.FormatTable)
	callCmd.Flags().DurationVar(&callCacheTTL, "cache-ttl", 0, "reuse a stored response younger than this (0 disables the cache)")
}

func runCall(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close() // nolint:errcheck // best-effort cleanup

	method, methodArgs := args[0], args[1:]
	body, err := callCached(ctx, client, method, methodArgs)
	if err != nil {
		return err
	}

	rendered, err := output.NewFormatter(format).FormatBody(body)
	if err != nil {
		return err
	}

	sink, err := openOutput(cmd, format, method)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	return writeRendered(sink, rendered)
}

// callCached serves method from the response cache when --cache-ttl is set
// and a fresh entry exists, and stores new responses otherwise.
func callCached(ctx context.Context, client *apiClient, method string, args []string) (json.RawMessage, error) {
	if callCacheTTL <= 0 || client.store == nil {
		return client.CallMethod(ctx, method, args...)
	}

	key := store.ResponseCacheKey(client.BaseURL(), method, args)
	cached, err := client.store.GetCachedResponse(ctx, key)
	if err != nil && observability.CLILogger != nil {
		observability.CLILogger.Warn("Response cache lookup failed", zap.Error(err))
	}
	if cached != nil && time.Since(cached.FetchedAt) < callCacheTTL {
		if observability.CLILogger != nil {
			observability.CLILogger.Debug("Serving cached response",
				zap.String("method", method),
				zap.Time("fetched_at", cached.FetchedAt))
		}
		return cached.Body, nil
	}

	body, err := client.CallMethod(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if err := client.store.SetCachedResponse(ctx, key, method, body, callCacheTTL); err != nil && observability.CLILogger != nil {
		observability.CLILogger.Warn("Failed to cache response", zap.Error(err))
	}
	return body, nil
}
