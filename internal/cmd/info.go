package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/charybdis/charybdis/internal/output"
)

// typedCommand builds a command around one of the client's typed helpers.
// The result is re-encoded as JSON so every output format renders it the
// same way as a raw call.
func typedCommand(use, short string, fetch func(ctx context.Context, client *apiClient) (any, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			value, err := fetch(ctx, client)
			if err != nil {
				return err
			}
			body, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", use, err)
			}

			rendered, err := output.NewFormatter(format).FormatBody(body)
			if err != nil {
				return err
			}
			sink, err := openOutput(cmd, format, use)
			if err != nil {
				return err
			}
			defer func() { _ = sink.close() }()
			return writeRendered(sink, rendered)
		},
	}
	addOutputFlags(cmd, output.FormatTable)
	return cmd
}

func init() {
	rootCmd.AddCommand(typedCommand("status", "Show game server status", func(ctx context.Context, client *apiClient) (any, error) {
		return client.ServerStatus(ctx)
	}))
	rootCmd.AddCommand(typedCommand("usage", "Show API usage against the daily limits", func(ctx context.Context, client *apiClient) (any, error) {
		return client.DataUsed(ctx)
	}))
	rootCmd.AddCommand(typedCommand("patch", "Show the current game patch version", func(ctx context.Context, client *apiClient) (any, error) {
		return client.PatchInfo(ctx)
	}))
	rootCmd.AddCommand(typedCommand("test-session", "Check that the cached session is still valid", func(ctx context.Context, client *apiClient) (any, error) {
		return client.TestSession(ctx)
	}))
}
