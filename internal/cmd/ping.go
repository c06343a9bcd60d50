package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pingAsync bool

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the API is reachable",
	Long:  "Call the unsigned ping method. No session is created and no rate limit slot is used.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.API.PersistSessions = false
		cfg.API.PersistRateLimit = false

		client, err := newAPIClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close() // nolint:errcheck // best-effort cleanup

		var text string
		if pingAsync {
			if err := client.Start(); err != nil {
				return err
			}
			call := client.PingAsync(ctx)
			if _, err := call.Await(ctx); err != nil {
				return err
			}
			text = call.Text()
		} else {
			text, err = client.Ping(ctx)
			if err != nil {
				return err
			}
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().BoolVar(&pingAsync, "async", false, "run the ping on the asynchronous worker pool")
}
