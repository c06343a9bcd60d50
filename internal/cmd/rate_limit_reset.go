package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/charybdis/charybdis/internal/core/store"
	"github.com/charybdis/charybdis/internal/output"
)

var (
	rateLimitResetAll      bool
	rateLimitResetEndpoint string
	rateLimitResetPrefix   string
	rateLimitResetIdle     time.Duration
	rateLimitResetYes      bool
	rateLimitResetDryRun   bool
)

type resetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored ledger rows",
	Long: `Deleting a ledger lets the next call to that host go out immediately.
Only reset a host no running client is using, or the spacing between them is lost.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		query := store.RateLimitQuery{
			All:      rateLimitResetAll,
			Endpoint: strings.TrimSpace(rateLimitResetEndpoint),
			Prefix:   strings.TrimSpace(rateLimitResetPrefix),
			IdleFor:  rateLimitResetIdle,
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && query.IdleFor == 0 && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, _, err := openConfiguredStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		result := resetResult{DryRun: rateLimitResetDryRun}
		if result.Matched, err = db.CountRateLimits(ctx, query); err != nil {
			return err
		}
		if !result.DryRun {
			if result.Deleted, err = db.ResetRateLimits(ctx, query); err != nil {
				return err
			}
		}

		sink, err := openOutput(cmd, format, "rate-limit.reset")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format != output.FormatTable {
			body, err := json.Marshal(result)
			if err != nil {
				return err
			}
			rendered, err := output.NewFormatter(format).FormatBody(body)
			if err != nil {
				return err
			}
			return writeRendered(sink, rendered)
		}

		if result.DryRun {
			_, err = fmt.Fprintf(sink.writer, "Would delete %d ledger row(s)\n", result.Matched)
			return err
		}
		_, err = fmt.Fprintf(sink.writer, "Deleted %d/%d ledger row(s)\n", result.Deleted, result.Matched)
		return err
	},
}

func init() {
	addOutputFlags(rateLimitResetCmd, output.FormatTable)
	flags := rateLimitResetCmd.Flags()
	flags.BoolVar(&rateLimitResetAll, "all", false, "Reset all hosts")
	flags.StringVar(&rateLimitResetEndpoint, "endpoint", "", "Reset a single host (exact match)")
	flags.StringVar(&rateLimitResetPrefix, "prefix", "", "Reset hosts with matching prefix")
	flags.DurationVar(&rateLimitResetIdle, "idle", 0, "Only reset ledgers with no call scheduled for this long")
	flags.BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	flags.BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
}
