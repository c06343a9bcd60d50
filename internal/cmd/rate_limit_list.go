package cmd

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/charybdis/charybdis/internal/core/store"
	"github.com/charybdis/charybdis/internal/output"
)

var (
	rateLimitListPrefix string
	rateLimitListIdle   time.Duration
)

// ledgerRow is the rendered form of one ledger.
type ledgerRow struct {
	Endpoint      string `json:"endpoint"`
	LastScheduled string `json:"last_scheduled"`
	NextSlot      string `json:"next_slot"`
	Delay         string `json:"delay"`
	Ahead         string `json:"ahead"`
	UpdatedAt     string `json:"updated_at"`
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored ledger rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		db, _, err := openConfiguredStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.RateLimitQuery{
			Prefix:  strings.TrimSpace(rateLimitListPrefix),
			IdleFor: rateLimitListIdle,
		}
		query.All = query.Prefix == "" && query.IdleFor == 0

		entries, err := db.ListRateLimits(ctx, query)
		if err != nil {
			return err
		}

		body, err := json.Marshal(ledgerRows(entries, time.Now()))
		if err != nil {
			return err
		}
		rendered, err := output.NewFormatter(format).FormatBody(body)
		if err != nil {
			return err
		}

		sink, err := openOutput(cmd, format, "rate-limit.list")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()
		return writeRendered(sink, rendered)
	},
}

func ledgerRows(entries []store.RateLimitEntry, now time.Time) []ledgerRow {
	rows := make([]ledgerRow, 0, len(entries))
	for _, entry := range entries {
		ahead := "-"
		if wait := entry.Ahead(now); wait > 0 {
			ahead = wait.Round(time.Millisecond).String()
		}
		rows = append(rows, ledgerRow{
			Endpoint:      entry.Endpoint,
			LastScheduled: entry.State.LastScheduled.UTC().Format(time.RFC3339Nano),
			NextSlot:      entry.NextSlot().UTC().Format(time.RFC3339Nano),
			Delay:         entry.State.Delay.String(),
			Ahead:         ahead,
			UpdatedAt:     entry.State.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func init() {
	addOutputFlags(rateLimitListCmd, output.FormatTable)
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List hosts with matching prefix")
	rateLimitListCmd.Flags().DurationVar(&rateLimitListIdle, "idle", 0, "Only list ledgers with no call scheduled for this long")
}
