package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/charybdis/charybdis/internal/core"
	"github.com/charybdis/charybdis/internal/output"
	"github.com/charybdis/charybdis/internal/server/handlers"
)

var (
	sessionShowID   bool
	sessionClearAll bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage API sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session and store it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		session, err := client.CreateSession(ctx)
		if err != nil {
			return err
		}

		id := handlers.MaskSessionID(session.ID)
		if sessionShowID {
			id = session.ID
		}
		lines := []string{
			"Session created",
			"",
			"ID:       " + id,
			"Base URL: " + session.BaseURL,
			"Created:  " + session.CreatedAt.UTC().Format(time.RFC3339),
		}
		if client.store == nil {
			lines = append(lines, "", "(not persisted)")
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return err
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		ctx := commandContext(cmd)
		db, cfg, err := openConfiguredStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.ListSessions(ctx)
		if err != nil {
			return err
		}
		for i := range entries {
			if !sessionShowID {
				entries[i].Session.ID = handlers.MaskSessionID(entries[i].Session.ID)
			}
		}

		sink, err := openOutput(cmd, format, "session.show")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		lines := []string{"Sessions", ""}
		if len(entries) == 0 {
			lines = append(lines, "(no stored sessions)")
		}
		now := time.Now()
		for _, entry := range entries {
			state := "fresh"
			if entry.Session.Expired(now, cfg.API.SessionTTL) {
				state = "expired"
			}
			lines = append(lines, fmt.Sprintf("%s: id=%s age=%s %s",
				entry.Key,
				entry.Session.ID,
				entry.Session.Age(now).Truncate(time.Second),
				state))
		}
		_, _ = fmt.Fprint(sink.writer, ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored session for the configured deployment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		db, cfg, err := openConfiguredStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		var keys []string
		if sessionClearAll {
			entries, err := db.ListSessions(ctx)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				keys = append(keys, entry.Key)
			}
		} else {
			base, err := cfg.API.ResolveBaseURL()
			if err != nil {
				return err
			}
			devID := strings.TrimSpace(cfg.API.DevID)
			if devID == "" {
				return fmt.Errorf("dev id is not configured; use --all to clear every session")
			}
			keys = append(keys, core.SessionKey(devID, base))
		}

		deleted := 0
		for _, key := range keys {
			ok, err := db.DeleteSession(ctx, key)
			if err != nil {
				return err
			}
			if ok {
				deleted++
			}
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d session(s)\n", deleted)
		return err
	},
}

func init() {
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)

	sessionCreateCmd.Flags().BoolVar(&sessionShowID, "show-id", false, "print the full session id")
	sessionShowCmd.Flags().BoolVar(&sessionShowID, "show-id", false, "print full session ids")
	addOutputFlags(sessionShowCmd, output.FormatTable)
	sessionClearCmd.Flags().BoolVar(&sessionClearAll, "all", false, "clear sessions for every developer id and deployment")
}
