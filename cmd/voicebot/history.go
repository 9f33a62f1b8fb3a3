package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"voicebot/internal/domain"
	"voicebot/internal/memory"
)

func historyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [user]",
		Short: "Print a user's stored transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := domain.DefaultUser
			if len(args) == 1 {
				user = args[0]
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Memory.DBPath); err != nil {
				return fmt.Errorf("no transcript database at %s", cfg.Memory.DBPath)
			}
			store, err := memory.NewSQLiteStore(cfg.Memory.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.ListByUser(context.Background(), user)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			printTranscript(cmd.OutOrStdout(), user, entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func printTranscript(w io.Writer, user string, entries []domain.TranscriptEntry) {
	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	if len(entries) == 0 {
		fmt.Fprintf(w, "No transcript for %s.\n", user)
		return
	}
	for _, e := range entries {
		speaker := boldGreen(user + ":")
		if e.Role == domain.RoleBot {
			speaker = boldCyan("bot:")
		}
		fmt.Fprintf(w, "%s %s %s\n", faint(e.Timestamp.Format("2006-01-02 15:04:05")), speaker, e.Text)
	}
}
