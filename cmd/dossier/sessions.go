package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/dossier/internal/cli"
	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and prune persisted session summaries",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	cmd.AddCommand(sessionsCleanupCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List session summaries, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStore(store)

			summaries, err := store.ListSummaries(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			if len(summaries) == 0 {
				fmt.Println(cli.InfoStyle.Render("No sessions found. Use 'dossier replay' to create one.")) //nolint:forbidigo // User-facing output
				return nil
			}

			fmt.Println(cli.FormatTitle("Sessions")) //nolint:forbidigo // User-facing output
			return cli.WriteSessionTable(os.Stdout, summaries)
		},
	}
}

func sessionsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStore(store)

			summary, err := store.GetSummary(ctx, args[0])
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError("No such session "+args[0]+". List sessions with 'dossier sessions list'.", err)
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			fmt.Println(cli.RenderBox(cli.FolderIcon+" Session "+summary.SessionID, formatSummary(*summary))) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Print the summary as JSON")

	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete one session summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStore(store)

			if err := store.DeleteSummary(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			fmt.Println(cli.FormatSuccess("Deleted session " + args[0])) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}

func sessionsCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete summaries not updated within the maximum session age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			maxAge := cfg.SessionMaxAge
			if cmd.Flags().Changed("max-age") {
				maxAge, _ = cmd.Flags().GetDuration("max-age")
			}
			if maxAge <= 0 {
				return fmt.Errorf("%w: max age must be positive", common.ErrInvalidConfig)
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer closeStore(store)

			cutoff := time.Now().Add(-maxAge)
			removed, err := store.DeleteSummariesBefore(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("failed to clean up sessions: %w", err)
			}
			slog.Info("Cleaned up expired sessions", "removed", removed, "max_age", maxAge)
			return nil
		},
	}

	cmd.Flags().Duration("max-age", 0, "Override session.max_age")

	return cmd
}

func formatSummary(s model.SessionSummary) string {
	status := "active"
	if !s.IsActive {
		status = "closed"
	}
	return fmt.Sprintf(`Owner:      %s
Status:     %s
Files:      %d/%d processed
Errors:     %d
Clients:    %d
Created:    %s
Updated:    %s`,
		s.OwnerIdentity,
		status,
		s.ProcessedFiles, s.TotalFiles,
		s.Errors,
		s.ClientsCount,
		s.CreatedAt.Local().Format(time.RFC3339),
		s.UpdatedAt.Local().Format(time.RFC3339))
}
