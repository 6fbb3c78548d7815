package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finsview/internal/domain"
	"finsview/internal/httpapi"
	"finsview/internal/store"
	"finsview/internal/symbollist"
)

// ---------------------------------------------------------------------------
// errors
// ---------------------------------------------------------------------------

func newErrorsCmd(a *app) *cobra.Command {
	cmd := newErrorsListCmd(a, "errors")
	cmd.AddCommand(newErrorsListCmd(a, "list"), newErrorsShowCmd(a), newErrorsClearCmd(a))
	return cmd
}

func newErrorsListCmd(a *app, use string) *cobra.Command {
	var (
		limit  int
		source string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: "List recent backend errors (admin only)",
		Long:  "Display recent errors with ID, timestamp, source and message.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.ListErrors(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get errors: %w", err)
			}
			if source != "" {
				entries = filterSource(entries, source)
			}
			if len(entries) == 0 {
				a.printf("No errors found\n")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			a.printf("%-6s %-20s %-25s %s\n", "ID", "TIMESTAMP", "SOURCE", "MESSAGE")
			a.rule(85)
			for _, e := range entries {
				msg := e.Message
				if len([]rune(msg)) > 50 {
					msg = string([]rune(msg)[:47]) + "..."
				}
				a.printf("%-6d %-20s %-25s %s\n", e.ID, e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Source, msg)
			}

			since := time.Now().Add(-24 * time.Hour)
			recent := 0
			for _, e := range entries {
				if e.Timestamp.After(since) {
					recent++
				}
			}
			a.printf("\nErrors in last 24h: %d\n", recent)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of errors to show")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Only errors from this source")
	return cmd
}

func filterSource(entries []domain.ErrorEntry, source string) []domain.ErrorEntry {
	var out []domain.ErrorEntry
	for _, e := range entries {
		if strings.EqualFold(e.Source, source) {
			out = append(out, e)
		}
	}
	return out
}

func newErrorsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one error with its details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid error id %q", args[0])
			}
			entries, err := a.client.ListErrors(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get errors: %w", err)
			}
			for _, e := range entries {
				if e.ID != id {
					continue
				}
				a.printf("ID:        %d\n", e.ID)
				a.printf("Timestamp: %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
				a.printf("Source:    %s\n", e.Source)
				a.printf("Type:      %s\n", e.ErrorType)
				a.printf("Message:   %s\n", e.Message)
				if e.Details != nil {
					a.printf("\n%s\n", *e.Details)
				}
				return nil
			}
			return fmt.Errorf("error %d not found", id)
		},
	}
}

func newErrorsClearCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all backend errors",
		Long:  "Remove all error entries. Use --force to skip confirmation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.confirmed(force, "This will delete ALL errors. Are you sure?")
			if err != nil || !ok {
				return err
			}
			deleted, err := a.client.ClearErrors(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to clear errors: %w", err)
			}
			a.printf("✓ Deleted %d error(s)\n", deleted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd(a *app) *cobra.Command {
	var healthAddr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the backend, the signed-in user and dev server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.printf("API:     %s\n", a.client.BaseURL())
			user, err := a.client.CurrentUser(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading current user: %w", err)
			}
			role := "user"
			if user.IsAdmin {
				role = "admin"
			}
			a.printf("User:    %s (%s)\n", user.Name, role)

			if healthAddr == "" {
				healthAddr = net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.GRPCPort))
			}
			status, err := httpapi.CheckHealth(cmd.Context(), healthAddr)
			if err != nil {
				a.log.Debug("health check failed", "addr", healthAddr, "error", err)
				status = "UNREACHABLE"
			}
			a.printf("Health:  %s (%s)\n", status, healthAddr)
			return nil
		},
	}
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "gRPC health address (default server.host:server.grpc_port)")
	return cmd
}

// ---------------------------------------------------------------------------
// state
// ---------------------------------------------------------------------------

func newStateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the terminal client's saved list filters",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved list states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(a.cfg.Storage.SQLitePath)
			if err != nil {
				return err
			}
			defer st.Close()

			keys, err := st.ViewStateKeys(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				a.printf("No saved state\n")
				return nil
			}
			for _, k := range keys {
				var vs symbollist.ViewState
				if _, err := st.LoadViewState(cmd.Context(), k, &vs); err != nil {
					return err
				}
				sort := vs.Sort()
				a.printf("%-32s sort=%s %s search=%q filtered=%t\n", k, sort.Column, sort.Direction, vs.SearchTerm, vs.Active())
			}
			return nil
		},
	})

	var force bool
	resetCmd := &cobra.Command{
		Use:   "reset [KEY...]",
		Short: "Delete saved list states, all of them when no key is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(a.cfg.Storage.SQLitePath)
			if err != nil {
				return err
			}
			defer st.Close()

			keys := args
			if len(keys) == 0 {
				if keys, err = st.ViewStateKeys(cmd.Context()); err != nil {
					return err
				}
				if len(keys) == 0 {
					a.printf("No saved state\n")
					return nil
				}
				ok, err := a.confirmed(force, fmt.Sprintf("Reset all %d saved list states?", len(keys)))
				if err != nil || !ok {
					return err
				}
			}
			for _, k := range keys {
				if err := st.DeleteViewState(cmd.Context(), k); err != nil {
					return err
				}
				a.printf("✓ Reset %s\n", k)
			}
			return nil
		},
	}
	resetCmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	cmd.AddCommand(resetCmd)

	return cmd
}
