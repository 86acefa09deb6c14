package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidnote/vidnote/internal/store"
	"github.com/vidnote/vidnote/internal/types"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			dbPath, _ := cmd.Flags().GetString("history-db")
			if dbPath == "" {
				dbPath = store.DefaultDBPath()
			}
			return printHistory(cmd, dbPath, limit)
		},
	}
	cmd.Flags().Int("limit", 20, "Max entries to show")
	cmd.Flags().String("history-db", "", "Task history database path")
	_ = cmd.Flags().MarkHidden("history-db")
	return cmd
}

func printHistory(cmd *cobra.Command, dbPath string, limit int) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	tasks, err := st.RecentTasks(ctx, limit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs yet")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tSOURCE\tNOTE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			statusLabel(t),
			t.Source,
			t.NotePath)
	}
	return w.Flush()
}

func statusLabel(t types.Task) string {
	if t.Status == types.TaskFailed && t.Reason != "" {
		return fmt.Sprintf("failed (%s)", truncate(t.Reason, 40))
	}
	return string(t.Status)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
