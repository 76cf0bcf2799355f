package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tracewal/domain/trace"
)

// executionsListOptions holds options for the executions list command.
type executionsListOptions struct {
	limit    int
	threadID string
	asJSON   bool
}

// newExecutionsCmd creates the executions command group.
func (a *App) newExecutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Inspect recorded executions",
	}

	cmd.AddCommand(
		a.newExecutionsListCmd(),
		a.newExecutionsShowCmd(),
		a.newExecutionsEventsCmd(),
	)

	return cmd
}

// newExecutionsListCmd creates the executions list command.
func (a *App) newExecutionsListCmd() *cobra.Command {
	opts := &executionsListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent executions",
		Long: `List execution summaries from the metadata index, newest first.

Examples:
  # Last 20 executions
  tracewal executions list

  # Executions for one checkpointing thread
  tracewal executions list --thread thread-42 --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listExecutions(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of executions")
	cmd.Flags().StringVarP(&opts.threadID, "thread", "t", "", "Filter by thread id")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Emit JSON instead of a table")

	return cmd
}

func (a *App) listExecutions(cmd *cobra.Command, opts *executionsListOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	h := store.Handle()

	var summaries []trace.ExecutionSummary
	if opts.threadID != "" {
		summaries, err = h.ExecutionsByThread(ctx, opts.threadID, opts.limit)
	} else {
		summaries, err = h.RecentExecutions(ctx, opts.limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list executions: %w", err)
	}

	if opts.asJSON {
		return writeJSON(a.stdout, summaries)
	}

	total, err := h.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count executions: %w", err)
	}

	if len(summaries) == 0 {
		_, _ = fmt.Fprintf(a.stdout, "No executions recorded.\n")
		return nil
	}

	_, _ = fmt.Fprintf(a.stdout, "Executions (%d of %d):\n\n", len(summaries), total)
	for _, s := range summaries {
		status := "incomplete"
		if s.Completed {
			status = "completed"
		}
		_, _ = fmt.Fprintf(a.stdout, "  %s\n", s.ExecutionID)
		if s.ThreadID != "" {
			_, _ = fmt.Fprintf(a.stdout, "    Thread:   %s\n", s.ThreadID)
		}
		_, _ = fmt.Fprintf(a.stdout, "    Started:  %s\n", formatMs(s.StartedAtMs))
		_, _ = fmt.Fprintf(a.stdout, "    Duration: %dms  Tokens: %d  Status: %s\n", s.DurationMs, s.TotalTokens, status)
	}

	return nil
}

// newExecutionsShowCmd creates the executions show command.
func (a *App) newExecutionsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show one execution's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showExecution(cmd, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")

	return cmd
}

func (a *App) showExecution(cmd *cobra.Command, executionID string, asJSON bool) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summary, err := store.Handle().ExecutionByID(cmd.Context(), executionID)
	if err != nil {
		return fmt.Errorf("failed to look up execution: %w", err)
	}
	if summary == nil {
		return fmt.Errorf("%w: %s", trace.ErrExecutionNotFound, executionID)
	}

	if asJSON {
		return writeJSON(a.stdout, summary)
	}

	_, _ = fmt.Fprintf(a.stdout, "Execution %s\n", summary.ExecutionID)
	if summary.ThreadID != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Thread:    %s\n", summary.ThreadID)
	}
	_, _ = fmt.Fprintf(a.stdout, "  Started:   %s\n", formatMs(summary.StartedAtMs))
	_, _ = fmt.Fprintf(a.stdout, "  Ended:     %s\n", formatMs(summary.EndedAtMs))
	_, _ = fmt.Fprintf(a.stdout, "  Duration:  %dms\n", summary.DurationMs)
	_, _ = fmt.Fprintf(a.stdout, "  Tokens:    %d\n", summary.TotalTokens)
	_, _ = fmt.Fprintf(a.stdout, "  Completed: %v\n", summary.Completed)
	if summary.SegmentPath != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Storage:   %s\n", summary.SegmentPath)
	}

	return nil
}

// newExecutionsEventsCmd creates the executions events command.
func (a *App) newExecutionsEventsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "events <execution-id>",
		Short: "Print one execution's full event stream",
		Long: `Print every stored event for an execution in timestamp order, merged
across WAL segments and compacted columnar files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printEvents(cmd, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")

	return cmd
}

func (a *App) printEvents(cmd *cobra.Command, executionID string, asJSON bool) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	events, err := store.Handle().ExecutionEvents(cmd.Context(), executionID)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(a.stdout, events)
	}

	_, _ = fmt.Fprintf(a.stdout, "Events for %s (%d):\n\n", executionID, len(events))
	for _, e := range events {
		_, _ = fmt.Fprintf(a.stdout, "  %s  %-18s", formatMs(e.TimestampMs), e.Type)
		if len(e.Payload) > 0 {
			_, _ = fmt.Fprintf(a.stdout, "  %s", string(e.Payload))
		}
		_, _ = fmt.Fprintf(a.stdout, "\n")
	}

	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
