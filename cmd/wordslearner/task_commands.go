package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wordslearner/internal/comparison"
	"wordslearner/internal/services"
	"wordslearner/internal/store"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage queued background comparisons",
	}
	taskCmd.AddCommand(newTaskAddCommand(ctx))
	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	taskCmd.AddCommand(newTaskRegenerateCommand(ctx))
	taskCmd.AddCommand(newTaskRemoveCommand(ctx))
	taskCmd.AddCommand(newTaskClearCommand(ctx))
	taskCmd.AddCommand(newTaskStatsCommand(ctx))
	return taskCmd
}

func newTaskAddCommand(ctx *commandContext) *cobra.Command {
	var sentence string
	cmd := &cobra.Command{
		Use:   "add WORD1 WORD2",
		Short: "Queue a comparison for the daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := comparison.ValidateWords(args[0], args[1]); err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				task, err := st.AddTask(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(args[1]), strings.TrimSpace(sentence))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s (%s vs %s)\n", task.ID, task.Word1, task.Word2)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sentence, "sentence", "s", "", "Example sentence using one of the words")
	return cmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseTaskStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				tasks, err := st.ListTasks(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, tasks)
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No tasks")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						task.ID,
						task.Word1 + " / " + task.Word2,
						statusLabel(string(task.Status)),
						formatTime(task.CreatedAt),
						orDash(truncate(task.Error, 40)),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "ID"},
					{header: "Words", maxWidth: 30},
					{header: "Status"},
					{header: "Created"},
					{header: "Error", maxWidth: 40},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Filter by status (pending, generating, completed, failed)")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a task and its response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				task, err := st.GetTask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if task == nil {
					return notFound("task", args[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, task)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n", emphasize(out, task.Word1+" vs "+task.Word2))
				fmt.Fprintf(out, "ID:       %s\n", task.ID)
				fmt.Fprintf(out, "Status:   %s\n", statusLabel(string(task.Status)))
				fmt.Fprintf(out, "Sentence: %s\n", orDash(task.Sentence))
				fmt.Fprintf(out, "Created:  %s\n", formatTime(task.CreatedAt))
				fmt.Fprintf(out, "Updated:  %s\n", formatTime(task.UpdatedAt))
				if task.Error != "" {
					fmt.Fprintf(out, "Error:    %s\n", task.Error)
				}
				if task.Response != "" {
					fmt.Fprintf(out, "\n%s\n", task.Response)
				}
				return nil
			})
		},
	}
}

func newTaskRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate ID",
		Short: "Reset a task to pending so the daemon runs it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				affected, err := st.RegenerateTask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if affected == 0 {
					return notFound("task", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s reset to pending\n", args[0])
				return nil
			})
		},
	}
}

func newTaskRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.RemoveTask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return notFound("task", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[0])
				return nil
			})
		},
	}
}

func newTaskClearCommand(ctx *commandContext) *cobra.Command {
	var completed, failed, all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete finished tasks",
		Long:  "Delete completed and failed tasks. Use --completed or --failed to limit the selection, or --all to empty the queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []store.TaskStatus
			if all && (completed || failed) {
				return fmt.Errorf("--all cannot be combined with --completed or --failed")
			}
			if completed {
				statuses = append(statuses, store.TaskCompleted)
			}
			if failed {
				statuses = append(statuses, store.TaskFailed)
			}
			if len(statuses) == 0 && !all {
				statuses = []store.TaskStatus{store.TaskCompleted, store.TaskFailed}
			}
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.ClearTasks(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d task(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "Only completed tasks")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only failed tasks")
	cmd.Flags().BoolVar(&all, "all", false, "Every task, including pending and generating ones")
	return cmd
}

func newTaskStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count tasks per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				stats, err := st.TaskStats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				rows := make([][]string, 0, len(store.TaskStatuses))
				for _, status := range store.TaskStatuses {
					rows = append(rows, []string{statusLabel(string(status)), strconv.Itoa(stats[status])})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "Status"},
					{header: "Count", align: alignRight},
				}, rows))
				return nil
			})
		},
	}
}

func parseTaskStatuses(values []string) ([]store.TaskStatus, error) {
	var statuses []store.TaskStatus
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		status, ok := store.ParseTaskStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown task status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, services.ErrNotFound)
}
