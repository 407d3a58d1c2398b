package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"wordslearner/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage saved comparisons",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryMarkCommand(ctx, "read", true))
	historyCmd.AddCommand(newHistoryMarkCommand(ctx, "unread", false))
	historyCmd.AddCommand(newHistoryDeleteCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	historyCmd.AddCommand(newHistoryExportCommand(ctx))
	historyCmd.AddCommand(newHistoryImportCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var filter store.HistoryFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comparisons, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entries, err := st.ListHistory(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No history")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					marker := ""
					if !entry.IsRead {
						marker = "●"
					}
					rows = append(rows, []string{
						marker,
						entry.ID,
						entry.Word1 + " / " + entry.Word2,
						formatTime(entry.Date),
						truncate(entry.Response, 48),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: ""},
					{header: "ID"},
					{header: "Words", maxWidth: 30},
					{header: "Date"},
					{header: "Preview", maxWidth: 48},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Search, "search", "", "Only entries whose words contain this text")
	cmd.Flags().BoolVar(&filter.UnreadOnly, "unread", false, "Only unread entries")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of entries (0 for all)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var keepUnread bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a saved comparison and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entry, err := st.GetHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return notFound("history entry", args[0])
				}
				if !keepUnread && !entry.IsRead {
					if err := st.SetHistoryRead(cmd.Context(), entry.ID, true); err != nil {
						return err
					}
					entry.IsRead = true
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, emphasize(out, entry.Word1+" vs "+entry.Word2))
				if entry.Sentence != "" {
					fmt.Fprintln(out, dim(out, "Sentence: "+entry.Sentence))
				}
				fmt.Fprintln(out, dim(out, formatTime(entry.Date)))
				fmt.Fprintln(out)
				fmt.Fprintln(out, entry.Response)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepUnread, "keep-unread", false, "Do not mark the entry as read")
	return cmd
}

func newHistoryMarkCommand(ctx *commandContext, name string, read bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " ID",
		Short: "Mark a comparison as " + name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				if err := st.SetHistoryRead(cmd.Context(), args[0], read); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as %s\n", args[0], name)
				return nil
			})
		},
	}
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved comparison",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.DeleteHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return notFound("history entry", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.ClearHistory(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entr%s\n", removed, pluralY(removed))
				return nil
			})
		},
	}
}

func newHistoryExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all history as a JSON array",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entries, err := st.ListHistory(cmd.Context(), store.HistoryFilter{})
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []*store.History{}
				}
				if outputPath == "" || outputPath == "-" {
					return encodeJSON(cmd.OutOrStdout(), entries)
				}
				file, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := encodeJSON(file, entries); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entr%s to %s\n", len(entries), pluralY(int64(len(entries))), outputPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

func newHistoryImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge a JSON history export, replacing entries with the same id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reader io.Reader
			if args[0] == "-" {
				reader = cmd.InOrStdin()
			} else {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer file.Close()
				reader = file
			}
			var entries []store.History
			if err := json.NewDecoder(reader).Decode(&entries); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}
			return ctx.withStore(func(st *store.Store) error {
				written, err := st.ImportHistory(cmd.Context(), entries)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"imported": written})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s entr%s\n", strconv.Itoa(written), pluralY(int64(written)))
				return nil
			})
		},
	}
}

func pluralY(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
