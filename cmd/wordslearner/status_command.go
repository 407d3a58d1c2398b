package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wordslearner/internal/config"
	"wordslearner/internal/daemon"
	"wordslearner/internal/store"
)

const statusTimeout = 5 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Ask the running daemon for its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := fetchDaemonStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			current := "-"
			if status.Processing {
				current = status.CurrentTaskID
			}
			fmt.Fprintln(out, emphasize(out, "Daemon"))
			fmt.Fprintln(out, renderTable([]column{{header: "Field"}, {header: "Value"}}, [][]string{
				{"Running", yesNo(status.Running)},
				{"Processing", yesNo(status.Processing)},
				{"Current task", current},
				{"Pending", strconv.Itoa(status.PendingCount)},
				{"Database", status.DatabasePath},
				{"Lock file", status.LockFilePath},
			}))

			rows := make([][]string, 0, len(store.TaskStatuses))
			for _, s := range store.TaskStatuses {
				rows = append(rows, []string{statusLabel(string(s)), strconv.Itoa(status.TaskStats[s])})
			}
			fmt.Fprintln(out, renderTable([]column{{header: "Tasks"}, {header: "Count", align: alignRight}}, rows))

			if len(status.ActiveLessons) > 0 {
				rows = rows[:0]
				for _, p := range status.ActiveLessons {
					rows = append(rows, []string{p.LessonID, progressLine(p)})
				}
				fmt.Fprintln(out, renderTable([]column{{header: "Lesson"}, {header: "Progress"}}, rows))
			}
			return nil
		},
	}
}

func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (*daemon.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	bind := strings.TrimSpace(cfg.Paths.APIBind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	if cfg.Paths.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Paths.APIToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s (start it with `wordslearner daemon`): %w", bind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body daemon.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		return nil, fmt.Errorf("daemon status: %s", body.Error)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}
