package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wordslearner/internal/lesson"
	"wordslearner/internal/logging"
	"wordslearner/internal/store"
	"wordslearner/internal/storyboard"
)

func newLessonCommand(ctx *commandContext) *cobra.Command {
	lessonCmd := &cobra.Command{
		Use:   "lesson",
		Short: "Generate and review storyboard lessons",
	}
	lessonCmd.AddCommand(newLessonGenerateCommand(ctx))
	lessonCmd.AddCommand(newLessonListCommand(ctx))
	lessonCmd.AddCommand(newLessonShowCommand(ctx))
	lessonCmd.AddCommand(newLessonRateCommand(ctx))
	lessonCmd.AddCommand(newLessonDurationCommand(ctx))
	lessonCmd.AddCommand(newLessonDeleteCommand(ctx))
	lessonCmd.AddCommand(newLessonClearCommand(ctx))
	return lessonCmd
}

func newLessonGenerateCommand(ctx *commandContext) *cobra.Command {
	var sentence string
	cmd := &cobra.Command{
		Use:   "generate WORD1 WORD2",
		Short: "Plan and render a lesson in the foreground",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.cliLogger()
			p, err := ctx.ports(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer p.Close()

			return ctx.withStore(func(st *store.Store) error {
				planner := storyboard.NewPlanner(p.text, cfg.Lesson.PlannerAttempts, logger)
				gen := lesson.NewGenerator(st, planner, p.images, p.audio, p.assets, lesson.PresetsFromConfig(cfg), logger)

				out := cmd.OutOrStdout()
				quiet := ctx.jsonOutput()
				id, err := gen.Generate(cmd.Context(), args[0], args[1], sentence, func(progress lesson.Progress) {
					if quiet {
						return
					}
					fmt.Fprintln(out, dim(out, progressLine(progress)))
				})
				if err != nil {
					if id != "" {
						logger.Debug("lesson generation failed", logging.LessonID(id), logging.Error(err))
						return fmt.Errorf("lesson %s failed: %w", id, err)
					}
					return err
				}
				if quiet {
					row, err := st.GetLesson(cmd.Context(), id)
					if err != nil {
						return err
					}
					return writeJSON(cmd, row)
				}
				fmt.Fprintf(out, "Lesson %s is ready\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sentence, "sentence", "s", "", "Sentence to ground the lesson in")
	return cmd
}

func progressLine(p lesson.Progress) string {
	switch p.Kind {
	case lesson.ProgressPlanning:
		return "planning storyboard"
	case lesson.ProgressGeneratingFrame:
		return fmt.Sprintf("frame %d/%d (index %d)", p.Step, p.TotalSteps, p.FrameIndex)
	case lesson.ProgressCompleted:
		return "completed"
	default:
		return string(p.Kind)
	}
}

func newLessonListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List lessons, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				lessons, err := st.ListLessons(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, lessons)
				}
				out := cmd.OutOrStdout()
				if len(lessons) == 0 {
					fmt.Fprintln(out, "No lessons")
					return nil
				}
				rows := make([][]string, 0, len(lessons))
				for _, l := range lessons {
					rating := "-"
					if l.SelfRatingClarity != nil {
						rating = strconv.Itoa(*l.SelfRatingClarity)
					}
					rows = append(rows, []string{
						l.ID,
						l.Word1 + " / " + l.Word2,
						statusLabel(string(l.Status)),
						rating,
						formatTime(l.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "ID"},
					{header: "Words", maxWidth: 30},
					{header: "Status"},
					{header: "Clarity", align: alignRight},
					{header: "Created"},
				}, rows))
				return nil
			})
		},
	}
}

type lessonDetail struct {
	Lesson *store.Lesson  `json:"lesson"`
	Frames []*store.Frame `json:"frames"`
}

func newLessonShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a lesson and its frames in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				row, err := st.GetLesson(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if row == nil {
					return notFound("lesson", args[0])
				}
				frames, err := st.ListFrames(cmd.Context(), row.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if frames == nil {
						frames = []*store.Frame{}
					}
					return writeJSON(cmd, lessonDetail{Lesson: row, Frames: frames})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, emphasize(out, row.Word1+" vs "+row.Word2))
				fmt.Fprintf(out, "ID:       %s\n", row.ID)
				fmt.Fprintf(out, "Status:   %s\n", statusLabel(string(row.Status)))
				fmt.Fprintf(out, "Sentence: %s\n", orDash(row.UserSentence))
				fmt.Fprintf(out, "Models:   %s / %s\n", orDash(row.ImageModel), orDash(row.AudioModel))
				if row.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", row.ErrorMessage)
				}
				if len(frames) == 0 {
					return nil
				}
				resolve := func(rel string) string { return rel }
				if assetStore, err := ctx.assetStore(cmd.Context()); err == nil {
					resolve = assetStore.Resolve
				}
				rows := make([][]string, 0, len(frames))
				for _, f := range frames {
					rows = append(rows, []string{
						strconv.Itoa(f.FrameIndex),
						f.FrameRole,
						f.Title,
						f.NarrationText,
						resolve(f.ImageRelativePath),
						resolve(f.AudioRelativePath),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "#", align: alignRight},
					{header: "Role"},
					{header: "Title", maxWidth: 24},
					{header: "Narration", maxWidth: 48},
					{header: "Image", maxWidth: 40},
					{header: "Audio", maxWidth: 40},
				}, rows))
				return nil
			})
		},
	}
}

func newLessonRateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rate ID RATING",
		Short: "Record a 1-5 clarity rating",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be a number from 1 to 5")
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.RateLesson(cmd.Context(), args[0], rating); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rated lesson %s: %d\n", args[0], rating)
				return nil
			})
		},
	}
}

func newLessonDurationCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "duration ID SECONDS",
		Short: "Record how long the lesson took to watch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("duration must be a number of seconds")
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.SetLessonDuration(cmd.Context(), args[0], seconds); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %.1fs for lesson %s\n", seconds, args[0])
				return nil
			})
		},
	}
}

func newLessonDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a lesson, its frames and its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.DeleteLesson(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return notFound("lesson", args[0])
				}
				ctx.removeLessonAssets(cmd, args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted lesson %s\n", args[0])
				return nil
			})
		},
	}
}

func newLessonClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every lesson and its media",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				ids, err := st.ClearLessons(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					ctx.removeLessonAssets(cmd, id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d lesson(s)\n", len(ids))
				return nil
			})
		},
	}
}

// removeLessonAssets deletes stored media after the rows are gone. Failures
// only warn; the records are already removed.
func (c *commandContext) removeLessonAssets(cmd *cobra.Command, lessonID string) {
	assetStore, err := c.assetStore(cmd.Context())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: media for lesson %s not removed: %v\n", lessonID, err)
		return
	}
	if err := assetStore.RemoveLesson(cmd.Context(), lessonID); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: media for lesson %s not removed: %v\n", lessonID, err)
	}
}
