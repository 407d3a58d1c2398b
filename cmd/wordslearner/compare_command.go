package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wordslearner/internal/comparison"
	"wordslearner/internal/store"
)

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var sentence string

	cmd := &cobra.Command{
		Use:   "compare WORD1 WORD2",
		Short: "Stream a comparison now and save it to history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := comparison.ValidateWords(args[0], args[1]); err != nil {
				return err
			}
			logger := ctx.cliLogger()
			p, err := ctx.ports(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer p.Close()

			return ctx.withStore(func(st *store.Store) error {
				svc := comparison.NewService(p.text, st, logger)
				out := cmd.OutOrStdout()
				if ctx.jsonOutput() {
					entry, err := svc.Compare(cmd.Context(), args[0], args[1], sentence, nil)
					if err != nil {
						return err
					}
					return writeJSON(cmd, entry)
				}
				entry, err := svc.Compare(cmd.Context(), args[0], args[1], sentence, out)
				if err != nil {
					fmt.Fprintln(out)
					return err
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, dim(out, "Saved to history as "+entry.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sentence, "sentence", "s", "", "Example sentence using one of the words")
	return cmd
}
