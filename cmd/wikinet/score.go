package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latebit/wikinet/internal/app"
	"github.com/latebit/wikinet/internal/correlation"
)

var scoreCmd = &cobra.Command{
	Use:   "score <title> <title>",
	Short: "Print the similarity of two articles",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == args[1] {
			return fmt.Errorf("cannot score %q against itself", args[0])
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		src, cleanup, err := app.NewSource(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		orc, err := app.NewOracle(cfg)
		if err != nil {
			return err
		}
		store, err := app.NewStore(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		scores := correlation.New(src, orc, correlation.Options{Store: store, Logger: logger})
		s := scores.Score(cmd.Context(), args[0], args[1])
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if e, ok := scores.Lookup(args[0], args[1]); ok && !e.Available {
			fmt.Fprintf(out, "%.4f (unavailable)\n", s)
			return nil
		}
		fmt.Fprintf(out, "%.4f\n", s)
		return nil
	},
}
