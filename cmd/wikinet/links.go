package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latebit/wikinet/internal/app"
	"github.com/latebit/wikinet/internal/article"
)

var linksCmd = &cobra.Command{
	Use:   "links <title>",
	Short: "List the outbound links of an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		src, cleanup, err := app.NewSource(cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		links, err := src.Links(cmd.Context(), args[0])
		if errors.Is(err, article.ErrNotFound) {
			return fmt.Errorf("article %q does not exist", args[0])
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, l := range links {
			fmt.Fprintln(out, l)
		}
		return nil
	},
}
