// Command wikinet builds similarity networks of linked articles.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/latebit/wikinet/internal/config"
	"github.com/latebit/wikinet/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

// Flags shared by every subcommand. They are only applied to the loaded
// configuration when set explicitly.
var (
	sourceKind string
	sourceDir  string
	language   string
	oracleKind string
	noCache    bool
	natsURL    string
	logFormat  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "wikinet <command>",
	Short:         "Build similarity networks of linked articles",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyRootFlags(cmd, c)
		cfg = c
		logger = logging.New(cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", os.Getenv("WIKINET_CONFIG"), "config file (.toml, .yaml) (env: WIKINET_CONFIG)")
	pf.StringVar(&sourceKind, "source", "wikipedia", "article source (wikipedia or dir)")
	pf.StringVar(&sourceDir, "dir", "", "directory of markdown articles for --source dir")
	pf.StringVar(&language, "lang", "en", "Wikipedia language code")
	pf.StringVar(&oracleKind, "oracle", "lexical", "similarity oracle (lexical, openai or ollama)")
	pf.BoolVar(&noCache, "no-cache", false, "disable the on-disk page cache")
	pf.StringVar(&natsURL, "nats-url", "", "NATS server for progress events (env: WIKINET_NATS_URL)")
	pf.StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(watchCmd)
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func applyRootFlags(cmd *cobra.Command, c *config.Config) {
	if changed(cmd, "source") {
		c.Source.Kind = sourceKind
	}
	if changed(cmd, "dir") {
		c.Source.Dir = sourceDir
		if !changed(cmd, "source") {
			c.Source.Kind = "dir"
		}
	}
	if changed(cmd, "lang") {
		c.Source.Language = language
	}
	if changed(cmd, "oracle") {
		c.Oracle.Kind = oracleKind
	}
	if noCache {
		c.Source.Cache = false
	}
	if changed(cmd, "nats-url") {
		c.Events.NATSURL = natsURL
	}
	if changed(cmd, "log-format") {
		c.Log.Format = logFormat
	}
	if changed(cmd, "log-level") {
		c.Log.Level = logLevel
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
