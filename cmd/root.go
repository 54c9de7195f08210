/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "shelfd",
	Short:        "Series catalog server with an in-process response cache",
	Long:         "shelfd serves a series/chapter catalog over HTTP, backed by GORM(SQLite no-cgo) and wired with Cobra + Viper + fx.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		ctx := logging.WithLogger(cmd.Context(), logging.New(cmd.ErrOrStderr(), level))
		cmd.SetContext(ctx)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	ctx = logging.WithLogger(ctx, logging.New(rootCmd.ErrOrStderr(), slog.LevelInfo))
	ctx = logging.WithAttrs(ctx, slog.String("app", "shelfd"))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: configs/config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}
