package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"shelfd/internal/bootstrap"
	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
	"shelfd/internal/usecase/catalog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		migrate, _ := cmd.Flags().GetBool("migrate")

		var server *bootstrap.HTTPServer
		run := func(cmd *cobra.Command, _ *bootstrap.App, _ *catalog.Service) error {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "shelfd listening on %s\n", server.Addr()); err != nil {
				return errs.Wrap(err, "write serve output")
			}

			select {
			case <-cmd.Context().Done():
				logging.Info(cmd.Context(), "shutdown signal received")
				return nil
			case err := <-server.Err():
				return err
			}
		}

		return withApp(
			run,
			bootstrap.ServeModule,
			fx.Supply(bootstrap.ServeOptions{Migrate: migrate}),
			fx.Populate(&server),
		)(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("migrate", true, "Run schema migration before serving")
}
