package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"shelfd/internal/bootstrap"
	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
	"shelfd/internal/usecase/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed <catalog-file>",
	Short: "Import series and chapters from a YAML or TOML catalog file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *catalog.Service) error {
		ctx := cmd.Context()
		path := strings.TrimSpace(cmd.Flags().Arg(0))
		if path == "" {
			return errors.New("catalog file is required")
		}

		format, _ := cmd.Flags().GetString("format")
		if strings.TrimSpace(format) == "" {
			format = catalog.FormatFromPath(path)
		}
		migrate, _ := cmd.Flags().GetBool("migrate")
		if migrate {
			if err := app.InitSchema(ctx); err != nil {
				return errs.Wrap(err, "initialize schema")
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return errs.Wrapf(err, "open catalog file %q", path)
		}
		defer f.Close()

		file, err := catalog.DecodeCatalog(f, format)
		if err != nil {
			return errs.Wrapf(err, "decode catalog file %q", path)
		}

		result, err := svc.ImportCatalog(ctx, file)
		if err != nil {
			logging.Error(ctx, "catalog import failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import catalog")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d series, %d chapters from %s\n", result.Series, result.Chapters, path); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("format", "", "Catalog format: yaml, yml or toml (default: from file extension)")
	seedCmd.Flags().Bool("migrate", true, "Run schema migration before importing")
}
