package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/catalog"
)

func newValidateCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a MOSES CSV export without scraping",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			tmpl, err := catalog.NewURLTemplate(e.cfg.Scraper.URLTemplate)
			if err != nil {
				return fmt.Errorf("url template: %w", err)
			}
			f, err := os.Open(csvPath) // #nosec G304 -- path is an operator supplied input file.
			if err != nil {
				return fmt.Errorf("open module list: %w", err)
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil {
					e.logger.Warn("close module list failed", zap.Error(closeErr))
				}
			}()
			res, err := catalog.NewLoader(tmpl, e.logger).Validate(f)
			if err != nil {
				return fmt.Errorf("validate %s: %w", csvPath, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d rows, %d valid, %d invalid\n", csvPath, res.Total, res.Valid, res.Invalid)
			if res.Valid == 0 {
				return fmt.Errorf("no valid modules in %s", csvPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "module list exported from MOSES (required)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
