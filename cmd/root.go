// Package cmd defines and implements the CLI commands for the moses-scraper
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/app"
	"github.com/JakeFAU/moses-scraper/internal/catalog"
	"github.com/JakeFAU/moses-scraper/internal/config"
	"github.com/JakeFAU/moses-scraper/internal/logging"
	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

// App is the slice of *app.App the commands use. Tests swap in a fake
// through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Runs() store.RunRepository
	Loader() (*catalog.Loader, error)
	Migrate(ctx context.Context) error
	Scrape(ctx context.Context, refs []scraper.ModuleRef, force bool) (store.ScrapingRun, error)
	ServeOps(ctx context.Context) error
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

type envKeyType struct{}

// env is what PersistentPreRunE hands to the subcommands. The App is built
// lazily because validate needs no backend.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	app    App
}

func (e *env) App(ctx context.Context) (App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := newApp(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("initialize application services: %w", err)
	}
	e.app = a
	return a, nil
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
		e.app = nil
	}
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKeyType{}).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "moses-scraper",
		Short:         "Scrapes TU Berlin module descriptions into snapshot tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `moses-scraper reads a module list exported from MOSES, downloads each
module description page, parses it and stores the result as one snapshot
per scraping run.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			ctx := context.WithValue(cmd.Context(), envKeyType{}, &env{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, err := resolveEnv(cmd.Context()); err == nil {
				e.close()
				_ = e.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./moses.yaml or $HOME/.moses/moses.yaml)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
