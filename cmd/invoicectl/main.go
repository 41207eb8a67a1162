// Package main is the invoicegen administration CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicegen/internal/app"
	"invoicegen/internal/config"
	"invoicegen/internal/infrastructure/storage/postgres"
	"invoicegen/pkg/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Administer an invoicegen deployment",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("INVOICEGEN_CONFIG"), "config file (YAML)")

	env := &cliEnv{configFile: &configFile}
	root.AddCommand(migrateCmd(env))
	root.AddCommand(createUserCmd(env))
	root.AddCommand(issueKeyCmd(env))
	root.AddCommand(renderCmd())
	return root
}

// cliEnv lazily opens the database for commands that need it.
type cliEnv struct {
	configFile *string

	cfg       *config.Config
	pool      *postgres.Pool
	txManager *postgres.TxManager
	services  *app.Services
}

func (e *cliEnv) open(ctx context.Context) error {
	cfg, err := config.Load(*e.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: true})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	ctx = logger.WithLogger(ctx, log)

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 1
	poolCfg.ApplicationName = "invoicectl"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.pool = pool
	e.txManager = postgres.NewTxManager(pool)
	return nil
}

func (e *cliEnv) openServices(ctx context.Context) error {
	if err := e.open(ctx); err != nil {
		return err
	}
	services, err := app.Build(ctx, e.cfg, e.txManager, nil)
	if err != nil {
		e.close()
		return err
	}
	e.services = services
	return nil
}

func (e *cliEnv) close() {
	if e.services != nil {
		e.services.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
