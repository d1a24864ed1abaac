// fitctl - database maintenance for the fitchallenge API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fitchallenge/config"
	"fitchallenge/database"
	"fitchallenge/services"
	"fitchallenge/utils"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const ErrExitCode = 1

type rootOptions struct {
	sqlitePath string
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(ErrExitCode)
	}
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "fitctl",
		Short:        "fitchallenge database tools",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite", "",
		"use a SQLite database file instead of the PostgreSQL database from the environment")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newLintSeedCmd(),
		newReconcileCmd(opts),
	)
	return cmd
}

// openDB opens (and migrates) the database selected by the flags
func (o *rootOptions) openDB() (*gorm.DB, func(), error) {
	if o.sqlitePath != "" {
		db, err := database.OpenSQLite(o.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	}

	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel, !cfg.IsProduction())
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = database.CloseDB() }, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, closeDB, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations completed")
			return nil
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "recompute participant and reply counters and repair drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, closeDB, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := services.NewCleanupService(db, nil, 0).Reconcile(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Repaired %d challenge(s) and %d comment(s)\n",
				report.Challenges, report.Comments)
			return nil
		},
	}
}
