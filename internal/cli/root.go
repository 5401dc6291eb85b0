// Package cli implements contractctl, the operator tool for a Rentify
// deployment.
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/internal/bootstrap"
	"github.com/aldoetobex/rentify-backend/internal/config"
	"github.com/aldoetobex/rentify-backend/pkg/database"
)

// NewRootCmd builds the contractctl command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "contractctl",
		Short:         "Rentify operations tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		MigrateCmd(),
		AdminCmd(),
		TokenCmd(),
		PDFCmd(),
		WorkerCmd(),
	)
	return rootCmd
}

// env is the runtime a command works against, loaded from the environment.
type env struct {
	cfg *config.Config
	log *logrus.Logger
	db  *gorm.DB
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := bootstrap.Logger(cfg)
	log.SetOutput(cmd.ErrOrStderr())

	db, err := bootstrap.Database(cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) close() {
	if err := database.Close(e.db); err != nil {
		e.log.WithError(err).Warn("close database")
	}
}

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if err := database.AutoMigrate(e.db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
