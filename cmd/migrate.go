package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-fps-payments/migrations"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	Run: func(_ *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		db := mustOpenDB(cfg)
		defer func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}()

		if err := migrations.Run(context.Background(), db, args[0]); err != nil {
			logrus.WithError(err).WithField("command", args[0]).Fatal("Migration failed")
		}
		logrus.WithField("command", args[0]).Info("Migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
