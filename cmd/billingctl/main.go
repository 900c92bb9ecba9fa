/*
main.go - Operations CLI

PURPOSE:
  Runs the two operator jobs without the HTTP server:
    billingctl migrate   Idempotent legacy payment import
    billingctl sweep     Today's reminder sweep (log-only notifier)

  Both open the same SQLite database the server uses, so they are safe
  to run on a stopped instance or, for migrate, against a live one.

FLAGS:
  --db   SQLite database path (default: billing.db, env DATABASE_PATH)
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/loggier/fleet-billing/billing"
	"github.com/loggier/fleet-billing/store/sqlite"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Fleet billing operations CLI",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if dbPath == "" {
			dbPath = os.Getenv("DATABASE_PATH")
		}
		if dbPath == "" {
			dbPath = "billing.db"
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy legacy nested payments into the flat ledger",
	Long: "Scans the legacy payment documents and copies any record not yet\n" +
		"present in the ledger, keyed by unit + invoice + payment date.\n" +
		"Safe to run repeatedly; already-copied records are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		store, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("could not open database: %w", err)
		}
		defer store.Close()

		migrator := billing.NewMigrator(store, store, log)
		result := migrator.Migrate(context.Background())
		if !result.Success {
			return fmt.Errorf("migration failed: %s", result.Message)
		}
		fmt.Println(result.Message)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run today's payment reminder sweep",
	Long: "Buckets every unit by due-date proximity and logs the notice each\n" +
		"would receive. At most one sweep runs per calendar day; a repeat\n" +
		"invocation is a no-op.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		store, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("could not open database: %w", err)
		}
		defer store.Close()

		notifier := billing.NotifierFunc(func(_ context.Context, template billing.Template, clientID billing.ClientID, unitID billing.UnitID) error {
			log.WithFields(logrus.Fields{
				"template": template,
				"client":   clientID,
				"unit":     unitID,
			}).Info("notification")
			return nil
		})

		sweeper := billing.NewSweeper(store, store, notifier, log)
		result, err := sweeper.Run(context.Background(), billing.Today())
		if err != nil {
			return err
		}
		if result.AlreadyRan {
			fmt.Println("sweep already ran today")
			return nil
		}
		fmt.Printf("processed %d, sent %d, skipped %d, failed %d\n",
			result.Processed, result.Sent, result.Skipped, result.Failed)
		return nil
	},
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
