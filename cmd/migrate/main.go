package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/salon-api/internal/config"
	"github.com/jwalitptl/salon-api/internal/repository/postgres"
	"github.com/jwalitptl/salon-api/migrations"
	"github.com/jwalitptl/salon-api/pkg/logger"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "salon-migrate",
		Short:        "Apply the database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	newMigrator := func(cmd *cobra.Command) (*postgres.Migrator, func(), error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		db, err := postgres.NewDB(cmd.Context(), cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewMigrator(db, migrations.FS), func() { db.Close() }, nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeDB, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			log := logger.NewLogger(nil)
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("Migrations applied", "count", n)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeDB, err := newMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
			for _, s := range statuses {
				appliedAt := "pending"
				if s.AppliedAt != nil {
					appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, appliedAt)
			}
			return w.Flush()
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
