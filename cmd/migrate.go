package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/streetlabs/bobwire/internal/config"
	"github.com/streetlabs/bobwire/internal/store"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: "Migrations run automatically on serve; these subcommands are for " +
			"inspecting or rolling back the schema by hand.",
	}

	cmd.AddCommand(
		migrateSubCmd("up", "Apply all pending migrations", func(m *migrate.Migrate) error {
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}
			fmt.Println("schema is up to date")
			return nil
		}),
		migrateSubCmd("down", "Roll back the most recent migration", func(m *migrate.Migrate) error {
			if err := m.Steps(-1); err != nil {
				return err
			}
			fmt.Println("rolled back one migration")
			return nil
		}),
		migrateSubCmd("version", "Print the current schema version", func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("version %d (dirty: %v)\n", version, dirty)
			return nil
		}),
	)
	return cmd
}

func migrateSubCmd(use, short string, fn func(*migrate.Migrate) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runMigrate(fn); err != nil {
				fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", use, err)
				os.Exit(1)
			}
		},
	}
}

func runMigrate(fn func(*migrate.Migrate) error) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	m, err := store.NewMigrator(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}
