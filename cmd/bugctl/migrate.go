package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kiranshivaraju/bugboard/internal/config"
	"github.com/kiranshivaraju/bugboard/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply every pending up migration to the database named by DATABASE_URL.

Examples:
  bugctl migrate
  bugctl migrate --dir ./migrations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		dbCfg, err := config.LoadDatabase()
		if err != nil {
			return err
		}
		if err := store.RunMigrations(dbCfg.URL, dir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Database is up to date\n", green("✓"))
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("dir", "migrations", "Directory containing migration files")
	rootCmd.AddCommand(migrateCmd)
}
