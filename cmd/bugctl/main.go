// Command bugctl administers a bugboard database: migrations, API keys and
// read-only views of the issue clusters and leaderboard.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kiranshivaraju/bugboard/internal/config"
	"github.com/kiranshivaraju/bugboard/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "bugctl",
	Short:         "Administer a bugboard database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore connects to DATABASE_URL. The returned func closes the pool.
func openStore(ctx context.Context) (*store.PostgresStore, func(), error) {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return nil, nil, err
	}
	pool, err := store.Connect(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}
