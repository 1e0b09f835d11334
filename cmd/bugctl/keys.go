package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/apikey"
	"github.com/kiranshivaraju/bugboard/pkg/models"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key",
	Long: `Create an API key and print it. The raw key is shown only once.

Examples:
  bugctl keys create --name ci --scopes submit
  bugctl keys create --name ops --scopes admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		scopes, _ := cmd.Flags().GetStringSlice("scopes")

		raw, key, err := apikey.Generate(name, scopes)
		if err != nil {
			return err
		}

		ctx := context.Background()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := st.CreateAPIKey(ctx, key); err != nil {
			return fmt.Errorf("create key: %w", err)
		}

		out := cmd.OutOrStdout()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(out, "%s Created key %q (%s)\n", green("✓"), key.Name, key.ID)
		fmt.Fprintf(out, "  Scopes: %s\n", strings.Join(key.Scopes, ", "))
		fmt.Fprintf(out, "  Key:    %s\n", raw)
		fmt.Fprintf(out, "%s\n", yellow("Store this key now; it cannot be shown again."))
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		keys, err := st.ListAPIKeys(ctx)
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}
		renderKeys(cmd.OutOrStdout(), keys)
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid key id %q: %w", args[0], err)
		}

		ctx := context.Background()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := st.RevokeAPIKey(ctx, id); err != nil {
			return fmt.Errorf("revoke key: %w", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Revoked %s\n", green("✓"), id)
		return nil
	},
}

func renderKeys(w io.Writer, keys []*models.APIKey) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	if len(keys) == 0 {
		fmt.Fprintf(w, "%s\n", gray("No active keys"))
		return
	}
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s  %-20s %s...  [%s]  %s\n",
			k.ID, k.Name, k.KeyPrefix, strings.Join(k.Scopes, ","), gray("last used "+lastUsed))
	}
}

func init() {
	keysCreateCmd.Flags().String("name", "", "Key name (required)")
	keysCreateCmd.Flags().StringSlice("scopes", []string{models.ScopeSubmit, models.ScopeRead},
		"Comma-separated scopes: submit, read, admin")
	keysCreateCmd.MarkFlagRequired("name")

	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}
