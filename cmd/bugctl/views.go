package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/kiranshivaraju/bugboard/internal/analysis"
	"github.com/kiranshivaraju/bugboard/internal/reports"
	"github.com/kiranshivaraju/bugboard/pkg/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Show unique issues and the teams that reported them",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		svc, closeStore, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		clusters, err := svc.Clusters(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), clusters)
		}
		renderClusters(cmd.OutOrStdout(), clusters)
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rank teams by distinct URLs with bugs",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		svc, closeStore, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		board, err := svc.Leaderboard(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), board)
		}
		renderLeaderboard(cmd.OutOrStdout(), board)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show report totals, top clusters and the leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top")

		ctx := context.Background()
		svc, closeStore, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		var (
			all      []*models.BugReport
			clusters []models.IssueCluster
			board    []models.LeaderboardEntry
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			all, err = svc.List(gctx, "")
			return err
		})
		g.Go(func() error {
			var err error
			clusters, err = svc.Clusters(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			board, err = svc.Leaderboard(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		renderSummary(cmd.OutOrStdout(), all, clusters, board, top)
		return nil
	},
}

func openService(ctx context.Context) (*reports.Service, func(), error) {
	st, closeStore, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reports.NewService(st, analysis.ScopeTeamURL), closeStore, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderClusters(w io.Writer, clusters []models.IssueCluster) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintf(w, "%s\n", cyan("=== Issue Clusters ==="))
	if len(clusters) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No reports yet"))
		return
	}
	for i, c := range clusters {
		fmt.Fprintf(w, "%3d. %s\n", i+1, c.Description)
		fmt.Fprintf(w, "     %s\n", gray(c.URL))
		fmt.Fprintf(w, "     %s team(s): %s\n", green(fmt.Sprint(c.TeamCount)), strings.Join(c.Teams, ", "))
	}
}

func renderLeaderboard(w io.Writer, board []models.LeaderboardEntry) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s\n", cyan("=== Leaderboard ==="))
	if len(board) == 0 {
		fmt.Fprintf(w, "  %s\n", gray("No reports yet"))
		return
	}
	fmt.Fprintf(w, "  %-4s %-24s %6s %6s\n", "#", "Team", "URLs", "Bugs")
	for i, e := range board {
		rank := fmt.Sprintf("%-4d", i+1)
		if i == 0 {
			rank = yellow(rank)
		}
		fmt.Fprintf(w, "  %s %-24s %6d %6d\n", rank, e.Team, e.URLCount, e.BugCount)
	}
}

func renderSummary(w io.Writer, all []*models.BugReport, clusters []models.IssueCluster, board []models.LeaderboardEntry, top int) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	duplicates := 0
	for _, r := range all {
		if r.Duplicate {
			duplicates++
		}
	}
	crossTeam := 0
	for _, c := range clusters {
		if c.TeamCount > 1 {
			crossTeam++
		}
	}

	fmt.Fprintf(w, "%s\n", cyan("=== Bugboard Summary ==="))
	fmt.Fprintf(w, "  Reports:        %d (%d duplicate)\n", len(all), duplicates)
	fmt.Fprintf(w, "  Unique issues:  %d (%d reported by more than one team)\n", len(clusters), crossTeam)
	fmt.Fprintf(w, "  Teams:          %d\n", len(board))
	fmt.Fprintln(w)

	if top > 0 && len(clusters) > top {
		clusters = clusters[:top]
	}
	if top > 0 && len(board) > top {
		board = board[:top]
	}
	renderClusters(w, clusters)
	fmt.Fprintln(w)
	renderLeaderboard(w, board)
}

func init() {
	clustersCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	leaderboardCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	summaryCmd.Flags().Int("top", 5, "Show at most this many clusters and teams (0 for all)")

	rootCmd.AddCommand(clustersCmd, leaderboardCmd, summaryCmd)
}
