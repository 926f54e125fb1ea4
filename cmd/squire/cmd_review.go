package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"squire/internal/analysis"
	"squire/internal/config"
	"squire/internal/store"
)

var reviewLimit int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage team reviews read by the Team agent",
}

var reviewAddCmd = &cobra.Command{
	Use:   "add <text> [member]",
	Short: "Store a team review",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		member := ""
		if len(args) > 1 {
			member = args[1]
		}
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		review, err := st.AddTeamReview(cmd.Context(), args[0], member, config.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored review %d from %s\n", review.ID, review.TeamMember)
		return nil
	},
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent team reviews with their sentiment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewLimit <= 0 {
			return fmt.Errorf("--limit must be positive, got %d", reviewLimit)
		}
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		reviews, err := st.ListTeamReviews(cmd.Context(), reviewLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tMEMBER\tCREATED\tSENTIMENT\tTEXT")
		for _, r := range reviews {
			a := analysis.AnalyzeTeamReview(r.Text)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.TeamMember, r.CreatedAt.Format("2006-01-02 15:04"), a.Sentiment, excerpt(r.Text, 60))
		}
		return tw.Flush()
	},
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	reviewListCmd.Flags().IntVarP(&reviewLimit, "limit", "n", 10, "Number of reviews to show")
	reviewCmd.AddCommand(reviewAddCmd, reviewListCmd)
}
