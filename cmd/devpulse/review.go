package main

import (
	"context"
	"fmt"

	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage review suggestions",
}

var reviewAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Attach a review suggestion to a snapshot",
	RunE:  runReviewAdd,
}

var (
	reviewCommit     string
	reviewLineStart  int
	reviewLineEnd    int
	reviewSeverity   string
	reviewSuggestion string
)

func init() {
	reviewAddCmd.Flags().StringVar(&reviewCommit, "commit", "", "commit the review was raised against (required)")
	reviewAddCmd.Flags().IntVar(&reviewLineStart, "start", 0, "first line the suggestion targets (0 = applies broadly)")
	reviewAddCmd.Flags().IntVar(&reviewLineEnd, "end", 0, "last line the suggestion targets (0 = applies broadly)")
	reviewAddCmd.Flags().StringVar(&reviewSeverity, "severity", "minor", "severity tag")
	reviewAddCmd.Flags().StringVar(&reviewSuggestion, "suggestion", "", "suggestion text (required)")
	reviewAddCmd.MarkFlagRequired("commit")
	reviewAddCmd.MarkFlagRequired("suggestion")

	reviewCmd.AddCommand(reviewAddCmd)
}

func runReviewAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	review := &models.ReviewSuggestion{
		CommitID:   reviewCommit,
		Suggestion: reviewSuggestion,
		Severity:   reviewSeverity,
	}
	if reviewLineStart > 0 {
		review.LineStart = &reviewLineStart
	}
	if reviewLineEnd > 0 {
		review.LineEnd = &reviewLineEnd
	}

	created, err := store.CreateReview(context.Background(), review)
	if err != nil {
		return err
	}

	fmt.Println(created.ReviewID)
	return nil
}
