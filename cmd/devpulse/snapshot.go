package main

import (
	"context"
	"fmt"
	"os"

	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage code snapshots",
}

var snapshotAddCmd = &cobra.Command{
	Use:   "add <source-file>",
	Short: "Record a code snapshot for a commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotAdd,
}

var (
	snapProject   string
	snapParent    string
	snapDeveloper string
	snapLanguage  string
	snapCommit    string
)

func init() {
	snapshotAddCmd.Flags().StringVar(&snapProject, "project", "", "project identifier (required)")
	snapshotAddCmd.Flags().StringVar(&snapParent, "parent", "", "parent commit id (empty for chain root)")
	snapshotAddCmd.Flags().StringVar(&snapDeveloper, "developer", "", "developer name (required)")
	snapshotAddCmd.Flags().StringVar(&snapLanguage, "language", "", "language tag (required)")
	snapshotAddCmd.Flags().StringVar(&snapCommit, "commit", "", "commit id (minted if empty)")
	snapshotAddCmd.MarkFlagRequired("project")
	snapshotAddCmd.MarkFlagRequired("developer")
	snapshotAddCmd.MarkFlagRequired("language")

	snapshotCmd.AddCommand(snapshotAddCmd)
}

func runSnapshotAdd(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	commitID := snapCommit
	if commitID == "" {
		commitID = uuid.NewString()
	}

	snap := &models.Snapshot{
		CommitID:      commitID,
		ProjectID:     snapProject,
		DeveloperName: snapDeveloper,
		CodeText:      string(code),
		Language:      snapLanguage,
	}
	if snapParent != "" {
		snap.ParentCommitID = &snapParent
	}

	if err := store.CreateSnapshot(context.Background(), snap); err != nil {
		return err
	}

	fmt.Println(commitID)
	return nil
}
