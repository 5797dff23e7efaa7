package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var integrationID string
	var limit int

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger a sync for an integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if integrationID == "" {
				return fmt.Errorf("--integration required")
			}
			out, err := doPost(fmt.Sprintf("/api/integrations/%s/sync", integrationID))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, out)
			return nil
		},
	}
	syncCmd.Flags().StringVarP(&integrationID, "integration", "i", "", "Integration ID (required)")
	_ = syncCmd.MarkFlagRequired("integration")
	rootCmd.AddCommand(syncCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status for an integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if integrationID == "" {
				return fmt.Errorf("--integration required")
			}
			query := map[string]string{}
			if limit > 0 {
				query["limit"] = fmt.Sprintf("%d", limit)
			}
			out, err := doGet(fmt.Sprintf("/api/integrations/%s/sync", integrationID), query)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, out)
			return nil
		},
	}
	statusCmd.Flags().StringVarP(&integrationID, "integration", "i", "", "Integration ID (required)")
	statusCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show the N most recent attempts instead of only the latest")
	_ = statusCmd.MarkFlagRequired("integration")
	rootCmd.AddCommand(statusCmd)
}
