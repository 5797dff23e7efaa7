package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var integrationID, calendarID, theme, from, to string
	var limit int

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List synced events with their storylines",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{}
			if integrationID != "" {
				query["integrationId"] = integrationID
			}
			if calendarID != "" {
				query["calendarId"] = calendarID
			}
			if theme != "" {
				query["theme"] = theme
			}
			if from != "" {
				query["from"] = from
			}
			if to != "" {
				query["to"] = to
			}
			if limit > 0 {
				query["limit"] = fmt.Sprintf("%d", limit)
			}
			out, err := doGet("/api/events", query)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, out)
			return nil
		},
	}
	eventsCmd.Flags().StringVarP(&integrationID, "integration", "i", "", "Filter by integration ID")
	eventsCmd.Flags().StringVarP(&calendarID, "calendar", "c", "", "Filter by calendar ID")
	eventsCmd.Flags().StringVarP(&theme, "theme", "t", "", "Storyline theme (fantasy, genz, meme, professional)")
	eventsCmd.Flags().StringVar(&from, "from", "", "Window start (RFC3339)")
	eventsCmd.Flags().StringVar(&to, "to", "", "Window end (RFC3339)")
	eventsCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum events to return")
	rootCmd.AddCommand(eventsCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := doGet("/api/health", nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, out)
			return nil
		},
	}
	rootCmd.AddCommand(healthCmd)
}
