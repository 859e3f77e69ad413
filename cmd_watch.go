package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"steamwash-cloud/internal/dashboard"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the terminal dashboard against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("api")
			operator, _ := cmd.Flags().GetString("operator")
			interval, _ := cmd.Flags().GetDuration("interval")

			client, err := dashboard.NewClient(baseURL, operator, &http.Client{Timeout: 5 * time.Second})
			if err != nil {
				return err
			}
			return dashboard.Run(cmd.Context(), client, interval)
		},
	}
	cmd.Flags().String("api", "http://localhost:3000", "Base URL of the steam wash API")
	cmd.Flags().String("operator", "", "Operator name recorded in the audit log")
	cmd.Flags().Duration("interval", dashboard.DefaultInterval, "Refresh interval")
	return cmd
}
