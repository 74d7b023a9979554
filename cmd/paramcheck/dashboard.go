package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"paramcheck/internal/dashboard"
)

var (
	dashboardOut        string
	dashboardDatasource string
	dashboardTitle      string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the Grafana dashboard for the GreptimeDB result tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		paths, err := dashboard.Render(dashboardOut, dashboard.Options{
			Title:         dashboardTitle,
			DatasourceUID: dashboardDatasource,
			Database:      cfg.Output.Greptime.Database,
		})
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(stdout, p)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
	dashboardCmd.Flags().StringVar(&dashboardDatasource, "datasource", "", "Grafana datasource uid (default $GREPTIMEDB_DATASOURCE_UID)")
	dashboardCmd.Flags().StringVar(&dashboardTitle, "title", "", "Dashboard title")
}
