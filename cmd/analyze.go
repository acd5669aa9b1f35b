package main

import (
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze-once",
	Short: "Analyse every job opening currently in analysis, then exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		scheduler, err := a.scheduler(cmd.Context())
		if err != nil {
			return err
		}
		return scheduler.RunCycle(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
