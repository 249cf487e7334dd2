package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/dobby/internal/banner"
	"github.com/alekspetrov/dobby/internal/health"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check which features the configuration enables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			report := health.RunChecks(cfg)
			banner.StartupWithHealth(cmd.OutOrStdout(), version, "", report)
			if !report.Healthy() {
				return errors.New("configuration has errors")
			}
			return nil
		},
	}
}
