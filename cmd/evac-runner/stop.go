package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riverwatch/evacroute/pkg/emergency"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Args:  cobra.NoArgs,
	Short: "Stop a running evac-runner via the stop file",
	Long:  `Creates the configured stop file; a running service detects it within a second and pauses its tick loop.`,
	RunE:  stopService,
}

func stopService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctrl := emergency.New(emergency.Config{StopFile: cfg.Emergency.StopFile})
	if err := ctrl.CreateStopFile(); err != nil {
		return err
	}

	fmt.Printf("Stop file created: %s\n", ctrl.StopFilePath())
	return nil
}
