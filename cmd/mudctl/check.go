package main

import (
	"fmt"

	"github.com/ehrlich-b/mudcore/internal/server"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the content manifest and report authoring errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			_, loader, err := server.LoadWorld(cfg)
			if err != nil {
				return fmt.Errorf("content failed to load: %w", err)
			}
			fmt.Printf("loaded %d location(s) from %s\n", len(loader.Locations), cfg.ContentRoot)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	return cmd
}
