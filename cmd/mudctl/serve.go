package main

import (
	"fmt"

	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the world server in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := logx.Init(cfg.LogLevel, cfg.LogFile); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			return server.RunUntilInterrupt(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	return cmd
}
