// Command mudserver is the world daemon: it loads content, binds the §6
// HTTP/WebSocket surface, and runs the tick loop until interrupted.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ehrlich-b/mudcore/internal/config"
	"github.com/ehrlich-b/mudcore/internal/logx"
	"github.com/ehrlich-b/mudcore/internal/server"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "mudserver",
		Short: "mudcore world server",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.DefaultHomeDir()
			if err != nil {
				return fmt.Errorf("resolve home dir: %w", err)
			}
			if err := config.EnsureDir(home); err != nil {
				return fmt.Errorf("create home dir: %w", err)
			}
			if configPath == "" {
				configPath = filepath.Join(home, "config.yaml")
			}
			cfg, err := config.Load(configPath, home)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logx.Init(cfg.LogLevel, cfg.LogFile); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			return server.RunUntilInterrupt(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config.yaml (default: $MUD_HOME/config.yaml)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
