// Command mudctl is the operator CLI: it can run the server in-process,
// lint a content pack without binding a socket, or print a fresh signing
// key.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ehrlich-b/mudcore/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "mudctl",
		Short: "mudcore operator CLI",
	}
	root.AddCommand(serveCmd(), checkCmd(), keygenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves $MUD_HOME and loads its config.yaml, same as
// mudserver's default.
func loadConfig(configPath string) (config.Config, error) {
	home, err := config.DefaultHomeDir()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve home dir: %w", err)
	}
	if err := config.EnsureDir(home); err != nil {
		return config.Config{}, fmt.Errorf("create home dir: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(home, "config.yaml")
	}
	return config.Load(configPath, home)
}
