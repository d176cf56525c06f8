package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var initForce bool

// starterConfig is what `leadflow init` writes. Values mirror the loader's
// defaults so a fresh config file documents every knob.
var starterConfig = map[string]any{
	"store": map[string]any{
		"driver":       "sqlite",
		"sqlite_path":  "leadflow.db",
		"database_url": "",
	},
	"cache": map[string]any{
		"ttl_days":            60,
		"sweep_interval_mins": 60,
	},
	"places": map[string]any{
		"token":       "",
		"max_results": 100,
	},
	"techdetect": map[string]any{
		"base_url": "http://localhost:8088",
	},
	"whois": map[string]any{
		"key": "",
	},
	"email": map[string]any{
		"key": "",
	},
	"search": map[string]any{
		"max_results": 100,
		"min_rating":  0.0,
	},
	"server": map[string]any{
		"port": 8080,
	},
	"log": map[string]any{
		"level":  "info",
		"format": "json",
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"

		if !initForce {
			if _, err := os.Stat(path); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}

		raw, err := yaml.Marshal(starterConfig)
		if err != nil {
			return eris.Wrap(err, "marshal starter config")
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return eris.Wrap(err, "write config file")
		}

		zap.L().Info("wrote starter config", zap.String("path", path))
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config.yaml")
	rootCmd.AddCommand(initCmd)
}
