package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/quarrylabs/regimeguard/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect protection configuration",
	}

	var path string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective protection configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProtectionConfig(path)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
	showCmd.Flags().StringVar(&path, "config", config.DefaultPath(), "Protection config YAML path")

	cmd.AddCommand(showCmd)
	return cmd
}
