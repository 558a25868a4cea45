package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabdeploy/fabdeploy/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the deployment configuration",
		Long: `Load and validate the deployment config without any remote calls.

Exits nonzero when required fields are missing or credentials are not set
for the configured auth mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			fmt.Printf("Config OK: workspace=%s lakehouse=%s connection=%s\n",
				cfg.Workspace.Name, cfg.Lakehouse.Name, cfg.Connection.Name)
			fmt.Printf("Artifacts: src_root=%s pipeline=%s notebook=%s semantic_model=%s reports=%s\n",
				cfg.Artifacts.SrcRoot, cfg.Artifacts.Pipeline, cfg.Artifacts.Notebook,
				cfg.Artifacts.SemanticModel, cfg.Artifacts.ReportsGlob)

			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fabdeploy.yaml", "deployment config file")

	return cmd
}
