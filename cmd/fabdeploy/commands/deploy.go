package commands

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fabdeploy/fabdeploy/pkg/config"
	"github.com/fabdeploy/fabdeploy/pkg/deploy"
	"github.com/fabdeploy/fabdeploy/pkg/fab"
)

func newDeployCommand() *cobra.Command {
	var (
		configPath string
		workspace  string
		capacity   string
		adminUPNs  string
		whatIf     bool
		spnAuth    bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision the workspace and deploy all artifacts",
		Long: `Run a full provisioning pass.

This command:
  - Authenticates (service principal by default)
  - Creates the connection and workspace if they do not exist
  - Creates the lakehouse and waits for its SQL endpoint
  - Stages each artifact, rewrites embedded identifiers and imports it
  - Grants admin access to the configured identities`,
		Example: `  # Deploy using fabdeploy.yaml in the current directory
  fabdeploy deploy

  # Deploy to a different workspace without remote changes
  fabdeploy deploy --workspace SalesSense-Test --what-if`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if workspace != "" {
				cfg.Workspace.Name = workspace
			}
			if capacity != "" {
				cfg.Workspace.Capacity = capacity
			}
			if adminUPNs != "" {
				cfg.Workspace.AdminUPNs = strings.Split(adminUPNs, ",")
			}
			if cmd.Flags().Changed("what-if") {
				cfg.WhatIf = whatIf
			}
			if cmd.Flags().Changed("spn-auth") {
				cfg.Auth.SPN = spnAuth
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log.Info().
				Str("workspace", cfg.Workspace.Name).
				Bool("what_if", cfg.WhatIf).
				Msg("Starting deployment")

			return deploy.New(cfg, &fab.Client{}).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fabdeploy.yaml", "deployment config file")
	cmd.Flags().StringVar(&workspace, "workspace", "", "override target workspace name")
	cmd.Flags().StringVar(&capacity, "capacity", "", "override capacity name")
	cmd.Flags().StringVar(&adminUPNs, "admin-upns", "", "comma-separated admin identities")
	cmd.Flags().BoolVar(&whatIf, "what-if", false, "stage and substitute without importing")
	cmd.Flags().BoolVar(&spnAuth, "spn-auth", true, "authenticate with a service principal")

	return cmd
}
