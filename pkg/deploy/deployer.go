package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fabdeploy/fabdeploy/pkg/config"
	"github.com/fabdeploy/fabdeploy/pkg/fab"
	"github.com/fabdeploy/fabdeploy/pkg/staging"
)

// Gateway is the subset of the fab client the deployer drives. It is an
// interface so tests can record and script control-plane interactions.
type Gateway interface {
	Create(ctx context.Context, path string, params map[string]string) error
	GetProperty(ctx context.Context, path, query string) (string, error)
	Import(ctx context.Context, path, stagingDir string) error
	GrantAdmin(ctx context.Context, path, identity string) error
	AuthStatus(ctx context.Context) error
	AuthLoginSPN(ctx context.Context, clientID, clientSecret, tenantID string) error
	AuthLogout(ctx context.Context) error
	Open(ctx context.Context, path string) error
}

// sqlEndpointQuery resolves the lakehouse SQL endpoint, which the backend
// populates asynchronously after creation.
const sqlEndpointQuery = "properties.sqlEndpointProperties.connectionString"

// Deployer runs one sequential provisioning pass. Steps never overlap:
// every resource identifier a later artifact embeds is resolved before that
// artifact is staged.
type Deployer struct {
	cfg *config.Config
	gw  Gateway
	log zerolog.Logger
}

// New creates a Deployer for one run.
func New(cfg *config.Config, gw Gateway) *Deployer {
	return &Deployer{
		cfg: cfg,
		gw:  gw,
		log: log.With().Str("run_id", uuid.New().String()).Logger(),
	}
}

// Run provisions the workspace and deploys every configured artifact.
func (d *Deployer) Run(ctx context.Context) error {
	if err := d.gw.AuthStatus(ctx); err != nil {
		return err
	}
	if d.cfg.Auth.SPN {
		d.log.Info().Msg("authenticating with service principal")
		if err := d.gw.AuthLoginSPN(ctx, d.cfg.Auth.ClientID, d.cfg.Auth.ClientSecret, d.cfg.Auth.TenantID); err != nil {
			return err
		}
		if err := d.gw.AuthStatus(ctx); err != nil {
			return err
		}
	}

	connectionID, err := d.ensureConnection(ctx)
	if err != nil {
		return err
	}
	workspaceID, err := d.ensureWorkspace(ctx)
	if err != nil {
		return err
	}
	lakehouseID, err := d.ensureLakehouse(ctx)
	if err != nil {
		return err
	}

	if err := d.deployPipeline(ctx, workspaceID, lakehouseID, connectionID); err != nil {
		return err
	}
	if err := d.deployNotebook(ctx, workspaceID, lakehouseID); err != nil {
		return err
	}

	sqlEndpoint, err := d.resolveSQLEndpoint(ctx)
	if err != nil {
		return err
	}

	modelID, err := d.deploySemanticModel(ctx, sqlEndpoint)
	if err != nil {
		return err
	}
	if err := d.deployReports(ctx, modelID); err != nil {
		return err
	}

	if err := d.gw.Open(ctx, fab.WorkspacePath(d.cfg.Workspace.Name)); err != nil {
		return err
	}

	if d.cfg.Auth.SPN {
		if err := d.gw.AuthLogout(ctx); err != nil {
			return err
		}
	}

	d.log.Info().Str("workspace", d.cfg.Workspace.Name).Msg("deployment complete")
	return nil
}

// ensureConnection creates the connection if needed and resolves its id.
func (d *Deployer) ensureConnection(ctx context.Context) (string, error) {
	name := d.cfg.Connection.Name
	path := fab.ConnectionPath(name)

	d.log.Info().Str("connection", name).Msg("creating connection")
	if err := d.gw.Create(ctx, path, d.cfg.Connection.Parameters); err != nil {
		return "", err
	}

	id, err := d.gw.GetProperty(ctx, path, "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", NewFatalError("cannot resolve connection id", nil).WithResource(path)
	}

	d.grantAdmins(ctx, path)
	return id, nil
}

// ensureWorkspace creates the workspace if needed, grants admin access and
// resolves its id.
func (d *Deployer) ensureWorkspace(ctx context.Context) (string, error) {
	name := d.cfg.Workspace.Name
	path := fab.WorkspacePath(name)

	d.log.Info().Str("workspace", name).Msg("creating workspace")
	var params map[string]string
	if d.cfg.Workspace.Capacity != "" {
		params = map[string]string{"capacityName": d.cfg.Workspace.Capacity}
	}
	if err := d.gw.Create(ctx, path, params); err != nil {
		return "", err
	}

	d.grantAdmins(ctx, path)

	id, err := d.gw.GetProperty(ctx, path, "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", NewFatalError("cannot resolve workspace id", nil).WithResource(path)
	}
	return id, nil
}

// ensureLakehouse creates the lakehouse item and resolves its id.
func (d *Deployer) ensureLakehouse(ctx context.Context) (string, error) {
	path := fab.ItemPath(d.cfg.Workspace.Name, d.cfg.Lakehouse.Name, "Lakehouse")

	d.log.Info().Str("lakehouse", d.cfg.Lakehouse.Name).Msg("creating lakehouse")
	var params map[string]string
	if d.cfg.Lakehouse.EnableSchemas {
		params = map[string]string{"enableSchemas": "true"}
	}
	if err := d.gw.Create(ctx, path, params); err != nil {
		return "", err
	}

	id, err := d.gw.GetProperty(ctx, path, "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", NewFatalError("cannot resolve lakehouse id", nil).WithResource(path)
	}
	return id, nil
}

// grantAdmins assigns the admin role to each configured identity. Grant
// failures are warnings: one bad identity must not abort the remaining
// grants or the run.
func (d *Deployer) grantAdmins(ctx context.Context, path string) {
	for _, upn := range d.cfg.Workspace.AdminUPNs {
		upn = strings.TrimSpace(upn)
		if upn == "" {
			continue
		}
		if err := d.gw.GrantAdmin(ctx, path, upn); err != nil {
			d.log.Warn().Str("identity", upn).Str("resource", path).Err(err).
				Msg("admin grant failed, continuing")
		}
	}
}

func (d *Deployer) deployPipeline(ctx context.Context, workspaceID, lakehouseID, connectionID string) error {
	rules := []staging.Rule{
		{FilePattern: `pipeline-content\.json`, Find: `("workspaceId"\s*:\s*)".*"`, Replace: `${1}"` + workspaceID + `"`},
		{FilePattern: `pipeline-content\.json`, Find: `("artifactId"\s*:\s*)".*"`, Replace: `${1}"` + lakehouseID + `"`},
		{FilePattern: `pipeline-content\.json`, Find: `("connection"\s*:\s*)".*"`, Replace: `${1}"` + connectionID + `"`},
	}
	_, err := d.deployItem(ctx, filepath.Join(d.cfg.Artifacts.SrcRoot, d.cfg.Artifacts.Pipeline), rules)
	return err
}

func (d *Deployer) deployNotebook(ctx context.Context, workspaceID, lakehouseID string) error {
	known, err := json.Marshal([]map[string]string{{"id": lakehouseID}})
	if err != nil {
		return err
	}
	rules := []staging.Rule{
		{FilePattern: `notebook-content\.ipynb`, Find: `("default_lakehouse"\s*:\s*)".*"`, Replace: `${1}"` + lakehouseID + `"`},
		{FilePattern: `notebook-content\.ipynb`, Find: `("default_lakehouse_name"\s*:\s*)".*"`, Replace: `${1}"` + d.cfg.Lakehouse.Name + `"`},
		{FilePattern: `notebook-content\.ipynb`, Find: `("default_lakehouse_workspace_id"\s*:\s*)".*"`, Replace: `${1}"` + workspaceID + `"`},
		{FilePattern: `notebook-content\.ipynb`, Find: `("known_lakehouses"\s*:\s*)\[[\s\S]*?\]`, Replace: `${1}` + string(known)},
	}
	_, err = d.deployItem(ctx, filepath.Join(d.cfg.Artifacts.SrcRoot, d.cfg.Artifacts.Notebook), rules)
	return err
}

// resolveSQLEndpoint polls for the lakehouse SQL endpoint connection string.
// The endpoint is provisioned asynchronously; exhausting the poll budget is
// fatal because the semantic model cannot be deployed without it.
func (d *Deployer) resolveSQLEndpoint(ctx context.Context) (string, error) {
	path := fab.ItemPath(d.cfg.Workspace.Name, d.cfg.Lakehouse.Name, "Lakehouse")

	endpoint, err := Poll(ctx, d.cfg.Poll.Attempts, d.cfg.Poll.Interval.Duration(),
		func(ctx context.Context) (string, error) {
			return d.gw.GetProperty(ctx, path, sqlEndpointQuery)
		},
		func(v string) bool {
			// The CLI prints "None" for unset properties.
			return v != "" && v != "None"
		})
	if err != nil {
		return "", fmt.Errorf("cannot resolve SQL endpoint for lakehouse %s: %w", d.cfg.Lakehouse.Name, err)
	}
	return endpoint, nil
}

func (d *Deployer) deploySemanticModel(ctx context.Context, sqlEndpoint string) (string, error) {
	rules := []staging.Rule{
		{FilePattern: `expressions\.tmdl`, Find: `(expression\s+Server\s*=\s*)".*?"`, Replace: `${1}"` + sqlEndpoint + `"`},
	}
	return d.deployItem(ctx, filepath.Join(d.cfg.Artifacts.SrcRoot, d.cfg.Artifacts.SemanticModel), rules)
}

// deployReports discovers every report artifact under the source root and
// deploys each one bound to the semantic model.
func (d *Deployer) deployReports(ctx context.Context, modelID string) error {
	pattern := filepath.Join(d.cfg.Artifacts.SrcRoot, d.cfg.Artifacts.ReportsGlob)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("scanning reports with %q: %w", pattern, err)
	}
	sort.Strings(paths)

	binding, err := reportBinding(modelID)
	if err != nil {
		return err
	}

	for _, reportPath := range paths {
		rules := []staging.Rule{
			{FilePattern: `definition\.pbir`, Find: `\{[\s\S]*\}`, Replace: binding},
		}
		if _, err := d.deployItem(ctx, reportPath, rules); err != nil {
			return err
		}
	}
	return nil
}

// reportBinding builds the full definition.pbir document binding a report to
// the semantic model over a live service connection.
func reportBinding(modelID string) (string, error) {
	doc := map[string]any{
		"version": "4.0",
		"datasetReference": map[string]any{
			"byConnection": map[string]any{
				"connectionString":          nil,
				"pbiServiceModelId":         nil,
				"pbiModelVirtualServerName": "sobe_wowvirtualserver",
				"pbiModelDatabaseName":      modelID,
				"name":                      "EntityDataSource",
				"connectionType":            "pbiServiceXmlaStyleLive",
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// deployItem stages one artifact, applies its substitution rules, imports it
// and resolves the assigned identifier. In what-if mode the import and fetch
// are skipped and no identifier is returned.
func (d *Deployer) deployItem(ctx context.Context, srcPath string, rules []staging.Rule) (string, error) {
	d.log.Info().Str("src", srcPath).Msg("deploying artifact")

	stagingPath, err := staging.Stage(srcPath, staging.Options{
		Root:           d.cfg.Staging.Root,
		IgnorePatterns: d.cfg.Staging.IgnorePatterns,
	})
	if err != nil {
		return "", err
	}

	itemType, itemName, err := staging.ResolveIdentity(stagingPath, "", "")
	if err != nil {
		return "", err
	}

	reports, err := staging.Apply(stagingPath, rules)
	if err != nil {
		return "", err
	}
	for i, r := range reports {
		if r.Subs > 0 {
			d.log.Debug().Str("pattern", rules[i].Find).Int("files", r.Files).Int("subs", r.Subs).
				Msg("rule fired")
		}
	}

	if d.cfg.WhatIf {
		d.log.Info().Str("item", itemName).Str("type", itemType).Str("staging", stagingPath).
			Msg("what-if: import skipped")
		return "", nil
	}

	path := fab.ItemPath(d.cfg.Workspace.Name, itemName, itemType)
	if err := d.gw.Import(ctx, path, stagingPath); err != nil {
		return "", err
	}

	id, err := d.gw.GetProperty(ctx, path, "id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", NewFatalError("cannot resolve item id after import", nil).WithResource(path)
	}

	d.log.Info().Str("item", itemName).Str("type", itemType).Str("id", id).Msg("artifact deployed")
	return id, nil
}
