package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full deployment configuration for one run. It is built once
// at process start (YAML file plus environment overlay) and passed by
// reference into the deployer; nothing below the deployer reads ambient
// environment state.
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Connection ConnectionConfig `yaml:"connection"`
	Lakehouse  LakehouseConfig  `yaml:"lakehouse"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Auth       AuthConfig       `yaml:"auth"`
	Staging    StagingConfig    `yaml:"staging"`
	Poll       PollConfig       `yaml:"poll"`

	// WhatIf stages artifacts and applies substitutions but skips the
	// import and identifier-fetch steps.
	WhatIf bool `yaml:"what_if"`
}

// WorkspaceConfig describes the target workspace.
type WorkspaceConfig struct {
	// Name is the workspace display name, also used as its control-plane path.
	Name string `yaml:"name" validate:"required"`

	// Capacity is the capacity the workspace is assigned to on creation.
	Capacity string `yaml:"capacity"`

	// AdminUPNs lists identities granted the admin role on the workspace
	// and the connection. Blank entries are ignored.
	AdminUPNs []string `yaml:"admin_upns"`
}

// ConnectionConfig describes the tenant-level connection the data pipeline
// binds to.
type ConnectionConfig struct {
	Name string `yaml:"name" validate:"required"`

	// Parameters are passed verbatim as -P key=value pairs on creation,
	// e.g. connectionDetails.type=HttpServer.
	Parameters map[string]string `yaml:"parameters"`
}

// LakehouseConfig describes the storage item created inside the workspace.
type LakehouseConfig struct {
	Name          string `yaml:"name" validate:"required"`
	EnableSchemas bool   `yaml:"enable_schemas"`
}

// ArtifactsConfig locates the artifact source folders to deploy.
type ArtifactsConfig struct {
	// SrcRoot is the directory containing the artifact folders.
	SrcRoot string `yaml:"src_root" validate:"required"`

	// Pipeline, Notebook and SemanticModel are artifact folder names
	// under SrcRoot.
	Pipeline      string `yaml:"pipeline" validate:"required"`
	Notebook      string `yaml:"notebook" validate:"required"`
	SemanticModel string `yaml:"semantic_model" validate:"required"`

	// ReportsGlob selects report artifact folders under SrcRoot.
	ReportsGlob string `yaml:"reports_glob"`
}

// AuthConfig controls control-plane authentication. Credential material is
// never read from the YAML file; it comes from the process environment
// (FABRIC_CLIENT_ID, FABRIC_CLIENT_SECRET, FABRIC_TENANT_ID).
type AuthConfig struct {
	// SPN enables service-principal login before the run and logout after.
	SPN bool `yaml:"spn"`

	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	TenantID     string `yaml:"-"`
}

// StagingConfig controls where working copies of artifacts are materialized.
type StagingConfig struct {
	// Root is the directory staging copies are created under.
	Root string `yaml:"root"`

	// IgnorePatterns are glob patterns for files excluded from staging,
	// matched against base names. Defaults to ["*.abf"] to keep large
	// binary payloads out of imports.
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

// PollConfig bounds the wait for asynchronously populated remote properties,
// such as the lakehouse SQL endpoint.
type PollConfig struct {
	Attempts int      `yaml:"attempts" validate:"min=1"`
	Interval Duration `yaml:"interval"`
}

// Duration wraps time.Duration so YAML values like "30s" decode directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
