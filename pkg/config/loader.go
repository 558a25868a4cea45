// Package config loads and validates the deployment configuration: a YAML
// file describing the target workspace and artifacts, overlaid with
// credential material and defaults from the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consumed during config load.
const (
	EnvClientID     = "FABRIC_CLIENT_ID"
	EnvClientSecret = "FABRIC_CLIENT_SECRET"
	EnvTenantID     = "FABRIC_TENANT_ID"
	EnvCapacity     = "FABRIC_CAPACITY"
	EnvAdminUPNs    = "FABRIC_ADMIN_UPNS"
)

var validate = validator.New()

// Load reads the YAML config at path, applies defaults and the environment
// overlay, and returns the result. A .env file in the working directory is
// honored when present. Load does not validate; call Validate once any CLI
// flag overrides have been applied.
func Load(path string) (*Config, error) {
	// .env is a development convenience and entirely optional.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.overlayEnv()

	return &cfg, nil
}

// Validate checks structural validity and that credentials are present when
// service-principal auth is enabled.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid deployment config: %w", err)
	}

	if c.Auth.SPN {
		if c.Auth.ClientID == "" || c.Auth.ClientSecret == "" || c.Auth.TenantID == "" {
			return errors.New(EnvClientID + ", " + EnvClientSecret + " and " + EnvTenantID +
				" must be set for service principal auth")
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Staging.Root == "" {
		c.Staging.Root = "_stg"
	}
	if len(c.Staging.IgnorePatterns) == 0 {
		c.Staging.IgnorePatterns = []string{"*.abf"}
	}
	if c.Artifacts.ReportsGlob == "" {
		c.Artifacts.ReportsGlob = "*.Report"
	}
	if c.Poll.Attempts == 0 {
		c.Poll.Attempts = 3
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = Duration(30 * time.Second)
	}
}

func (c *Config) overlayEnv() {
	c.Auth.ClientID = os.Getenv(EnvClientID)
	c.Auth.ClientSecret = os.Getenv(EnvClientSecret)
	c.Auth.TenantID = os.Getenv(EnvTenantID)

	if c.Workspace.Capacity == "" {
		c.Workspace.Capacity = os.Getenv(EnvCapacity)
	}
	if len(c.Workspace.AdminUPNs) == 0 {
		if upns := os.Getenv(EnvAdminUPNs); upns != "" {
			c.Workspace.AdminUPNs = splitList(upns)
		}
	}
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
