package fab

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// WorkspacePath returns the control-plane path of a workspace.
func WorkspacePath(workspace string) string {
	return "/" + workspace + ".Workspace"
}

// ConnectionPath returns the control-plane path of a tenant-level connection.
func ConnectionPath(name string) string {
	return ".connections/" + name + ".Connection"
}

// ItemPath returns the control-plane path of an item inside a workspace.
func ItemPath(workspace, name, itemType string) string {
	return fmt.Sprintf("/%s.Workspace/%s.%s", workspace, name, itemType)
}

// formatParams renders creation parameters as the -P key=value,... suffix.
// Keys are sorted so the command string is reproducible.
func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return " -P " + strings.Join(pairs, ",")
}

// Create issues a best-effort create. Failing because the resource already
// exists is expected; the caller fetches the canonical identifier by name
// afterwards regardless of whether this run created it.
func (c *Client) Create(ctx context.Context, path string, params map[string]string) error {
	_, err := c.Run(ctx, "create "+path+formatParams(params), CallOptions{SilentlyContinue: true})
	return err
}

// GetProperty queries a single property of a resource. An unresolved or
// failed query yields an empty string, not an error, so callers can poll.
func (c *Client) GetProperty(ctx context.Context, path, query string) (string, error) {
	return c.Run(ctx, fmt.Sprintf("get %s -q %s", path, query), CallOptions{CaptureOutput: true})
}

// Import uploads a staged artifact directory into the given item path.
func (c *Client) Import(ctx context.Context, path, stagingDir string) error {
	_, err := c.Run(ctx, fmt.Sprintf("import -f %s -i %s", path, stagingDir), CallOptions{MustSucceed: true})
	return err
}

// GrantAdmin assigns the admin role on a resource to one identity. Failures
// surface as errors; the deployer decides whether they abort the run.
func (c *Client) GrantAdmin(ctx context.Context, path, identity string) error {
	_, err := c.Run(ctx, fmt.Sprintf("acl set -f %s -I %s -R admin", path, identity), CallOptions{MustSucceed: true})
	return err
}

// AuthStatus reports the current authentication state. Output is purely
// informational and failures are tolerated.
func (c *Client) AuthStatus(ctx context.Context) error {
	_, err := c.Run(ctx, "auth status", CallOptions{})
	return err
}

// AuthLoginSPN authenticates with a service principal. The login command
// embeds the client secret, so its text is withheld from log echoing.
func (c *Client) AuthLoginSPN(ctx context.Context, clientID, clientSecret, tenantID string) error {
	if _, err := c.Run(ctx, "config set encryption_fallback_enabled true", CallOptions{}); err != nil {
		return err
	}
	command := fmt.Sprintf("auth login -u %s -p %s --tenant %s", clientID, clientSecret, tenantID)
	_, err := c.Run(ctx, command, CallOptions{IncludeSecrets: true, MustSucceed: true})
	return err
}

// AuthLogout ends the current session.
func (c *Client) AuthLogout(ctx context.Context) error {
	_, err := c.Run(ctx, "auth logout", CallOptions{})
	return err
}

// Open opens a resource in the web UI as a convenience at the end of a run.
func (c *Client) Open(ctx context.Context, path string) error {
	_, err := c.Run(ctx, "open "+path, CallOptions{})
	return err
}
