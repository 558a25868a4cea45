// Package staging materializes disposable working copies of artifact
// folders, rewrites their content through ordered substitution rules, and
// resolves artifact identity from the .platform sidecar manifest.
package staging

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

// Options control how an artifact is staged.
type Options struct {
	// Root is the directory staging copies are created under.
	Root string

	// IgnorePatterns are glob patterns matched against file base names;
	// matching files are excluded from the copy (e.g. "*.abf").
	IgnorePatterns []string
}

// Stage creates a working copy of srcPath under the staging root, keyed by
// the artifact's base name. Any previous copy for the same name is removed
// first: staging is destructive and idempotent, never additive. Filesystem
// errors propagate unresolved and are fatal to the deployment step.
func Stage(srcPath string, opts Options) (string, error) {
	ignores := make([]glob.Glob, 0, len(opts.IgnorePatterns))
	for _, p := range opts.IgnorePatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return "", fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		ignores = append(ignores, g)
	}

	dest := filepath.Join(opts.Root, filepath.Base(srcPath))
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("removing stale staging dir %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("creating staging dir %s: %w", dest, err)
	}

	err := filepath.WalkDir(srcPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcPath, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		for _, g := range ignores {
			if g.Match(d.Name()) {
				log.Debug().Str("file", rel).Msg("excluded from staging")
				return nil
			}
		}
		return copyFile(path, target)
	})
	if err != nil {
		return "", fmt.Errorf("staging %s: %w", srcPath, err)
	}

	log.Debug().Str("src", srcPath).Str("staging", dest).Msg("staged artifact")
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
