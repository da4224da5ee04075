package pusher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pigeon/internal/export"
)

// Target receives rendered artifacts.
type Target interface {
	Name() string
	Initialize(ctx context.Context) error
	Push(ctx context.Context, artifact *export.Artifact) error
	Shutdown(ctx context.Context) error
}

// LocalTarget writes artifacts below a working directory. Files are written
// to a temporary name and renamed, so readers never see partial content.
type LocalTarget struct {
	root   string
	logger *slog.Logger
}

var _ Target = (*LocalTarget)(nil)

func NewLocalTarget(root string, logger *slog.Logger) *LocalTarget {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalTarget{root: root, logger: logger.With("target", "local")}
}

func (t *LocalTarget) Name() string {
	return "local:" + t.root
}

func (t *LocalTarget) Root() string {
	return t.root
}

func (t *LocalTarget) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(t.root, 0o755); err != nil {
		return fmt.Errorf("local target: create %s: %w", t.root, err)
	}
	return nil
}

func (t *LocalTarget) Push(ctx context.Context, artifact *export.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel := filepath.FromSlash(artifact.Path())
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("local target: refusing to write outside %s: %q", t.root, artifact.Path())
	}

	dest := filepath.Join(t.root, rel)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("local target: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".pigeon-*")
	if err != nil {
		return fmt.Errorf("local target: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(artifact.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("local target: write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local target: close %s: %w", dest, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local target: chmod %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local target: rename to %s: %w", dest, err)
	}

	t.logger.Debug("Local target wrote artifact", "path", dest, "bytes", len(artifact.Content))
	return nil
}

func (t *LocalTarget) Shutdown(ctx context.Context) error {
	return nil
}
