package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"faultline.dev/pkg/faultline/internal/adapter"
	m "faultline.dev/pkg/faultline/internal/model"
)

// Workspace is a module tree a worker may instrument and build.
type Workspace struct {
	Root m.Path
	// Copy is true for private copies that are removed when the pool closes.
	Copy bool
}

// Path maps a path relative to the module root into the workspace.
func (w Workspace) Path(ctx context.Context, fs adapter.SourceFSAdapter, rel m.Path) m.Path {
	return fs.JoinPath(ctx, string(w.Root), string(rel))
}

// WorkspacePool hands out workspaces. With one worker the subject tree itself
// is used; with more, every worker gets a private copy of the module.
type WorkspacePool struct {
	fs     adapter.SourceFSAdapter
	free   chan Workspace
	copies []Workspace
}

// NewWorkspacePool prepares size workspaces for the module at root.
func NewWorkspacePool(ctx context.Context, fs adapter.SourceFSAdapter, root m.Path, size int) (*WorkspacePool, error) {
	if size < 1 {
		size = 1
	}

	pool := &WorkspacePool{fs: fs, free: make(chan Workspace, size)}

	if size == 1 {
		pool.free <- Workspace{Root: root}
		return pool, nil
	}

	for i := 0; i < size; i++ {
		ws, err := pool.prepare(ctx, root)
		if err != nil {
			_ = pool.Close(ctx)
			return nil, err
		}

		pool.copies = append(pool.copies, ws)
		pool.free <- ws
	}

	return pool, nil
}

func (p *WorkspacePool) prepare(ctx context.Context, root m.Path) (Workspace, error) {
	tmpDir, err := p.fs.CreateTempDir(ctx, "faultline-workspace-*")
	if err != nil {
		slog.Error("Failed to create temp dir", "error", err)
		return Workspace{}, fmt.Errorf("%w: create workspace: %v", m.ErrInfrastructure, err)
	}

	if err := p.fs.CopyDir(ctx, root, tmpDir); err != nil {
		slog.Error("Failed to copy project to temp dir", "projectRoot", root, "tmpDir", tmpDir, "error", err)
		_ = p.fs.RemoveAll(ctx, tmpDir)

		return Workspace{}, fmt.Errorf("%w: copy project: %v", m.ErrInfrastructure, err)
	}

	return Workspace{Root: tmpDir, Copy: true}, nil
}

// Acquire takes a free workspace, blocking until one is available.
func (p *WorkspacePool) Acquire(ctx context.Context) (Workspace, error) {
	select {
	case ws := <-p.free:
		return ws, nil
	case <-ctx.Done():
		return Workspace{}, ctx.Err()
	}
}

// Release returns a workspace to the pool.
func (p *WorkspacePool) Release(ws Workspace) {
	p.free <- ws
}

// Close removes every private copy.
func (p *WorkspacePool) Close(ctx context.Context) error {
	var errs []error

	for _, ws := range p.copies {
		if err := p.fs.RemoveAll(ctx, ws.Root); err != nil {
			slog.Error("Failed to cleanup temp dir", "tmpDir", ws.Root, "error", err)
			errs = append(errs, err)
		}
	}

	p.copies = nil

	return errors.Join(errs...)
}
