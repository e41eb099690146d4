package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"faultline.dev/pkg/faultline/internal/adapter"
	adaptermocks "faultline.dev/pkg/faultline/internal/adapter/mocks"
	m "faultline.dev/pkg/faultline/internal/model"
)

func writeModule(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/calc\n\ngo 1.22\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "calc.go"), []byte(absSource), 0o600))

	return root
}

func TestWorkspacePool(t *testing.T) {
	ctx := context.Background()
	fs := adapter.NewLocalSourceFSAdapter()

	t.Run("single worker uses the subject tree", func(t *testing.T) {
		root := writeModule(t)

		pool, err := NewWorkspacePool(ctx, fs, m.Path(root), 1)
		require.NoError(t, err)

		ws, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, m.Path(root), ws.Root)
		assert.False(t, ws.Copy)
		assert.Equal(t, m.Path(filepath.Join(root, "calc.go")), ws.Path(ctx, fs, "calc.go"))

		pool.Release(ws)
		require.NoError(t, pool.Close(ctx))

		_, err = os.Stat(root)
		assert.NoError(t, err)
	})

	t.Run("several workers get private copies", func(t *testing.T) {
		root := writeModule(t)

		pool, err := NewWorkspacePool(ctx, fs, m.Path(root), 2)
		require.NoError(t, err)

		a, err := pool.Acquire(ctx)
		require.NoError(t, err)

		b, err := pool.Acquire(ctx)
		require.NoError(t, err)

		assert.NotEqual(t, a.Root, b.Root)
		assert.True(t, a.Copy)

		content, err := os.ReadFile(filepath.Join(string(a.Root), "calc.go"))
		require.NoError(t, err)
		assert.Equal(t, absSource, string(content))

		blocked, cancel := context.WithCancel(ctx)
		cancel()

		_, err = pool.Acquire(blocked)
		require.ErrorIs(t, err, context.Canceled)

		pool.Release(a)
		pool.Release(b)
		require.NoError(t, pool.Close(ctx))

		_, err = os.Stat(string(a.Root))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("copy failure is an infrastructure error", func(t *testing.T) {
		mockFS := adaptermocks.NewMockSourceFSAdapter(t)
		mockFS.EXPECT().CreateTempDir(mock.Anything, mock.Anything).Return(m.Path("/tmp/ws-1"), nil).Once()
		mockFS.EXPECT().CopyDir(mock.Anything, m.Path("/src"), m.Path("/tmp/ws-1")).Return(errors.New("disk full")).Once()
		mockFS.EXPECT().RemoveAll(mock.Anything, m.Path("/tmp/ws-1")).Return(nil).Once()

		_, err := NewWorkspacePool(ctx, mockFS, "/src", 2)
		require.ErrorIs(t, err, m.ErrInfrastructure)
	})
}
