package pkg

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSpill(t *testing.T) {
	t.Run("NewFileSpill creates the file in dir", func(t *testing.T) {
		dir := t.TempDir()

		spill, err := NewFileSpill[int](dir, "outcomes")
		require.NoError(t, err)
		defer spill.Remove()

		assert.True(t, strings.HasPrefix(spill.Path(), dir))
		assert.Contains(t, spill.Path(), "outcomes-")
		assert.Equal(t, uint64(0), spill.Len())
	})

	t.Run("Append and Get", func(t *testing.T) {
		spill, err := NewFileSpill[string](t.TempDir(), "")
		require.NoError(t, err)
		defer spill.Remove()

		require.NoError(t, spill.Append("first"))
		require.NoError(t, spill.Append("second"))

		val, err := spill.Get(0)
		require.NoError(t, err)
		assert.Equal(t, "first", val)

		val, err = spill.Get(1)
		require.NoError(t, err)
		assert.Equal(t, "second", val)

		val, err = spill.Get(2)
		require.Error(t, err)
		assert.Equal(t, "", val)
	})

	t.Run("Range keeps append order", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir(), "")
		require.NoError(t, err)
		defer spill.Remove()

		appendAll(t, spill, 10, 20, 30, 40)
		require.Equal(t, uint64(4), spill.Len())

		var got []int
		require.NoError(t, spill.Range(func(_ uint64, item int) error {
			got = append(got, item)
			return nil
		}))

		assert.Equal(t, []int{10, 20, 30, 40}, got)
	})

	t.Run("Range callback error stops iteration", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir(), "")
		require.NoError(t, err)
		defer spill.Remove()

		appendAll(t, spill, 1, 2, 3, 4)

		stop := errors.New("stop")
		visited := 0

		err = spill.Range(func(index uint64, _ int) error {
			visited++
			if index == 1 {
				return stop
			}

			return nil
		})

		require.ErrorIs(t, err, stop)
		assert.Equal(t, 2, visited)
	})

	t.Run("items stay readable after Close", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir(), "")
		require.NoError(t, err)
		defer spill.Remove()

		require.NoError(t, spill.Append(7))
		require.NoError(t, spill.Close())
		require.NoError(t, spill.Close())

		val, err := spill.Get(0)
		require.NoError(t, err)
		assert.Equal(t, 7, val)

		assert.Error(t, spill.Append(8))
	})

	t.Run("Remove deletes the backing file", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir(), "")
		require.NoError(t, err)

		require.NoError(t, spill.Append(1))
		require.NoError(t, spill.Remove())

		_, err = os.Stat(spill.Path())
		assert.True(t, os.IsNotExist(err))
		assert.NoError(t, spill.Remove())
	})

	t.Run("structs with slices round trip", func(t *testing.T) {
		type outcome struct {
			File     string
			Line     int
			Accepted []string
		}

		spill, err := NewFileSpill[outcome](t.TempDir(), "")
		require.NoError(t, err)
		defer spill.Remove()

		in := []outcome{
			{File: "calc.go", Line: 12, Accepted: []string{"x > 0", "!(x > 0)"}},
			{File: "calc.go", Line: 20},
		}
		appendAll(t, spill, in...)

		got, err := spill.Get(0)
		require.NoError(t, err)
		assert.Equal(t, in[0], got)

		got, err = spill.Get(1)
		require.NoError(t, err)
		assert.Equal(t, in[1].File, got.File)
		assert.Empty(t, got.Accepted)
	})
}

func appendAll[T any](t *testing.T, spill FileSpill[T], items ...T) {
	t.Helper()

	for _, item := range items {
		require.NoError(t, spill.Append(item))
	}
}

func TestFileSpill_EmptyRange(t *testing.T) {
	spill, err := NewFileSpill[int](t.TempDir(), "")
	require.NoError(t, err)
	defer spill.Remove()

	calls := 0
	require.NoError(t, spill.Range(func(uint64, int) error {
		calls++
		return nil
	}))

	assert.Zero(t, calls)

	_, err = spill.Get(0)
	assert.Error(t, err)
}
