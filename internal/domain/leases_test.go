package domain

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLeases(t *testing.T) {
	t.Run("acquire and release", func(t *testing.T) {
		leases := NewFileLeases()

		release, err := leases.Acquire(context.Background(), "calc.go")
		require.NoError(t, err)

		release()
		release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		again, err := leases.Acquire(ctx, "calc.go")
		require.NoError(t, err)
		again()
	})

	t.Run("second holder waits for the first", func(t *testing.T) {
		leases := NewFileLeases()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		release, err := leases.Acquire(context.Background(), "calc.go")
		require.NoError(t, err)
		defer release()

		_, err = leases.Acquire(ctx, "calc.go")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("different files do not block", func(t *testing.T) {
		leases := NewFileLeases()

		r1, err := leases.Acquire(context.Background(), "a.go")
		require.NoError(t, err)
		defer r1()

		r2, err := leases.Acquire(context.Background(), "b.go")
		require.NoError(t, err)
		defer r2()
	})

	t.Run("holders of one file never overlap", func(t *testing.T) {
		leases := NewFileLeases()

		var (
			wg      sync.WaitGroup
			holders atomic.Int32
			overlap atomic.Bool
		)

		for i := 0; i < 8; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				release, err := leases.Acquire(context.Background(), "calc.go")
				if err != nil {
					return
				}
				defer release()

				if holders.Add(1) > 1 {
					overlap.Store(true)
				}

				time.Sleep(time.Millisecond)
				holders.Add(-1)
			}()
		}

		wg.Wait()
		assert.False(t, overlap.Load())
	})
}
