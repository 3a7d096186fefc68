package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	t.Run("ReserveRelease", func(t *testing.T) {
		tr := NewTracker(1000)
		require.NoError(t, tr.Reserve(400))
		require.NoError(t, tr.Reserve(600))
		assert.Equal(t, int64(1000), tr.Used())

		err := tr.Reserve(1)
		require.ErrorIs(t, err, ErrBudgetExceeded)
		assert.Equal(t, int64(1000), tr.Used(), "failed reservation must not be accounted")

		tr.Release(500)
		assert.Equal(t, int64(500), tr.Used())
		require.NoError(t, tr.Reserve(500))
	})

	t.Run("UnlimitedStillTracks", func(t *testing.T) {
		tr := NewTracker(0)
		require.NoError(t, tr.Reserve(1 << 40))
		assert.Equal(t, int64(1<<40), tr.Used())
	})

	t.Run("RegrowDelta", func(t *testing.T) {
		tr := NewTracker(100)
		require.NoError(t, tr.Reserve(60))
		require.NoError(t, tr.Regrow(60, 90))
		assert.Equal(t, int64(90), tr.Used())

		require.ErrorIs(t, tr.Regrow(90, 120), ErrBudgetExceeded)
		assert.Equal(t, int64(90), tr.Used())

		require.NoError(t, tr.Regrow(90, 30))
		assert.Equal(t, int64(30), tr.Used())
	})

	t.Run("ReleaseClamps", func(t *testing.T) {
		tr := NewTracker(0)
		require.NoError(t, tr.Reserve(10))
		tr.Release(100)
		assert.Equal(t, int64(0), tr.Used())
	})

	t.Run("PairedCycleReturnsToBaseline", func(t *testing.T) {
		tr := NewTracker(0)
		require.NoError(t, tr.Reserve(128))
		baseline := tr.Used()

		require.NoError(t, tr.Reserve(64))
		tr.Release(64)
		assert.Equal(t, baseline, tr.Used())
	})
}
