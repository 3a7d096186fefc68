package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitSet(t *testing.T) {
	t.Run("SetClearTest", func(t *testing.T) {
		b := New(20)
		assert.False(t, b.Test(3))

		b.Set(3)
		b.Set(8)
		b.Set(19)
		assert.True(t, b.Test(3))
		assert.True(t, b.Test(8))
		assert.True(t, b.Test(19))
		assert.Equal(t, 3, b.Count())

		b.Clear(8)
		assert.False(t, b.Test(8))
		assert.Equal(t, 2, b.Count())
	})

	t.Run("OutOfRangeTest", func(t *testing.T) {
		b := New(8)
		assert.False(t, b.Test(1000))
	})

	t.Run("Resize", func(t *testing.T) {
		b := New(8)
		b.Set(5)
		b.Resize(128)
		assert.True(t, b.Test(5))
		assert.Equal(t, 16, b.Len())
	})

	t.Run("BytesLayout", func(t *testing.T) {
		// Bit i lives at byte i/8, position i%8 -- the on-disk layout.
		b := New(16)
		b.Set(0)
		b.Set(9)
		raw := b.Bytes(16)
		require.Len(t, raw, 2)
		assert.Equal(t, byte(0x01), raw[0])
		assert.Equal(t, byte(0x02), raw[1])
	})

	t.Run("ClearAll", func(t *testing.T) {
		b := New(64)
		for i := 0; i < 64; i += 3 {
			b.Set(i)
		}
		b.ClearAll()
		assert.Equal(t, 0, b.Count())
	})
}

func TestFastBitSet(t *testing.T) {
	t.Run("TestAndSet", func(t *testing.T) {
		b := NewFast(100)
		assert.False(t, b.TestAndSet(42))
		assert.True(t, b.TestAndSet(42))
		assert.True(t, b.Test(42))
	})

	t.Run("GrowOnDemand", func(t *testing.T) {
		b := NewFast(8)
		assert.False(t, b.TestAndSet(5000))
		assert.True(t, b.Test(5000))
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewFast(256)
		for i := 0; i < 256; i += 7 {
			b.TestAndSet(i)
		}
		b.Reset()
		for i := 0; i < 256; i++ {
			assert.False(t, b.Test(i))
		}
	})
}
