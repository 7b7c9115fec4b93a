package kheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	h := New(16 * BlockSize)

	a, err := h.Alloc(BlockSize * 2)
	require.True(t, err.Ok())
	require.Len(t, a, BlockSize*2)

	freeB, usedB := h.Stats()
	assert.Equal(t, 2, usedB)
	assert.Equal(t, 14, freeB)

	h.Free(a)
	freeB, usedB = h.Stats()
	assert.Equal(t, 0, usedB)
	assert.Equal(t, 16, freeB)
}

func TestAllocExhaustion(t *testing.T) {
	h := New(4 * BlockSize)
	_, err := h.Alloc(BlockSize * 4)
	require.True(t, err.Ok())

	_, err = h.Alloc(1)
	assert.Equal(t, -12, err.Errno())
}

func TestFreeNonFirstPanics(t *testing.T) {
	h := New(4 * BlockSize)
	a, err := h.Alloc(BlockSize * 2)
	require.True(t, err.Ok())

	assert.Panics(t, func() {
		h.Free(a[BlockSize:])
	})
}
