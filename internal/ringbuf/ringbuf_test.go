package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_PushAndRecent(t *testing.T) {
	h := New[int](10, 5)
	for i := 1; i <= 3; i++ {
		h.Push(i)
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []int{3, 2, 1}, h.Recent(10))
	assert.Equal(t, []int{3, 2}, h.Recent(2))
	assert.Nil(t, h.Recent(0))
}

func TestHistory_TrimsToKeep(t *testing.T) {
	h := New[int](1000, 500)
	for i := 0; i < 1000; i++ {
		h.Push(i)
	}
	require.Equal(t, 1000, h.Len(), "at capacity, no trim yet")

	h.Push(1000)
	assert.Equal(t, 500, h.Len())
	assert.Equal(t, uint64(501), h.Trimmed())

	recent := h.Recent(500)
	assert.Equal(t, 1000, recent[0], "newest kept")
	assert.Equal(t, 501, recent[499], "oldest kept")
}

func TestHistory_RepeatedTrim(t *testing.T) {
	h := New[int](4, 2)
	for i := 0; i < 20; i++ {
		h.Push(i)
		assert.LessOrEqual(t, h.Len(), 4)
	}
	assert.Equal(t, 19, h.Recent(1)[0])
}

func TestHistory_ClampsKeep(t *testing.T) {
	h := New[string](3, 0)
	for _, s := range []string{"a", "b", "c", "d"} {
		h.Push(s)
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"d", "c", "b"}, h.Recent(5))
	assert.Equal(t, 3, h.Cap())
}
