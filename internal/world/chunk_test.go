package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/block"
)

func TestChunkGetSet(t *testing.T) {
	c := NewChunk(vec.Vec3{X: 1, Y: -2, Z: 3})

	assert.False(t, c.IsAllocated())
	assert.Equal(t, uint16(0), c.Get(3, 4, 5))

	c.Set(3, 4, 5, block.StoneBlockID)
	assert.True(t, c.IsAllocated())
	assert.Equal(t, block.StoneBlockID, c.Get(3, 4, 5))
	assert.Equal(t, uint16(0), c.Get(4, 4, 5))
}

func TestChunkEmptyWriteKeepsUnallocated(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	c.Set(0, 0, 0, 0)

	assert.False(t, c.IsAllocated())
	assert.Equal(t, uint64(0), c.ContentHash())
	assert.Equal(t, uint64(0), c.Version())
}

func TestChunkHashIncremental(t *testing.T) {
	c := NewChunk(vec.Vec3{})

	c.Set(0, 0, 0, 5)
	assert.Equal(t, HashTerm(0, 5), c.ContentHash())

	c.Set(1, 0, 0, 7)
	c.Set(31, 31, 31, 9)
	c.Set(0, 0, 0, 2)
	assert.Equal(t, c.ComputeHash(), c.ContentHash())

	c.Set(1, 0, 0, 0)
	c.Set(31, 31, 31, 0)
	c.Set(0, 0, 0, 0)
	assert.Equal(t, uint64(0), c.ContentHash())
}

func TestChunkIdempotentWrite(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	c.Set(2, 2, 2, 3)
	hash, version := c.ContentHash(), c.Version()

	c.Set(2, 2, 2, 3)
	assert.Equal(t, hash, c.ContentHash())
	assert.Equal(t, version, c.Version())
}

func TestChunkOutOfRangePanics(t *testing.T) {
	c := NewChunk(vec.Vec3{})

	for _, p := range [][3]int{{-1, 0, 0}, {32, 0, 0}, {0, 32, 0}, {0, 0, -5}} {
		assert.PanicsWithValue(t, OutOfRangeError{X: p[0], Y: p[1], Z: p[2]}, func() {
			c.Get(p[0], p[1], p[2])
		})
		assert.Panics(t, func() { c.Set(p[0], p[1], p[2], 1) })
	}
}

func TestChunkDataEmpty(t *testing.T) {
	data := NewChunk(vec.Vec3{}).GetChunkData()

	require.Len(t, data, 128*3)
	for i := 0; i < len(data); i += 3 {
		assert.Equal(t, []byte{255, 0, 0}, data[i:i+3])
	}
}

func TestChunkDataUniform(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	for y := 0; y < ChunkSize; y++ {
		c.Fill(y, 7)
	}

	data := c.GetChunkData()
	require.Len(t, data, 128*3)
	for i := 0; i < len(data); i += 3 {
		assert.Equal(t, []byte{255, 7, 0}, data[i:i+3])
	}
}

func TestChunkDataRoundTrip(t *testing.T) {
	src := NewChunk(vec.Vec3{})
	src.Set(0, 0, 0, 1)
	src.Set(5, 6, 7, 0x1234)
	src.Set(31, 31, 31, block.BedrockBlockID)
	for x := 0; x < ChunkSize; x++ {
		src.Set(x, 10, 10, block.DirtBlockID)
	}

	dst := NewChunk(vec.Vec3{})
	require.NoError(t, dst.PasteChunkData(src.GetChunkData()))

	assert.Equal(t, src.ContentHash(), dst.ContentHash())
	assert.Equal(t, dst.ComputeHash(), dst.ContentHash())
	assert.Equal(t, uint16(0x1234), dst.Get(5, 6, 7))
	assert.Equal(t, block.BedrockBlockID, dst.Get(31, 31, 31))
	assert.Equal(t, src.GetChunkData(), dst.GetChunkData())
}

func TestChunkPasteAllZeroReleases(t *testing.T) {
	c := NewChunk(vec.Vec3{})
	c.Set(1, 1, 1, 4)

	require.NoError(t, c.PasteChunkData(NewChunk(vec.Vec3{}).GetChunkData()))
	assert.False(t, c.IsAllocated())
	assert.Equal(t, uint64(0), c.ContentHash())
}

func TestChunkPasteCorrupt(t *testing.T) {
	valid := NewChunk(vec.Vec3{}).GetChunkData()

	cases := map[string][]byte{
		"length not multiple of 3": valid[:len(valid)-1],
		"too few cells":            valid[:len(valid)-3],
		"trailing bytes":           append(append([]byte{}, valid...), 0, 1, 0),
		"empty":                    {},
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewChunk(vec.Vec3{})
			c.Set(0, 0, 0, 3)

			err := c.PasteChunkData(data)
			assert.ErrorIs(t, err, ErrCorruptChunkData)
			assert.Equal(t, uint16(3), c.Get(0, 0, 0), "чанк не должен меняться при ошибке")
		})
	}
}
