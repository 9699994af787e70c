package world

import (
	"errors"
	"fmt"
)

// ErrCorruptChunkData возвращается для повреждённого потока RLE
var ErrCorruptChunkData = errors.New("corrupt chunk data")

// максимальная длина одной серии
const maxRun = 256

// GetChunkData кодирует содержимое чанка сериями (runLength-1, lo, hi).
// Одинаковое содержимое всегда даёт одинаковые байты.
func (c *Chunk) GetChunkData() []byte {
	out := make([]byte, 0, 3*(ChunkVolume/maxRun))

	for i := 0; i < ChunkVolume; {
		v := c.at(i)
		run := 1
		for run < maxRun && i+run < ChunkVolume && c.at(i+run) == v {
			run++
		}
		out = append(out, byte(run-1), byte(v), byte(v>>8))
		i += run
	}

	return out
}

// PasteChunkData заменяет содержимое чанка декодированным потоком.
// Хеш пересчитывается с нуля. При ошибке чанк не изменяется.
func (c *Chunk) PasteChunkData(b []byte) error {
	if len(b)%3 != 0 {
		return fmt.Errorf("%w: truncated run header (%d bytes)", ErrCorruptChunkData, len(b))
	}

	total := 0
	nonZero := false
	for off := 0; off < len(b); off += 3 {
		if total >= ChunkVolume {
			return fmt.Errorf("%w: %d trailing bytes", ErrCorruptChunkData, len(b)-off)
		}
		total += int(b[off]) + 1
		if b[off+1] != 0 || b[off+2] != 0 {
			nonZero = true
		}
	}
	if total != ChunkVolume {
		return fmt.Errorf("%w: decoded %d cells, want %d", ErrCorruptChunkData, total, ChunkVolume)
	}

	if !nonZero {
		c.data = nil
		c.hash = 0
		c.version++
		return nil
	}

	data := make([]uint16, ChunkVolume)
	i := 0
	for off := 0; off < len(b); off += 3 {
		run := int(b[off]) + 1
		v := uint16(b[off+1]) | uint16(b[off+2])<<8
		for j := 0; j < run; j++ {
			data[i+j] = v
		}
		i += run
	}

	c.data = data
	c.hash = c.ComputeHash()
	c.version++
	return nil
}
