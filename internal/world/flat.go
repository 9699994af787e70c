package world

import "github.com/annel0/blockverse/internal/world/block"

// FlatGenerator заполняет всё ниже Height одним блоком
type FlatGenerator struct {
	Height int64
	Block  uint16
}

// NewFlatGenerator создаёт плоский генератор с травой на уровне height-1
func NewFlatGenerator(height int64) *FlatGenerator {
	return &FlatGenerator{Height: height, Block: block.GrassBlockID}
}

// Generate заполняет слои чанка
func (g *FlatGenerator) Generate(c *Chunk) {
	base := c.Pos.Y << ChunkBits
	for ly := 0; ly < ChunkSize; ly++ {
		if base+int64(ly) >= g.Height {
			break
		}
		c.Fill(ly, g.Block)
	}
	c.MarkCreated()
}

// MaxHeight возвращает высоту поверхности
func (g *FlatGenerator) MaxHeight() int64 {
	return g.Height
}
