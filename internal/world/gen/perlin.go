// Package gen содержит генератор рельефа на основе шума Перлина.
package gen

import (
	"math/rand"

	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/block"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
	BiomeWater
)

// Константы высот рельефа (в долях шума)
const (
	WaterMax      = 0.30 // Ниже — водоём
	BeachMax      = 0.34 // Ниже — пляж
	MountainStart = 0.75 // Выше — горы
)

// PerlinGenerator генерирует ландшафт мира
type PerlinGenerator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	ForestDensity float64 // Плотность лесов (от 0 до 1)
	BaseHeight    int64   // Высота самой низкой точки рельефа
	Amplitude     int64   // Перепад высот
	SeaLevel      int64   // Уровень воды

	height *Noise
	biome  *Noise
}

// NewPerlinGenerator создаёт новый генератор мира
func NewPerlinGenerator(seed int64) *PerlinGenerator {
	g := &PerlinGenerator{
		Seed:          seed,
		NoiseScale:    0.01,
		BiomeScale:    0.004,
		ForestDensity: 0.02,
		BaseHeight:    0,
		Amplitude:     64,
		height:        NewNoise(seed),
		biome:         NewNoise(seed + 42),
	}
	g.SeaLevel = g.BaseHeight + int64(WaterMax*float64(g.Amplitude))
	return g
}

// MaxHeight возвращает верхнюю границу рельефа с учётом деревьев
func (g *PerlinGenerator) MaxHeight() int64 {
	return g.BaseHeight + g.Amplitude + 8
}

// HeightAt возвращает высоту первой свободной клетки над рельефом
func (g *PerlinGenerator) HeightAt(x, z int64) (int64, float64) {
	n := g.height.At(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	return g.BaseHeight + int64(n*float64(g.Amplitude)), n
}

// Generate заполняет чанк колоннами рельефа
func (g *PerlinGenerator) Generate(c *world.Chunk) {
	// Локальный генератор для детерминированности деревьев внутри чанка
	rng := rand.New(rand.NewSource(g.Seed + c.Pos.X*31 + c.Pos.Y*7 + c.Pos.Z*17))

	baseX := c.Pos.X << world.ChunkBits
	baseY := c.Pos.Y << world.ChunkBits
	baseZ := c.Pos.Z << world.ChunkBits

	for lz := 0; lz < world.ChunkSize; lz++ {
		for lx := 0; lx < world.ChunkSize; lx++ {
			x, z := baseX+int64(lx), baseZ+int64(lz)
			top, h := g.HeightAt(x, z)
			biome := g.biomeAt(x, z, h)

			for ly := 0; ly < world.ChunkSize; ly++ {
				y := baseY + int64(ly)
				c.Set(lx, ly, lz, g.blockAt(y, top, biome))
			}

			if biome == BiomeForest || biome == BiomePlains {
				density := g.ForestDensity
				if biome == BiomeForest {
					density *= 5
				}
				if rng.Float64() < density {
					g.placeTree(c, lx, lz, top-baseY)
				}
			}
		}
	}

	c.MarkCreated()
}

// blockAt выбирает блок для клетки колонны
func (g *PerlinGenerator) blockAt(y, top int64, biome BiomeType) uint16 {
	switch {
	case y >= top:
		if y < g.SeaLevel {
			return block.WaterBlockID
		}
		return block.AirBlockID
	case y < top-4:
		return block.StoneBlockID
	case biome == BiomeDesert || biome == BiomeWater:
		return block.SandBlockID
	case biome == BiomeMountains:
		return block.StoneBlockID
	case y == top-1:
		return block.GrassBlockID
	default:
		return block.DirtBlockID
	}
}

// placeTree ставит ствол с кроной, если он целиком помещается в чанк по высоте
func (g *PerlinGenerator) placeTree(c *world.Chunk, lx, lz int, ly int64) {
	const trunk = 4
	if ly < 0 || ly+trunk+1 >= world.ChunkSize {
		return
	}
	y := int(ly)
	for i := 0; i < trunk; i++ {
		c.Set(lx, y+i, lz, block.WoodBlockID)
	}
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			x, z := lx+dx, lz+dz
			if x < 0 || x >= world.ChunkSize || z < 0 || z >= world.ChunkSize {
				continue
			}
			if c.Get(x, y+trunk, z) == block.AirBlockID {
				c.Set(x, y+trunk, z, block.LeavesBlockID)
			}
		}
	}
	c.Set(lx, y+trunk+1, lz, block.LeavesBlockID)
}

// biomeAt определяет тип биома на основе значений шума
func (g *PerlinGenerator) biomeAt(x, z int64, height float64) BiomeType {
	if height < BeachMax {
		return BiomeWater
	}
	if height > MountainStart {
		return BiomeMountains
	}

	v := g.biome.At(float64(x)*g.BiomeScale, float64(z)*g.BiomeScale)
	switch {
	case v < 0.35:
		return BiomeDesert
	case v > 0.65:
		return BiomeForest
	default:
		return BiomePlains
	}
}
