package game

import (
	"sort"

	"github.com/annel0/blockverse/internal/vec"
)

// ShellOrder возвращает смещения чанков в кубе радиуса radius вокруг
// наблюдателя, упорядоченные по чебышёвской оболочке, затем по y, z, x.
// Сначала идёт чанк наблюдателя, затем его соседи и так далее наружу.
func ShellOrder(radius int) []vec.Vec3 {
	if radius < 0 {
		return nil
	}

	r := int64(radius)
	side := 2*r + 1
	out := make([]vec.Vec3, 0, side*side*side)
	for y := -r; y <= r; y++ {
		for z := -r; z <= r; z++ {
			for x := -r; x <= r; x++ {
				out = append(out, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Chebyshev(vec.Vec3{}) < out[j].Chebyshev(vec.Vec3{})
	})
	return out
}
