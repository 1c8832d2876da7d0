package anvil

import (
	"testing"

	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxBounds(center mgl64.Vec3, halfExtent float64) actor.AABB {
	h := mgl64.Vec3{halfExtent, halfExtent, halfExtent}
	return actor.AABB{Min: center.Sub(h), Max: center.Add(h)}
}

func TestWorldToCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected CellKey
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, CellKey{0, 0, 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, CellKey{1, 2, 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, CellKey{-2, -3, -4}},
		{"fractional", mgl64.Vec3{0.5, 0.5, 0.5}, CellKey{0, 0, 0}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, CellKey{100, -201, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, grid.worldToCell(tt.position))
		})
	}
}

func TestWorldToCell_CellSize(t *testing.T) {
	grid := NewSpatialGrid(2.5, 16)
	assert.Equal(t, CellKey{2, -1, 2}, grid.worldToCell(mgl64.Vec3{5, -0.1, 7.4}))
}

func TestHashCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16) // mask = 15

	tests := []struct {
		name     string
		key      CellKey
		expected int
	}{
		{"origin", CellKey{0, 0, 0}, 0},
		{"simple", CellKey{1, 2, 3}, 6},
		{"negative", CellKey{-1, -2, -3}, 10},
		{"large", CellKey{100, 200, 300}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.hashCell(tt.key)
			assert.GreaterOrEqual(t, result, 0)
			assert.Less(t, result, len(grid.cells))
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {1000, 1024}, {4096, 4096},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextPowerOfTwo(tt.in), "nextPowerOfTwo(%d)", tt.in)
	}
}

func TestInsertSingleBody(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	aabb := boxBounds(mgl64.Vec3{1.5, 2.5, 3.5}, 0.4)

	grid.Insert(0, aabb)

	cellIdx := grid.hashCell(grid.worldToCell(aabb.Min))
	assert.Contains(t, grid.cells[cellIdx].bodyIndices, 0, "body not found in its cell")
}

func TestInsertSkippedIndexIsEmpty(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	grid.Insert(2, boxBounds(mgl64.Vec3{}, 0.5))

	require.Len(t, grid.bounds, 3)
	for i := 0; i < 2; i++ {
		assert.True(t, grid.bounds[i].IsEmpty(), "bounds[%d] = %v", i, grid.bounds[i])
	}
}

func TestClear(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	grid.Insert(0, boxBounds(mgl64.Vec3{0, 0, 0}, 0.5))
	grid.Insert(1, boxBounds(mgl64.Vec3{3, 3, 3}, 0.5))

	grid.Clear()

	for i, cell := range grid.cells {
		assert.Empty(t, cell.bodyIndices, "cell %d after Clear", i)
	}
	assert.Empty(t, grid.bounds)
}

func TestSortCells(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	grid.cells[0].bodyIndices = []int{5, 2, 8, 1}

	grid.SortCells()

	assert.Equal(t, []int{1, 2, 5, 8}, grid.cells[0].bodyIndices)
}

func TestFindPairsNoCollision(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)
	grid.Insert(0, boxBounds(mgl64.Vec3{0, 0, 0}, 0.4))
	grid.Insert(1, boxBounds(mgl64.Vec3{5, 0, 0}, 0.4))
	grid.Insert(2, boxBounds(mgl64.Vec3{0, 5, 0}, 0.4))
	grid.SortCells()

	assert.Empty(t, grid.FindPairs(nil))
}

func TestFindPairsWithCollision(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)
	grid.Insert(0, boxBounds(mgl64.Vec3{0, 0, 0}, 0.5))
	grid.Insert(1, boxBounds(mgl64.Vec3{0.8, 0, 0}, 0.5))
	grid.Insert(2, boxBounds(mgl64.Vec3{10, 0, 0}, 0.5))
	grid.SortCells()

	assert.Equal(t, []Pair{{A: 0, B: 1}}, grid.FindPairs(nil))
}

func TestFindPairsNoDuplicates(t *testing.T) {
	// two large boxes sharing many cells
	grid := NewSpatialGrid(1.0, 16)
	grid.Insert(0, boxBounds(mgl64.Vec3{0, 0, 0}, 3))
	grid.Insert(1, boxBounds(mgl64.Vec3{1, 1, 1}, 3))
	grid.SortCells()

	assert.Len(t, grid.FindPairs(nil), 1)
}

func TestFindPairsAcceptFilter(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)
	for i := 0; i < 3; i++ {
		grid.Insert(i, boxBounds(mgl64.Vec3{float64(i) * 0.5, 0, 0}, 0.5))
	}
	grid.SortCells()

	// reject every pair involving body 0
	pairs := grid.FindPairs(func(a, b int) bool { return a != 0 })
	assert.Equal(t, []Pair{{A: 1, B: 2}}, pairs)
}

func TestFindPairsSortedAndMatchesBruteForce(t *testing.T) {
	grid := NewSpatialGrid(1.5, 32)

	var bounds []actor.AABB
	for i := 0; i < 40; i++ {
		center := mgl64.Vec3{float64(i%5) * 0.9, float64((i/5)%4) * 0.9, float64(i/20) * 0.9}
		bounds = append(bounds, boxBounds(center, 0.5))
		grid.Insert(i, bounds[i])
	}
	grid.SortCells()

	var want []Pair
	for a := range bounds {
		for b := a + 1; b < len(bounds); b++ {
			if bounds[a].Overlaps(bounds[b]) {
				want = append(want, Pair{A: a, B: b})
			}
		}
	}

	assert.Equal(t, want, grid.FindPairs(nil))
}

func TestBoundaryCases(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	// AABB exactly on the border between two cells
	aabb := boxBounds(mgl64.Vec3{1.0, 1.0, 1.0}, 0.5)
	minCell := grid.worldToCell(aabb.Min)
	maxCell := grid.worldToCell(aabb.Max)

	// the body spans 2 cells in each dimension
	assert.Equal(t, CellKey{1, 1, 1}, CellKey{maxCell.X - minCell.X, maxCell.Y - minCell.Y, maxCell.Z - minCell.Z})
}

func TestLargeBodySpanningManyCells(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	aabb := boxBounds(mgl64.Vec3{0, 0, 0}, 5.0)

	grid.Insert(0, aabb)

	minCell := grid.worldToCell(aabb.Min)
	maxCell := grid.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := grid.hashCell(CellKey{x, y, z})
				count := 0
				for _, idx := range grid.cells[cellIdx].bodyIndices {
					if idx == 0 {
						count++
					}
				}
				require.Equal(t, 1, count, "cell %v", CellKey{x, y, z})
			}
		}
	}
}

func BenchmarkFindPairs(b *testing.B) {
	grid := NewSpatialGrid(1.0, 1024)

	for i := 0; i < 1000; i++ {
		pos := mgl64.Vec3{
			float64(i%10) * 0.9,
			float64((i/10)%10) * 0.9,
			float64((i/100)%10) * 0.9,
		}
		grid.Insert(i, boxBounds(pos, 0.5))
	}
	grid.SortCells()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		grid.FindPairs(nil)
	}
}
