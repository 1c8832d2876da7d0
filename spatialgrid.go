package anvil

import (
	"math"
	"sort"

	"github.com/akmonengine/anvil/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ============================================================================
// Types
// ============================================================================

// CellKey is the integer coordinate of a grid cell
type CellKey struct {
	X, Y, Z int
}

// Cell holds the indices of the bodies overlapping it
type Cell struct {
	bodyIndices []int
}

// Pair is a candidate pair of body indices, A < B
type Pair struct {
	A, B int
}

// SpatialGrid is a uniform hashed grid used as broad phase. Bodies are
// inserted by AABB into every cell they overlap, so the grid is rebuilt on
// each step.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	bounds []actor.AABB
	seen   []bool
}

// ============================================================================
// Constructor
// ============================================================================

func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

// nextPowerOfTwo rounds n up to a power of two
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// ============================================================================
// Building
// ============================================================================

// Insert adds a body index to every cell its AABB overlaps. Indices that
// are never inserted take part in no pair.
func (sg *SpatialGrid) Insert(bodyIndex int, aabb actor.AABB) {
	for len(sg.bounds) <= bodyIndex {
		sg.bounds = append(sg.bounds, actor.EmptyAABB())
	}
	sg.bounds[bodyIndex] = aabb
	if aabb.IsEmpty() {
		return
	}

	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				cell := &sg.cells[cellIdx]

				// a body spanning many cells can hash twice into the same one
				if n := len(cell.bodyIndices); n > 0 && cell.bodyIndices[n-1] == bodyIndex {
					continue
				}
				cell.bodyIndices = append(cell.bodyIndices, bodyIndex)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodyIndices = sg.cells[i].bodyIndices[:0]
	}
	sg.bounds = sg.bounds[:0]
}

func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].bodyIndices) > 1 {
			sort.Ints(sg.cells[i].bodyIndices)
		}
	}
}

// ============================================================================
// Queries
// ============================================================================

// FindPairs returns every pair of inserted bodies whose AABBs overlap and
// for which accept returns true (a nil accept keeps them all). Pairs are
// sorted by A then B, so the result does not depend on the hashing.
func (sg *SpatialGrid) FindPairs(accept func(a, b int) bool) []Pair {
	count := len(sg.bounds)
	pairs := make([]Pair, 0, count/2)

	if cap(sg.seen) < count {
		sg.seen = make([]bool, count)
	}
	seen := sg.seen[:count]

	for bodyIdx := 0; bodyIdx < count; bodyIdx++ {
		clear(seen)
		aabbA := sg.bounds[bodyIdx]
		if aabbA.IsEmpty() {
			continue
		}

		minCell := sg.worldToCell(aabbA.Min)
		maxCell := sg.worldToCell(aabbA.Max)

		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					cellIdx := sg.hashCell(CellKey{x, y, z})

					for _, otherIdx := range sg.cells[cellIdx].bodyIndices {
						// (A,B) only, never (B,A)
						if otherIdx <= bodyIdx || seen[otherIdx] {
							continue
						}
						seen[otherIdx] = true

						if !aabbA.Overlaps(sg.bounds[otherIdx]) {
							continue
						}
						if accept != nil && !accept(bodyIdx, otherIdx) {
							continue
						}
						pairs = append(pairs, Pair{A: bodyIdx, B: otherIdx})
					}
				}
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})

	return pairs
}

// worldToCell converts a world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell maps a cell to an index in the cells array
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
