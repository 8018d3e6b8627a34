// Package systems implements the algorithmic pieces of the graph engine:
// spatial indexing, force-directed layout, procedural growth, and clustering.
// Each system is an explicit instance owned by whoever constructs it.
package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// cellKey addresses one cell of the uniform grid.
type cellKey struct {
	X, Y, Z int32
}

// gridEntry records where an entity currently lives in the grid.
type gridEntry struct {
	cell cellKey
	pos  r3.Vec
}

// SpatialGrid is a uniform spatial hash over unbounded 3D space.
// Cells are allocated lazily, so only occupied regions cost memory.
// Insert and Remove are O(1) amortized; radius queries are O(k) in the
// number of candidates inside the overlapped cells.
type SpatialGrid struct {
	cellSize float64
	cells    map[cellKey][]ecs.Entity
	entries  map[ecs.Entity]gridEntry
}

// NewSpatialGrid creates a grid with the given cell edge length.
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]ecs.Entity),
		entries:  make(map[ecs.Entity]gridEntry),
	}
}

// keyAt maps a world position to its cell key. math.Floor keeps negative
// coordinates in distinct cells (integer truncation would fold the cells
// around zero together).
func (g *SpatialGrid) keyAt(pos r3.Vec) cellKey {
	return cellKey{
		X: int32(math.Floor(pos.X / g.cellSize)),
		Y: int32(math.Floor(pos.Y / g.cellSize)),
		Z: int32(math.Floor(pos.Z / g.cellSize)),
	}
}

// Insert registers an entity at a position. Re-inserting an already present
// entity relocates it, so every entity occupies exactly one cell.
func (g *SpatialGrid) Insert(e ecs.Entity, pos r3.Vec) {
	key := g.keyAt(pos)
	if prev, ok := g.entries[e]; ok {
		if prev.cell == key {
			g.entries[e] = gridEntry{cell: key, pos: pos}
			return
		}
		g.removeFromCell(prev.cell, e)
	}
	g.cells[key] = append(g.cells[key], e)
	g.entries[e] = gridEntry{cell: key, pos: pos}
}

// Remove drops an entity from the grid. Unknown entities are ignored.
func (g *SpatialGrid) Remove(e ecs.Entity) {
	entry, ok := g.entries[e]
	if !ok {
		return
	}
	g.removeFromCell(entry.cell, e)
	delete(g.entries, e)
}

func (g *SpatialGrid) removeFromCell(key cellKey, e ecs.Entity) {
	cell := g.cells[key]
	for i, other := range cell {
		if other == e {
			last := len(cell) - 1
			cell[i] = cell[last]
			g.cells[key] = cell[:last]
			break
		}
	}
	if len(g.cells[key]) == 0 {
		delete(g.cells, key)
	}
}

// Position returns the indexed position of an entity.
func (g *SpatialGrid) Position(e ecs.Entity) (r3.Vec, bool) {
	entry, ok := g.entries[e]
	return entry.pos, ok
}

// Len returns the number of indexed entities.
func (g *SpatialGrid) Len() int {
	return len(g.entries)
}

// Query returns all entities within radius of pos.
func (g *SpatialGrid) Query(pos r3.Vec, radius float64) []ecs.Entity {
	return g.QueryInto(nil, pos, radius)
}

// QueryInto appends all entities within radius of pos to dst and returns it.
// Reuse dst across calls to avoid allocations. The grid cells are a coarse
// pre-filter: every candidate is confirmed against the true squared Euclidean
// distance. Results come out in cell order, which is stable for a fixed
// sequence of mutations.
func (g *SpatialGrid) QueryInto(dst []ecs.Entity, pos r3.Vec, radius float64) []ecs.Entity {
	dst = dst[:0]
	if radius < 0 {
		return dst
	}
	r2 := radius * radius
	lo := g.keyAt(r3.Vec{X: pos.X - radius, Y: pos.Y - radius, Z: pos.Z - radius})
	hi := g.keyAt(r3.Vec{X: pos.X + radius, Y: pos.Y + radius, Z: pos.Z + radius})

	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				for _, e := range g.cells[cellKey{X: x, Y: y, Z: z}] {
					if r3.Norm2(r3.Sub(g.entries[e].pos, pos)) <= r2 {
						dst = append(dst, e)
					}
				}
			}
		}
	}
	return dst
}

// HasCollision reports whether any entity other than exclude sits strictly
// closer than minDist to pos. Squared distances only, no square roots.
func (g *SpatialGrid) HasCollision(pos r3.Vec, minDist float64, exclude ecs.Entity) bool {
	if minDist <= 0 {
		return false
	}
	d2 := minDist * minDist
	lo := g.keyAt(r3.Vec{X: pos.X - minDist, Y: pos.Y - minDist, Z: pos.Z - minDist})
	hi := g.keyAt(r3.Vec{X: pos.X + minDist, Y: pos.Y + minDist, Z: pos.Z + minDist})

	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				for _, e := range g.cells[cellKey{X: x, Y: y, Z: z}] {
					if e == exclude {
						continue
					}
					if r3.Norm2(r3.Sub(g.entries[e].pos, pos)) < d2 {
						return true
					}
				}
			}
		}
	}
	return false
}
