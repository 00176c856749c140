// Package world holds the static voxel geometry karts collide with.
package world

import (
	"fmt"
	"sync"
)

const (
	ChunkSize        = 16
	SectionHeight    = 16
	BlocksPerSection = ChunkSize * ChunkSize * SectionHeight
)

type ChunkPos struct {
	X int32
	Z int32
}

// section is a 16x16x16 solid bitmap, allocated on first write.
type section struct {
	solid [BlocksPerSection]bool
	count int
}

type chunk struct {
	sections []*section
}

// Grid is a sparse, chunked set of solid unit cells between MinY and MaxY.
// It is safe for concurrent use.
type Grid struct {
	MinY int
	MaxY int

	mu     sync.RWMutex
	chunks map[ChunkPos]*chunk
}

func NewGrid(minY, maxY int) (*Grid, error) {
	if maxY < minY {
		return nil, fmt.Errorf("invalid grid bounds: max_y %d below min_y %d", maxY, minY)
	}
	return &Grid{
		MinY:   minY,
		MaxY:   maxY,
		chunks: make(map[ChunkPos]*chunk),
	}, nil
}

func (g *Grid) sectionCount() int {
	return (g.MaxY-g.MinY)/SectionHeight + 1
}

// locate returns the chunk key, section index and cell index of a world cell.
func (g *Grid) locate(x, y, z int) (ChunkPos, int, int, bool) {
	if y < g.MinY || y > g.MaxY {
		return ChunkPos{}, 0, 0, false
	}
	pos := ChunkPos{X: int32(floorDiv16(x)), Z: int32(floorDiv16(z))}
	sectionIndex := (y - g.MinY) / SectionHeight
	localY := (y - g.MinY) % SectionHeight
	blockIndex := localY*ChunkSize*ChunkSize + floorMod16(z)*ChunkSize + floorMod16(x)
	return pos, sectionIndex, blockIndex, true
}

// SetSolid marks or clears one cell. It reports false for cells outside the
// vertical bounds.
func (g *Grid) SetSolid(x, y, z int, solid bool) bool {
	pos, si, bi, ok := g.locate(x, y, z)
	if !ok {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.chunks[pos]
	if !ok {
		if !solid {
			return true
		}
		c = &chunk{sections: make([]*section, g.sectionCount())}
		g.chunks[pos] = c
	}
	s := c.sections[si]
	if s == nil {
		if !solid {
			return true
		}
		s = &section{}
		c.sections[si] = s
	}
	if s.solid[bi] != solid {
		s.solid[bi] = solid
		if solid {
			s.count++
		} else {
			s.count--
		}
	}
	return true
}

// IsSolid implements physics.BlockStore.
func (g *Grid) IsSolid(x, y, z int) bool {
	pos, si, bi, ok := g.locate(x, y, z)
	if !ok {
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.chunks[pos]
	if !ok {
		return false
	}
	s := c.sections[si]
	return s != nil && s.solid[bi]
}

// Fill sets every cell in the inclusive box [x0,x1]x[y0,y1]x[z0,z1].
func (g *Grid) Fill(x0, y0, z0, x1, y1, z1 int, solid bool) {
	x0, x1 = order(x0, x1)
	y0, y1 = order(y0, y1)
	z0, z1 = order(z0, z1)
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				g.SetSolid(x, y, z, solid)
			}
		}
	}
}

func (g *Grid) ChunkCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.chunks)
}

// SolidCount returns the number of solid cells in the grid.
func (g *Grid) SolidCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, c := range g.chunks {
		for _, s := range c.sections {
			if s != nil {
				n += s.count
			}
		}
	}
	return n
}

func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chunks = make(map[ChunkPos]*chunk)
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func floorDiv16(v int) int {
	q := v / 16
	if v < 0 && v%16 != 0 {
		q--
	}
	return q
}

func floorMod16(v int) int {
	m := v % 16
	if m < 0 {
		m += 16
	}
	return m
}
