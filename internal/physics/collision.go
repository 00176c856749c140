package physics

import "math"

type BlockStore interface {
	IsSolid(x, y, z int) bool
}

type AABB struct {
	Min Vec3
	Max Vec3
}

// VehicleAABB returns the box of a vehicle whose position is the bottom center.
func VehicleAABB(pos Vec3) AABB {
	return AABB{
		Min: Vec3{pos[0] - VehicleHalfWidth, pos[1], pos[2] - VehicleHalfDepth},
		Max: Vec3{pos[0] + VehicleHalfWidth, pos[1] + VehicleHeight, pos[2] + VehicleHalfDepth},
	}
}

func (a AABB) Intersects(b AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Min[i] >= b.Max[i] || a.Max[i] <= b.Min[i] {
			return false
		}
	}
	return true
}

func (a AABB) Offset(d Vec3) AABB {
	return AABB{Min: a.Min.Add(d), Max: a.Max.Add(d)}
}

func CollidesWithBlock(box AABB, blockStore BlockStore) bool {
	if blockStore == nil {
		return false
	}

	for y := floorForMin(box.Min[1]); y <= floorForMax(box.Max[1]); y++ {
		for x := floorForMin(box.Min[0]); x <= floorForMax(box.Max[0]); x++ {
			for z := floorForMin(box.Min[2]); z <= floorForMax(box.Max[2]); z++ {
				if !blockStore.IsSolid(x, y, z) {
					continue
				}
				if box.Intersects(blockAABB(x, y, z)) {
					return true
				}
			}
		}
	}
	return false
}

// ResolveMovement sweeps the vehicle box through delta one axis at a time (Y, X, Z)
// and returns the reached position plus the delta that was actually applied.
func ResolveMovement(pos, delta Vec3, blockStore BlockStore) (Vec3, Vec3) {
	newPos := pos
	applied := Vec3{}
	for _, axis := range [3]int{1, 0, 2} {
		var moved float64
		newPos, moved = resolveAxis(newPos, axis, delta[axis], blockStore)
		applied[axis] = moved
	}
	return newPos, applied
}

func resolveAxis(pos Vec3, axis int, delta float64, blockStore BlockStore) (Vec3, float64) {
	if blockStore == nil || nearlyZero(delta) {
		pos[axis] += delta
		return pos, delta
	}

	box := VehicleAABB(pos)
	u, v := otherAxes(axis)
	minU, maxU := floorForMin(box.Min[u]), floorForMax(box.Max[u])
	minV, maxV := floorForMin(box.Min[v]), floorForMax(box.Max[v])

	allowed := delta
	check := func(layer int, candidate func() float64) {
		for i := minU; i <= maxU; i++ {
			for j := minV; j <= maxV; j++ {
				var cell [3]int
				cell[axis], cell[u], cell[v] = layer, i, j
				if !blockStore.IsSolid(cell[0], cell[1], cell[2]) {
					continue
				}
				c := candidate()
				if delta > 0 && c < allowed {
					allowed = math.Max(0, c)
				} else if delta < 0 && c > allowed {
					allowed = math.Min(0, c)
				}
			}
		}
	}

	if delta > 0 {
		start := int(math.Floor(box.Max[axis]))
		end := int(math.Floor(box.Max[axis] + delta))
		for layer := start; layer <= end; layer++ {
			check(layer, func() float64 { return float64(layer) - box.Max[axis] })
		}
	} else {
		start := int(math.Floor(box.Min[axis] - CollisionAxisTolerance))
		end := int(math.Floor(box.Min[axis] + delta))
		for layer := start; layer >= end; layer-- {
			check(layer, func() float64 { return float64(layer+1) - box.Min[axis] })
		}
	}

	pos[axis] += allowed
	return pos, allowed
}

func otherAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func blockAABB(x, y, z int) AABB {
	return AABB{
		Min: Vec3{float64(x), float64(y), float64(z)},
		Max: Vec3{float64(x + 1), float64(y + 1), float64(z + 1)},
	}
}

func floorForMin(v float64) int {
	return int(math.Floor(v + CollisionAxisTolerance))
}

func floorForMax(v float64) int {
	return int(math.Floor(v - CollisionAxisTolerance))
}

func nearlyZero(v float64) bool {
	return math.Abs(v) <= CollisionAxisTolerance
}
