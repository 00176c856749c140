package physics

import "math"

const (
	kartPushMaxPerKart = 0.08
	kartPushMaxPerTick = 0.12
	kartPushStrength   = 0.7
)

// KartPush returns the horizontal separation to apply to a vehicle at pos so that it
// drifts out of other vehicles it overlaps. The result is capped per tick.
func KartPush(pos Vec3, others []Vec3) Vec3 {
	if len(others) == 0 {
		return Vec3{}
	}

	self := VehicleAABB(pos)
	minDist := VehicleWidth
	var push Vec3

	for _, other := range others {
		box := VehicleAABB(other)
		if self.Max[1] <= box.Min[1] || self.Min[1] >= box.Max[1] {
			continue
		}

		dx := pos[0] - other[0]
		dz := pos[2] - other[2]
		dist2 := dx*dx + dz*dz
		if dist2 >= minDist*minDist {
			continue
		}

		dist := math.Sqrt(dist2)
		mag := math.Min((minDist-dist)*kartPushStrength, kartPushMaxPerKart)
		if mag <= 0 {
			continue
		}
		if dist < CollisionAxisTolerance {
			// Stacked exactly: pick an arbitrary but stable direction.
			dx, dz, dist = 1, 0, 1
		}
		push[0] += dx / dist * mag
		push[2] += dz / dist * mag
	}

	length := push.Len()
	if length <= CollisionAxisTolerance {
		return Vec3{}
	}
	if length > kartPushMaxPerTick {
		push = push.Mul(kartPushMaxPerTick / length)
	}
	return push
}
