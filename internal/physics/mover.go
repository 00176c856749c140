package physics

// Mover applies an intended displacement to a vehicle and reports where it ended up.
// The vehicle core computes the displacement; collision handling belongs to the mover.
type Mover interface {
	Move(pos, delta Vec3) (Vec3, bool)
}

// GridMover resolves movement against a voxel grid of solid cells.
type GridMover struct {
	Blocks BlockStore
}

func NewGridMover(blocks BlockStore) *GridMover {
	return &GridMover{Blocks: blocks}
}

func (m *GridMover) Move(pos, delta Vec3) (Vec3, bool) {
	if m == nil || m.Blocks == nil {
		return pos.Add(delta), false
	}
	newPos, _ := ResolveMovement(pos, delta, m.Blocks)
	return newPos, IsGrounded(newPos, m.Blocks)
}

// IsGrounded reports whether the vehicle box rests on a solid cell.
func IsGrounded(pos Vec3, blockStore BlockStore) bool {
	if blockStore == nil {
		return false
	}
	probe := VehicleAABB(pos).Offset(Vec3{0, -GroundProbeDistance, 0})
	return CollidesWithBlock(probe, blockStore)
}

// PlaneMover keeps the vehicle on or above an infinite horizontal ground plane.
type PlaneMover struct {
	Height float64
}

func (m PlaneMover) Move(pos, delta Vec3) (Vec3, bool) {
	newPos := pos.Add(delta)
	if newPos[1] <= m.Height+GroundProbeDistance {
		newPos[1] = m.Height
		return newPos, true
	}
	return newPos, false
}
