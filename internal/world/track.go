package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/Versifine/kartsim/internal/physics"
)

// TrackSpec describes a walled circuit laid along a closed loop of waypoints.
type TrackSpec struct {
	Waypoints  []physics.Vec3
	Width      float64 // road width between the inner faces of the walls
	WallHeight int
	FloorY     int // karts drive on top of this layer
}

// BuildTrack lays a solid floor under the whole loop and raises walls on both
// sides of the road. Only the horizontal (x, z) coordinates of waypoints are used.
func BuildTrack(spec TrackSpec) (*Grid, error) {
	if len(spec.Waypoints) < 2 {
		return nil, errors.New("track needs at least two waypoints")
	}
	if !(spec.Width > 0) || math.IsInf(spec.Width, 0) {
		return nil, fmt.Errorf("track width must be positive, got %v", spec.Width)
	}
	if spec.WallHeight < 0 {
		return nil, fmt.Errorf("wall height must not be negative, got %d", spec.WallHeight)
	}

	grid, err := NewGrid(spec.FloorY, spec.FloorY+spec.WallHeight)
	if err != nil {
		return nil, err
	}

	half := spec.Width / 2
	margin := half + 2
	minX, minZ := math.Inf(1), math.Inf(1)
	maxX, maxZ := math.Inf(-1), math.Inf(-1)
	for _, p := range spec.Waypoints {
		minX, maxX = math.Min(minX, p.X()), math.Max(maxX, p.X())
		minZ, maxZ = math.Min(minZ, p.Z()), math.Max(maxZ, p.Z())
	}

	x0, x1 := int(math.Floor(minX-margin)), int(math.Ceil(maxX+margin))
	z0, z1 := int(math.Floor(minZ-margin)), int(math.Ceil(maxZ+margin))
	for z := z0; z <= z1; z++ {
		for x := x0; x <= x1; x++ {
			// Sample the cell centre.
			d := distanceToLoop(float64(x)+0.5, float64(z)+0.5, spec.Waypoints)
			if d > margin {
				continue
			}
			grid.SetSolid(x, spec.FloorY, z, true)
			if d >= half && spec.WallHeight > 0 {
				for y := spec.FloorY + 1; y <= spec.FloorY+spec.WallHeight; y++ {
					grid.SetSolid(x, y, z, true)
				}
			}
		}
	}
	return grid, nil
}

// SurfaceY is the height karts rest at on a track built with floorY.
func SurfaceY(floorY int) float64 {
	return float64(floorY + 1)
}

func distanceToLoop(x, z float64, loop []physics.Vec3) float64 {
	best := math.Inf(1)
	for i := range loop {
		a := loop[i]
		b := loop[(i+1)%len(loop)]
		best = math.Min(best, distanceToSegment(x, z, a.X(), a.Z(), b.X(), b.Z()))
	}
	return best
}

func distanceToSegment(px, pz, ax, az, bx, bz float64) float64 {
	dx, dz := bx-ax, bz-az
	lenSq := dx*dx + dz*dz
	t := 0.0
	if lenSq > 0 {
		t = physics.Clamp01(((px-ax)*dx + (pz-az)*dz) / lenSq)
	}
	return math.Hypot(px-(ax+t*dx), pz-(az+t*dz))
}
