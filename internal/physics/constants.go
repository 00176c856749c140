package physics

const (
	GroundProbeDistance    = 0.001
	CollisionAxisTolerance = 1e-9

	// Vehicle box, sized after the capsule the kart rides on.
	VehicleWidth     = 1.0
	VehicleDepth     = 1.0
	VehicleHeight    = 1.8
	VehicleHalfWidth = VehicleWidth / 2.0
	VehicleHalfDepth = VehicleDepth / 2.0
)
