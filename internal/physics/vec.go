package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Vec3 = mgl64.Vec3

var (
	Up         = Vec3{0, 1, 0}
	WorldFwd   = Vec3{0, 0, 1}
	WorldRight = Vec3{1, 0, 0}
)

// YawRotation returns the rotation about the world up axis for a heading in degrees.
// Heading 0 faces +Z, positive headings turn clockwise when seen from above (towards +X).
func YawRotation(yawDeg float64) mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(yawDeg), Up)
}

func Forward(yawDeg float64) Vec3 {
	return YawRotation(yawDeg).Rotate(WorldFwd)
}

func Right(yawDeg float64) Vec3 {
	return YawRotation(yawDeg).Rotate(WorldRight)
}

// NormalizeAngle wraps an angle in degrees into (-180, 180].
func NormalizeAngle(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	v = math.Mod(v, 360)
	if v <= -180 {
		v += 360
	} else if v > 180 {
		v -= 360
	}
	return v
}

// Lerp interpolates from a to b with t clamped to [0, 1].
func Lerp(a, b, t float64) float64 {
	t = Clamp01(t)
	return a + (b-a)*t
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// SafeDiv returns a/b, or 0 when b is zero or the result is not finite.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func IsFiniteVec(v Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}
