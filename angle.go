package pano

import "math"

// NormalizeAngle maps an angle in degrees into [0, 360). Non-finite input
// yields 0.
func NormalizeAngle(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	// -1e-20 + 360 rounds up to exactly 360.
	if a >= 360 {
		a = 0
	}
	return a
}

// SignedYaw maps a yaw angle into (-180, 180] so that a rotation by the
// result takes the shortest path.
func SignedYaw(deg float64) float64 {
	a := NormalizeAngle(deg)
	if a > 180 {
		return -(360 - a)
	}
	return a
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
