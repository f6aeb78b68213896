package pano

import (
	"image/color"
	"math"
	"time"
)

// Default camera and interaction parameters. A Viewer copies these into its
// ViewerConfig; scenes created outside a viewer fall back to them directly.
const (
	DefaultFieldOfView        = 90.0
	DefaultAnimationDuration  = time.Second
	DefaultMovingRate         = 1.5
	DefaultFlyInDip           = 6.0
	DefaultKeyStep            = 10.0
	DefaultNear               = 0.01
	DefaultFar                = 10.0
	DefaultCubeSubdivisions   = 12
	DefaultSphereSubdivisions = 48
	DefaultDragDeadZone       = 4.0 // pixels
)

// DefaultPitchVisibleRange is the absolute pitch extreme, independent of the
// field of view.
var DefaultPitchVisibleRange = Range{Min: -86, Max: 86}

// offscreenDeltaLeft is the normalized horizontal offset assigned to markers
// behind the camera. It is large enough to push a handle past either edge.
const offscreenDeltaLeft = 4.0

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float64
}

// ColorBlack is the default clear color.
var ColorBlack = Color{0, 0, 0, 1}

// RGBA converts the color to a premultiplied color.RGBA.
func (c Color) RGBA() color.RGBA {
	a := clamp01(c.A)
	return color.RGBA{
		R: uint8(clamp01(c.R)*a*255 + 0.5),
		G: uint8(clamp01(c.G)*a*255 + 0.5),
		B: uint8(clamp01(c.B)*a*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Vec2 is a 2D vector used for screen positions and texture coordinates.
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in screen space. The origin is the
// top-left corner with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Range is a closed [Min, Max] interval.
type Range struct {
	Min, Max float64
}

// Clamp limits v to the range. An inverted range (Min > Max) collapses to its
// midpoint.
func (r Range) Clamp(v float64) float64 {
	if r.Min > r.Max {
		return (r.Min + r.Max) / 2
	}
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Angle is a camera or marker orientation in degrees.
type Angle struct {
	Pitch float64 // rotation about the horizontal axis, positive looks up
	Yaw   float64 // rotation about the vertical axis, positive turns right
}

// GeometryKind identifies the panorama model a scene draws.
type GeometryKind uint8

const (
	GeometryCuboid GeometryKind = iota // six faces: front, right, up, left, down, back
	GeometrySphere                     // one equirectangular texture on a latitude/longitude mesh
)

// String returns the name used in tour files.
func (k GeometryKind) String() string {
	switch k {
	case GeometryCuboid:
		return "cube"
	case GeometrySphere:
		return "sphere"
	default:
		return "unknown"
	}
}

// EventType identifies the kind of viewer event forwarded to an EntityStore.
type EventType uint8

const (
	EventSceneChange     EventType = iota // active scene replaced
	EventMarkerActivated                  // marker clicked
	EventAngleChange                      // active scene orientation changed
)
