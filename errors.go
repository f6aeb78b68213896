package pano

import "errors"

// Configuration errors indicate a setup bug. They abort scene construction or
// the draw that detected them.
var (
	// ErrFieldOfViewRange is returned for field-of-view requests outside (0, 180).
	ErrFieldOfViewRange = errors.New("pano: field of view must be in (0, 180)")

	// ErrDegenerateProjection is returned when the projection parameters
	// cannot produce a matrix (near == far, zero aspect, sin(fov/2) == 0).
	ErrDegenerateProjection = errors.New("pano: degenerate projection")

	// ErrMissingPrimitive is returned when a geometry, texture or renderer the
	// draw pipeline requires is absent.
	ErrMissingPrimitive = errors.New("pano: missing rendering primitive")
)

// Invalid-argument errors.
var (
	// ErrInvalidMarker is returned for markers with no handle, an out-of-range
	// pitch, or that already belong to another scene.
	ErrInvalidMarker = errors.New("pano: invalid marker")

	// ErrSceneIndex is returned by Viewer.SetScene for an index outside the
	// scene list.
	ErrSceneIndex = errors.New("pano: scene index out of range")

	// ErrSceneNotFound is returned by Viewer.SetSceneHandle for a scene that
	// was never added.
	ErrSceneNotFound = errors.New("pano: scene not found")

	// ErrNoScenes is returned by Viewer.Render when no scene was added.
	ErrNoScenes = errors.New("pano: viewer has no scenes")
)

// ErrTextureLoad wraps every failure to fetch or decode a texture source.
var ErrTextureLoad = errors.New("pano: texture load failed")
