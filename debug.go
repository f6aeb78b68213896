package pano

import (
	"time"
)

// debugStats holds per-draw timing and draw-call metrics.
// Only populated when the viewer is in debug mode.
type debugStats struct {
	projectTime time.Duration
	drawTime    time.Duration
	triangles   int
	drawCalls   int
}

// debugLog writes the stats of one scene draw at debug level.
func (v *Viewer) debugLog(s *Scene, stats debugStats) {
	if !v.debug {
		return
	}
	v.Logger.Debug().
		Str("scene", s.Name).
		Dur("project", stats.projectTime).
		Dur("draw", stats.drawTime).
		Dur("total", stats.projectTime+stats.drawTime).
		Int("triangles", stats.triangles).
		Int("drawCalls", stats.drawCalls).
		Float64("pitch", s.pitch).
		Float64("yaw", s.yaw).
		Float64("fov", s.fov).
		Msg("draw")
}

// debugMaxMarkers is the marker count above which a scene is reported as
// likely to slow hit testing and placement.
const debugMaxMarkers = 256

// debugCheckScene warns about scene configurations that work but are probably
// mistakes. Only called in debug mode.
func (v *Viewer) debugCheckScene(s *Scene) {
	if len(s.markers) > debugMaxMarkers {
		v.Logger.Warn().Str("scene", s.Name).Int("markers", len(s.markers)).
			Int("threshold", debugMaxMarkers).Msg("many markers")
	}
	for _, m := range s.markers {
		if m.target.Valid() && v.resolveRef(m.target) < 0 {
			v.Logger.Warn().Str("scene", s.Name).Float64("pitch", m.pitch).
				Float64("yaw", m.yaw).Msg("marker target not in viewer")
		}
	}
}
