package pano

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// --- Handler registry ---

type angleHandler struct {
	id uint32
	fn func(Angle)
}

type sceneHandler struct {
	id uint32
	fn func(*Scene, int)
}

type markerHandler struct {
	id uint32
	fn func(*Marker)
}

type handlerRegistry struct {
	angleChange     []angleHandler
	sceneChange     []sceneHandler
	markerActivated []markerHandler
	nextID          uint32
}

// CallbackHandle allows removing a registered callback.
type CallbackHandle struct {
	id    uint32
	reg   *handlerRegistry
	event EventType
}

// Remove unregisters this callback so it no longer fires. Removing twice, or
// removing a zero handle, is a no-op.
func (h CallbackHandle) Remove() {
	if h.reg == nil {
		return
	}
	switch h.event {
	case EventAngleChange:
		h.reg.angleChange = removeHandler(h.reg.angleChange, h.id, func(x angleHandler) uint32 { return x.id })
	case EventSceneChange:
		h.reg.sceneChange = removeHandler(h.reg.sceneChange, h.id, func(x sceneHandler) uint32 { return x.id })
	case EventMarkerActivated:
		h.reg.markerActivated = removeHandler(h.reg.markerActivated, h.id, func(x markerHandler) uint32 { return x.id })
	}
}

func removeHandler[T any](s []T, id uint32, idOf func(T) uint32) []T {
	for i := range s {
		if idOf(s[i]) == id {
			var zero T
			copy(s[i:], s[i+1:])
			s[len(s)-1] = zero
			return s[:len(s)-1]
		}
	}
	return s
}

// --- Interaction controller ---

// InteractionController turns pointer and touch drags into camera rotations
// of the bound scene. Exactly one scene is bound at a time; the viewer binds
// the active scene and unbinds it on switch.
type InteractionController struct {
	// MovingRate amplifies drag deltas.
	MovingRate float64
	// KeyStep is the rotation in degrees per arrow key press.
	KeyStep float64

	scene    *Scene
	dragging bool
	start    Vec2
}

// Bind makes s the scene receiving input and resets drag state.
func (c *InteractionController) Bind(s *Scene) {
	c.scene = s
	c.dragging = false
}

// Unbind detaches the current scene. Further input is ignored.
func (c *InteractionController) Unbind() {
	c.scene = nil
	c.dragging = false
}

// Scene returns the bound scene, or nil.
func (c *InteractionController) Scene() *Scene { return c.scene }

// Dragging reports whether a mouse drag is in progress.
func (c *InteractionController) Dragging() bool { return c.dragging }

// PointerDown starts a mouse drag at (x, y).
func (c *InteractionController) PointerDown(x, y float64) {
	if c.scene == nil {
		return
	}
	c.dragging = true
	c.start = Vec2{x, y}
}

// PointerMove continues a mouse drag.
func (c *InteractionController) PointerMove(x, y float64) {
	if !c.dragging {
		return
	}
	c.moveTo(x, y)
}

// PointerUp ends a mouse drag.
func (c *InteractionController) PointerUp() {
	c.dragging = false
}

// PointerLeave ends a mouse drag when the pointer leaves the viewport.
func (c *InteractionController) PointerLeave() {
	c.dragging = false
}

// TouchStart records the start point of a touch drag.
func (c *InteractionController) TouchStart(x, y float64) {
	c.start = Vec2{x, y}
}

// TouchMove continues a touch drag.
func (c *InteractionController) TouchMove(x, y float64) {
	c.moveTo(x, y)
}

// Pan rotates the bound scene by fixed steps, as the arrow keys do.
func (c *InteractionController) Pan(stepsPitch, stepsYaw float64) {
	s := c.scene
	if s == nil || s.IsAnimating() {
		return
	}
	step := c.KeyStep
	if step == 0 {
		step = DefaultKeyStep
	}
	if err := s.Draw(stepsPitch*step, stepsYaw*step); err != nil {
		s.logger().Error().Err(err).Msg("key pan")
	}
}

// moveTo converts the pointer movement since the last point into angle
// deltas: atan of the offset over half the viewport, in degrees, times the
// moving rate. A pitch delta pushing past the clamp boundary is zeroed so
// the camera does not jitter against it. Input is dropped while the scene
// animates; the start point still follows the pointer.
func (c *InteractionController) moveTo(x, y float64) {
	s := c.scene
	if s == nil {
		return
	}
	if s.IsAnimating() {
		c.start = Vec2{x, y}
		return
	}
	r := s.renderer()
	if r == nil {
		return
	}
	w, h := r.Viewport()
	if w <= 0 || h <= 0 {
		return
	}

	deltaX := c.start.X - x
	deltaY := c.start.Y - y

	pr := s.PitchRange()
	var deltaPitch float64
	switch {
	case s.pitch <= pr.Min && deltaY >= 0:
		deltaPitch = 0
	case s.pitch >= pr.Max && deltaY <= 0:
		deltaPitch = 0
	default:
		deltaPitch = -RadToDeg(math.Atan(deltaY / (h / 2)))
	}
	deltaYaw := RadToDeg(math.Atan(deltaX / (w / 2)))

	rate := c.MovingRate
	if rate == 0 {
		rate = DefaultMovingRate
	}
	if err := s.Draw(deltaPitch*rate, deltaYaw*rate); err != nil {
		s.logger().Error().Err(err).Msg("drag")
	}
	c.start = Vec2{x, y}
}

// --- Ebiten input polling ---

// pointerState tracks the single pointer (mouse or first touch) the viewer
// follows.
type pointerState struct {
	down   bool
	touch  bool
	startX float64
	startY float64
	lastX  float64
	lastY  float64
	marker *Marker // marker under the pointer at press time
}

// processInput is called from Viewer.Update. Injected events take priority
// over real input for the frame.
func (v *Viewer) processInput() {
	if v.processInjectedInput() {
		return
	}
	if !v.processTouches() {
		v.processMouse()
	}
	v.processKeys()
}

func (v *Viewer) processMouse() {
	mx, my := ebiten.CursorPosition()
	x, y := float64(mx), float64(my)

	w, h := v.renderer.Viewport()
	if x < 0 || y < 0 || x >= w || y >= h {
		if v.pointer.down && !v.pointer.touch {
			v.pointer.down = false
			v.pointer.marker = nil
			v.input.PointerLeave()
		}
		return
	}

	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	v.processPointer(x, y, pressed, false)
}

// processTouches follows the first active touch. Returns true while a touch
// is being tracked so mouse emulation does not double-feed the controller.
func (v *Viewer) processTouches() bool {
	v.touchIDs = ebiten.AppendTouchIDs(v.touchIDs[:0])
	if v.pointer.down && v.pointer.touch {
		for _, id := range v.touchIDs {
			if id == v.touchID {
				tx, ty := ebiten.TouchPosition(id)
				v.processPointer(float64(tx), float64(ty), true, true)
				return true
			}
		}
		v.processPointer(v.pointer.lastX, v.pointer.lastY, false, true)
		return true
	}
	if len(v.touchIDs) == 0 {
		return false
	}
	v.touchID = v.touchIDs[0]
	tx, ty := ebiten.TouchPosition(v.touchID)
	v.processPointer(float64(tx), float64(ty), true, true)
	return true
}

func (v *Viewer) processKeys() {
	var pitch, yaw float64
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		pitch++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		pitch--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		yaw++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		yaw--
	}
	if pitch != 0 || yaw != 0 {
		v.input.Pan(pitch, yaw)
	}
}

// processPointer runs the pointer state machine. A press on a marker handle
// never starts a drag; releasing over the same marker without leaving the
// dead zone activates it.
func (v *Viewer) processPointer(x, y float64, pressed, touch bool) {
	ps := &v.pointer

	switch {
	case pressed && !ps.down:
		ps.down = true
		ps.touch = touch
		ps.startX, ps.startY = x, y
		ps.lastX, ps.lastY = x, y
		ps.marker = v.overlay.hitTest(x, y)
		if ps.marker != nil {
			return
		}
		if touch {
			v.input.TouchStart(x, y)
		} else {
			v.input.PointerDown(x, y)
		}

	case !pressed && ps.down:
		m := ps.marker
		ps.down = false
		ps.marker = nil
		if m != nil {
			if v.overlay.hitTest(x, y) == m {
				v.activateMarker(m)
			}
			return
		}
		if !touch {
			v.input.PointerUp()
		}

	case pressed && ps.down:
		if x == ps.lastX && y == ps.lastY {
			return
		}
		ps.lastX, ps.lastY = x, y
		if ps.marker != nil {
			dx, dy := x-ps.startX, y-ps.startY
			if math.Sqrt(dx*dx+dy*dy) > v.cfg.DragDeadZone {
				// The press left the marker: treat the rest as a drag.
				ps.marker = nil
				if touch {
					v.input.TouchStart(x, y)
				} else {
					v.input.PointerDown(x, y)
				}
			}
			return
		}
		if touch {
			v.input.TouchMove(x, y)
		} else {
			v.input.PointerMove(x, y)
		}
	}
}
