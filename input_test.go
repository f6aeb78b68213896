package pano

import (
	"math"
	"testing"
)

func dragDegrees(offset, half float64) float64 {
	return RadToDeg(math.Atan(offset/half)) * DefaultMovingRate
}

func newInputViewer(t *testing.T) (*Viewer, *Scene) {
	t.Helper()
	v, _, _ := newTestViewer(t, ViewerConfig{})
	s := newCubeScene(t)
	v.AddScene(s)
	renderFirst(t, v)
	return v, s
}

func TestDragRotatesByAtanOfOffset(t *testing.T) {
	v, s := newInputViewer(t)
	c := v.Input()
	c.PointerDown(400, 300)
	if !c.Dragging() {
		t.Fatal("PointerDown should start a drag")
	}

	c.PointerMove(500, 300)
	wantYaw := NormalizeAngle(-dragDegrees(100, 400))
	if got := s.Angle().Yaw; !approxEqual(got, wantYaw, 1e-9) {
		t.Errorf("yaw = %f, want %f", got, wantYaw)
	}
	if s.Angle().Pitch != 0 {
		t.Errorf("horizontal drag changed pitch to %f", s.Angle().Pitch)
	}

	// Offsets are measured from the previous point, not the press.
	c.PointerMove(500, 250)
	wantPitch := -dragDegrees(50, 300)
	if got := s.Angle().Pitch; !approxEqual(got, wantPitch, 1e-9) {
		t.Errorf("pitch = %f, want %f", got, wantPitch)
	}

	c.PointerUp()
	before := s.Angle()
	c.PointerMove(0, 0)
	if s.Angle() != before {
		t.Error("move after PointerUp rotated the camera")
	}
}

func TestDragZeroesPitchAtBoundary(t *testing.T) {
	v, s := newInputViewer(t)
	_ = s.Draw(100, 0) // pitch at the top of [-41, 41]
	c := v.Input()
	c.PointerDown(400, 300)
	c.PointerMove(300, 400)
	if got := s.Angle().Pitch; got != 41 {
		t.Errorf("pitch = %f, want 41", got)
	}
	if got := s.Angle().Yaw; !approxEqual(got, dragDegrees(100, 400), 1e-9) {
		t.Errorf("yaw = %f, want %f", got, dragDegrees(100, 400))
	}

	// Moving away from the boundary still works.
	c.PointerMove(300, 350)
	if got := s.Angle().Pitch; got >= 41 {
		t.Errorf("pitch = %f, want below 41", got)
	}
}

func TestDragIgnoredWhileAnimating(t *testing.T) {
	v, s := newInputViewer(t)
	_ = s.Move(0, 90, AnimationOptions{Animate: true})
	c := v.Input()
	c.PointerDown(400, 300)
	c.PointerMove(600, 300)
	if got := s.Angle().Yaw; got != 0 {
		t.Errorf("yaw = %f, want 0 while animating", got)
	}

	s.anim.cancelAll()
	// The start point followed the pointer, so no jump on the next move.
	c.PointerMove(600, 300)
	if got := s.Angle().Yaw; got != 0 {
		t.Errorf("yaw = %f after re-anchor, want 0", got)
	}
}

func TestTouchDrag(t *testing.T) {
	v, s := newInputViewer(t)
	c := v.Input()
	c.TouchStart(400, 300)
	c.TouchMove(400, 360)
	want := dragDegrees(60, 300)
	if got := s.Angle().Pitch; !approxEqual(got, want, 1e-9) {
		t.Errorf("pitch = %f, want %f", got, want)
	}
}

func TestPointerLeaveEndsDrag(t *testing.T) {
	v, _ := newInputViewer(t)
	c := v.Input()
	c.PointerDown(10, 10)
	c.PointerLeave()
	if c.Dragging() {
		t.Error("still dragging after PointerLeave")
	}
}

func TestUnboundControllerIgnoresInput(t *testing.T) {
	var c InteractionController
	c.PointerDown(1, 1)
	c.PointerMove(5, 5)
	c.Pan(1, 1)
	if c.Dragging() || c.Scene() != nil {
		t.Error("unbound controller reacted to input")
	}
}

func TestPan(t *testing.T) {
	v, s := newInputViewer(t)
	v.Input().Pan(1, -1)
	if a := s.Angle(); a.Pitch != DefaultKeyStep || a.Yaw != 360-DefaultKeyStep {
		t.Errorf("angle = %+v, want (%v, %v)", a, DefaultKeyStep, 360-DefaultKeyStep)
	}

	_ = s.Move(0, 10, AnimationOptions{Animate: true})
	before := s.Angle()
	v.Input().Pan(1, 1)
	if s.Angle() != before {
		t.Error("Pan moved the camera during an animation")
	}
}

func newMarkerViewer(t *testing.T) (*Viewer, *Scene, *Marker) {
	t.Helper()
	v, _, _ := newTestViewer(t, ViewerConfig{})
	s := newCubeScene(t)
	v.AddScene(s)
	v.AddScene(newCubeScene(t))
	m, err := NewMarker(&fakeHandle{w: 20, h: 20}, MarkerOptions{Target: TargetIndex(1)})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddMarkers(m); err != nil {
		t.Fatal(err)
	}
	renderFirst(t, v)
	return v, s, m
}

func TestPointerClickActivatesMarker(t *testing.T) {
	v, s, m := newMarkerViewer(t)
	var got *Marker
	v.OnMarkerActivated(func(m *Marker) { got = m })

	// The marker sits centred at (390, 290)-(410, 310).
	v.processPointer(400, 300, true, false)
	if v.Input().Dragging() {
		t.Error("press on a marker started a drag")
	}
	v.processPointer(402, 301, true, false) // inside the dead zone
	v.processPointer(402, 301, false, false)
	if got != m {
		t.Fatal("click did not activate the marker")
	}
	if !s.IsAnimating() {
		t.Error("activation did not start the fly-in")
	}
}

func TestPointerDragOffMarkerDoesNotActivate(t *testing.T) {
	v, s, _ := newMarkerViewer(t)
	activated := false
	v.OnMarkerActivated(func(*Marker) { activated = true })

	v.processPointer(400, 300, true, false)
	v.processPointer(420, 300, true, false) // leaves the dead zone, becomes a drag
	if !v.Input().Dragging() {
		t.Fatal("leaving the dead zone should start a drag")
	}
	v.processPointer(460, 300, true, false)
	v.processPointer(400, 300, false, false)
	if activated {
		t.Error("drag activated the marker")
	}
	want := NormalizeAngle(-dragDegrees(40, 400))
	if got := s.Angle().Yaw; !approxEqual(got, want, 1e-9) {
		t.Errorf("yaw = %f, want %f", got, want)
	}
	if v.Input().Dragging() {
		t.Error("release should end the drag")
	}
}

func TestPointerReleaseAwayFromMarker(t *testing.T) {
	v, _, _ := newMarkerViewer(t)
	activated := false
	v.OnMarkerActivated(func(*Marker) { activated = true })
	v.processPointer(400, 300, true, false)
	v.processPointer(700, 50, false, false)
	if activated {
		t.Error("release outside the marker activated it")
	}
}

func TestPointerTouchDrag(t *testing.T) {
	v, s, _ := newMarkerViewer(t)
	v.processPointer(100, 300, true, true)
	v.processPointer(100, 240, true, true)
	v.processPointer(100, 240, false, true)
	want := -dragDegrees(60, 300)
	if got := s.Angle().Pitch; !approxEqual(got, want, 1e-9) {
		t.Errorf("pitch = %f, want %f", got, want)
	}
}

func TestCallbackHandleRemove(t *testing.T) {
	var reg handlerRegistry
	for i := uint32(1); i <= 3; i++ {
		reg.angleChange = append(reg.angleChange, angleHandler{id: i, fn: func(Angle) {}})
	}
	CallbackHandle{id: 2, reg: &reg, event: EventAngleChange}.Remove()
	if len(reg.angleChange) != 2 || reg.angleChange[0].id != 1 || reg.angleChange[1].id != 3 {
		t.Errorf("handlers = %+v", reg.angleChange)
	}
	CallbackHandle{id: 9, reg: &reg, event: EventAngleChange}.Remove()
	if len(reg.angleChange) != 2 {
		t.Error("removing an unknown id changed the list")
	}
}

func TestSwitchResetsPointer(t *testing.T) {
	v, _, _ := newTestViewer(t, ViewerConfig{})
	v.AddScene(newCubeScene(t))
	v.AddScene(newCubeScene(t))
	renderFirst(t, v)
	v.processPointer(100, 100, true, false)
	if err := v.SetScene(1); err != nil {
		t.Fatal(err)
	}
	if v.pointer.down || v.Input().Dragging() {
		t.Error("pointer state survived a scene switch")
	}
}
