package pano

import (
	"errors"
	"math"
	"testing"
)

func TestProjectMarkerCenter(t *testing.T) {
	pos, visible := projectMarker(Angle{}, 800, 600, 20, 10, 90)
	if !visible {
		t.Fatal("marker straight ahead should be visible")
	}
	if pos.X != 390 || pos.Y != 295 {
		t.Errorf("pos = %+v, want (390, 295)", pos)
	}
}

func TestProjectMarkerVertical(t *testing.T) {
	// tan(45) * 300 * 90/90 = 300 pixels above center.
	pos, _ := projectMarker(Angle{Pitch: 45}, 800, 600, 0, 0, 90)
	if !approxEqual(pos.Y, 0, 1e-9) {
		t.Errorf("pitch 45: top = %f, want 0", pos.Y)
	}
	pos, _ = projectMarker(Angle{Pitch: -45}, 800, 600, 0, 0, 90)
	if !approxEqual(pos.Y, 600, 1e-9) {
		t.Errorf("pitch -45: top = %f, want 600", pos.Y)
	}
	// Halving the field of view doubles the offset.
	pos, _ = projectMarker(Angle{Pitch: 10}, 800, 600, 0, 0, 45)
	want := 300 - math.Tan(DegToRad(10))*300*2
	if !approxEqual(pos.Y, want, 1e-9) {
		t.Errorf("fov 45: top = %f, want %f", pos.Y, want)
	}
}

func TestProjectMarkerHorizontal(t *testing.T) {
	// deltaLeft = tan(yaw) * (W/2) * (H/W) = tan(yaw) * 300.
	pos, _ := projectMarker(Angle{Yaw: 45}, 800, 600, 0, 0, 90)
	if !approxEqual(pos.X, 400+300, 1e-9) {
		t.Errorf("yaw 45: left = %f, want 700", pos.X)
	}
	pos, _ = projectMarker(Angle{Yaw: 315}, 800, 600, 0, 0, 90)
	if !approxEqual(pos.X, 400-300, 1e-9) {
		t.Errorf("yaw 315: left = %f, want 100", pos.X)
	}
	pos, _ = projectMarker(Angle{Yaw: -45}, 800, 600, 0, 0, 90)
	if !approxEqual(pos.X, 100, 1e-9) {
		t.Errorf("yaw -45: left = %f, want 100", pos.X)
	}
}

func TestProjectMarkerOcclusionBoundary(t *testing.T) {
	offscreen := 400 + offscreenDeltaLeft*300
	tests := []struct {
		yaw     float64
		visible bool
	}{
		{89.9, true},
		{90, false},
		{180, false},
		{270, false},
		{270.1, true},
		{0, true},
	}
	for _, tt := range tests {
		pos, visible := projectMarker(Angle{Yaw: tt.yaw}, 800, 600, 0, 0, 90)
		if visible != tt.visible {
			t.Errorf("yaw %v: visible = %v, want %v", tt.yaw, visible, tt.visible)
		}
		if !tt.visible && pos.X != offscreen {
			t.Errorf("yaw %v: left = %f, want off-screen %f", tt.yaw, pos.X, offscreen)
		}
		if tt.visible && (math.IsInf(pos.X, 0) || math.IsNaN(pos.X)) {
			t.Errorf("yaw %v: left = %f, want finite", tt.yaw, pos.X)
		}
	}
	if offscreen <= 800 {
		t.Errorf("off-screen left %f is inside the viewport", offscreen)
	}
}

func TestProjectMarkerDegenerateViewport(t *testing.T) {
	if _, visible := projectMarker(Angle{}, 0, 0, 10, 10, 90); visible {
		t.Error("zero viewport should hide markers")
	}
}

func TestNewMarkerValidation(t *testing.T) {
	h := &fakeHandle{w: 10, h: 10}
	if _, err := NewMarker(nil, MarkerOptions{}); !errors.Is(err, ErrInvalidMarker) {
		t.Errorf("nil handle: err = %v", err)
	}
	for _, p := range []float64{-87, 87, math.NaN()} {
		if _, err := NewMarker(h, MarkerOptions{Pitch: p}); !errors.Is(err, ErrInvalidMarker) {
			t.Errorf("pitch %v: err = %v, want ErrInvalidMarker", p, err)
		}
	}
	if _, err := NewMarker(h, MarkerOptions{Pitch: 50, PitchRange: Range{Min: -40, Max: 40}}); !errors.Is(err, ErrInvalidMarker) {
		t.Errorf("custom range: err = %v", err)
	}
	m, err := NewMarker(h, MarkerOptions{Pitch: 86, Yaw: 400, Target: TargetIndex(1)})
	if err != nil {
		t.Fatalf("valid marker: %v", err)
	}
	if m.Target().Index() != 1 || m.Handle() != h {
		t.Errorf("target = %d, handle = %v", m.Target().Index(), m.Handle())
	}
}

func TestSceneRef(t *testing.T) {
	var none SceneRef
	if none.Valid() || none.Index() != -1 || none.Scene() != nil {
		t.Errorf("zero ref = %+v", none)
	}
	if r := TargetIndex(2); !r.Valid() || r.Index() != 2 {
		t.Errorf("TargetIndex(2) = %+v", r)
	}
	s := &Scene{}
	if r := TargetScene(s); !r.Valid() || r.Index() != -1 || r.Scene() != s {
		t.Errorf("TargetScene = %+v", r)
	}
	if TargetScene(nil).Valid() {
		t.Error("TargetScene(nil) should be invalid")
	}
}

func TestMarkerFollowsDraws(t *testing.T) {
	v, _, _ := newTestViewer(t, ViewerConfig{})
	s := newCubeScene(t)
	v.AddScene(s)
	h := &fakeHandle{w: 20, h: 20}
	m, err := NewMarker(h, MarkerOptions{Pitch: 10, Yaw: 30})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddMarkers(m); err != nil {
		t.Fatal(err)
	}
	if err := s.Draw(5, 20); err != nil {
		t.Fatal(err)
	}
	rel := m.Angle()
	if !approxEqual(rel.Pitch, 5, 1e-9) || !approxEqual(rel.Yaw, 10, 1e-9) {
		t.Errorf("relative angle = %+v, want (5, 10)", rel)
	}
	world := m.WorldAngle()
	if !approxEqual(world.Pitch, 10, 1e-9) || !approxEqual(world.Yaw, 30, 1e-9) {
		t.Errorf("world angle = %+v, want (10, 30)", world)
	}
	want, _ := projectMarker(rel, 800, 600, 20, 20, s.FieldOfView())
	if h.left != want.X || h.top != want.Y {
		t.Errorf("handle at (%f, %f), want (%f, %f)", h.left, h.top, want.X, want.Y)
	}
}

func TestMarkerFollowsClampedPitch(t *testing.T) {
	v, _, _ := newTestViewer(t, ViewerConfig{})
	s := newCubeScene(t, WithFieldOfView(60))
	v.AddScene(s)
	m, _ := NewMarker(&fakeHandle{}, MarkerOptions{Pitch: 20})
	if err := s.AddMarkers(m); err != nil {
		t.Fatal(err)
	}
	_ = s.Draw(100, 0) // clamps at 56
	_ = s.Draw(100, 0) // no movement
	if got := m.WorldAngle().Pitch; !approxEqual(got, 20, 1e-9) {
		t.Errorf("world pitch after clamped draws = %f, want 20", got)
	}
}

func TestOverlayHitTest(t *testing.T) {
	var o Overlay
	a := &Marker{handle: &fakeHandle{w: 20, h: 20}, pos: Vec2{100, 100}, visible: true}
	b := &Marker{handle: &fakeHandle{w: 20, h: 20}, pos: Vec2{110, 110}, visible: true}
	hidden := &Marker{handle: &fakeHandle{w: 20, h: 20}, pos: Vec2{0, 0}, visible: false}
	o.attach(a)
	o.attach(b)
	o.attach(hidden)
	o.attach(a) // duplicate attach is ignored

	if len(o.Markers()) != 3 {
		t.Fatalf("len = %d, want 3", len(o.Markers()))
	}
	if got := o.hitTest(115, 115); got != b {
		t.Error("overlap should hit the topmost marker")
	}
	if got := o.hitTest(105, 105); got != a {
		t.Error("expected marker a")
	}
	if got := o.hitTest(5, 5); got != nil {
		t.Error("hidden marker should not be hit")
	}

	o.detach(b)
	if got := o.hitTest(115, 115); got != a {
		t.Error("after detach, expected marker a")
	}
	o.detach(b) // detaching twice is a no-op
	if len(o.Markers()) != 2 {
		t.Errorf("len = %d, want 2", len(o.Markers()))
	}
}
