package pano

import "testing"

func TestInjectClickActivatesMarker(t *testing.T) {
	v, s, m := newMarkerViewer(t)
	var got *Marker
	v.OnMarkerActivated(func(m *Marker) { got = m })

	v.InjectClick(400, 300)
	if v.PendingInjections() != 2 {
		t.Fatalf("expected 2 queued events, got %d", v.PendingInjections())
	}

	// Frame 1: press
	if !v.processInjectedInput() {
		t.Fatal("expected an event to be consumed")
	}
	if got != nil {
		t.Error("activation should not fire on the press frame")
	}

	// Frame 2: release
	v.processInjectedInput()
	if v.PendingInjections() != 0 {
		t.Fatalf("expected empty queue, got %d", v.PendingInjections())
	}
	if got != m {
		t.Error("activation should fire on the release frame")
	}
	if !s.IsAnimating() {
		t.Error("expected the fly-in to start")
	}
}

func TestInjectDrag(t *testing.T) {
	v, s := newInputViewer(t)
	// Press, three moves, release.
	v.InjectDrag(400, 300, 200, 300, 5)
	if v.PendingInjections() != 5 {
		t.Fatalf("expected 5 queued events, got %d", v.PendingInjections())
	}
	wantX := []float64{400, 350, 300, 250, 200}
	for i, want := range wantX {
		if got := v.injectQueue[i].x; !approxEqual(got, want, 1e-9) {
			t.Errorf("event %d x = %f, want %f", i, got, want)
		}
	}
	if v.injectQueue[4].pressed {
		t.Error("last event should be a release")
	}

	for v.processInjectedInput() {
	}
	// Three moves of 50 pixels to the left, each turning right.
	want := 3 * dragDegrees(50, 400)
	if got := s.Angle().Yaw; !approxEqual(got, want, 1e-9) {
		t.Errorf("yaw = %f, want %f", got, want)
	}
	if v.Input().Dragging() {
		t.Error("drag should end on release")
	}
}

func TestInjectDragMinFrames(t *testing.T) {
	v, _ := newInputViewer(t)
	v.InjectDrag(0, 0, 100, 100, 1)
	if v.PendingInjections() != 2 {
		t.Errorf("expected press and release only, got %d", v.PendingInjections())
	}
}

func TestInjectQueueOrder(t *testing.T) {
	v, _ := newInputViewer(t)
	v.InjectPress(1, 2)
	v.InjectMove(3, 4)
	v.InjectRelease(5, 6)
	want := []syntheticPointerEvent{{1, 2, true}, {3, 4, true}, {5, 6, false}}
	for i, w := range want {
		if v.injectQueue[i] != w {
			t.Errorf("event %d = %+v, want %+v", i, v.injectQueue[i], w)
		}
	}
}

func TestProcessInjectedInputEmptyQueue(t *testing.T) {
	v, _ := newInputViewer(t)
	if v.processInjectedInput() {
		t.Error("empty queue should report no event")
	}
}
