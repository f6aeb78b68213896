package pano

// syntheticPointerEvent is a single injected pointer event in viewport
// coordinates, the same space as screenshots and marker positions.
type syntheticPointerEvent struct {
	x, y    float64
	pressed bool
}

// InjectPress queues a pointer press at (x, y). The event is consumed on the
// next Update.
func (v *Viewer) InjectPress(x, y float64) {
	v.injectQueue = append(v.injectQueue, syntheticPointerEvent{x: x, y: y, pressed: true})
}

// InjectMove queues a pointer move with the button held. Use it between
// InjectPress and InjectRelease to drag the panorama.
func (v *Viewer) InjectMove(x, y float64) {
	v.injectQueue = append(v.injectQueue, syntheticPointerEvent{x: x, y: y, pressed: true})
}

// InjectRelease queues a pointer release at (x, y).
func (v *Viewer) InjectRelease(x, y float64) {
	v.injectQueue = append(v.injectQueue, syntheticPointerEvent{x: x, y: y})
}

// InjectClick queues a press and a release at the same point. Consumes two
// frames. Clicking a marker handle activates the marker.
func (v *Viewer) InjectClick(x, y float64) {
	v.InjectPress(x, y)
	v.InjectRelease(x, y)
}

// InjectDrag queues a press at (fromX, fromY), frames-2 interpolated moves
// and a release at (toX, toY). The sequence consumes frames frames; the
// minimum is 2.
func (v *Viewer) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	v.InjectPress(fromX, fromY)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		v.InjectMove(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t)
	}
	v.InjectRelease(toX, toY)
}

// PendingInjections returns the number of queued synthetic events.
func (v *Viewer) PendingInjections() int { return len(v.injectQueue) }

// processInjectedInput pops one queued event and feeds it through the
// pointer state machine. Returns true if an event was consumed, in which
// case real input is skipped for the frame.
func (v *Viewer) processInjectedInput() bool {
	if len(v.injectQueue) == 0 {
		return false
	}
	evt := v.injectQueue[0]
	copy(v.injectQueue, v.injectQueue[1:])
	v.injectQueue = v.injectQueue[:len(v.injectQueue)-1]

	v.processPointer(evt.x, evt.y, evt.pressed, false)
	return true
}
