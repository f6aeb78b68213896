package pano

import (
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// MarkerHandle is the visual element that represents a marker on screen. The
// core only sizes and positions it; what it looks like is up to the caller.
type MarkerHandle interface {
	// Size returns the handle's width and height in pixels.
	Size() (w, h float64)
	// SetPosition moves the handle's top-left corner.
	SetPosition(left, top float64)
}

// DrawableHandle is a MarkerHandle the viewer overlay can draw itself.
type DrawableHandle interface {
	MarkerHandle
	Draw(dst *ebiten.Image)
}

// SceneRef identifies the scene a marker switches to: an index into the
// viewer's scene list, a scene handle, or nothing.
type SceneRef struct {
	index int
	scene *Scene
	set   bool
}

// TargetIndex refers to the scene at index i.
func TargetIndex(i int) SceneRef {
	return SceneRef{index: i, set: true}
}

// TargetScene refers to the given scene.
func TargetScene(s *Scene) SceneRef {
	return SceneRef{index: -1, scene: s, set: s != nil}
}

// Valid reports whether the reference names a scene.
func (r SceneRef) Valid() bool { return r.set }

// Index returns the referenced index, or -1 for handle or empty references.
func (r SceneRef) Index() int {
	if !r.set || r.scene != nil {
		return -1
	}
	return r.index
}

// Scene returns the referenced scene handle, or nil for index references.
func (r SceneRef) Scene() *Scene { return r.scene }

// MarkerOptions configures NewMarker.
type MarkerOptions struct {
	Pitch, Yaw float64 // world angle in degrees
	Target     SceneRef
	// PitchRange bounds Pitch. The zero value uses DefaultPitchVisibleRange.
	PitchRange Range
	// OnActivate runs after the scene has started its fly-in.
	OnActivate func(*Marker)
	UserData   any
}

// Marker is a clickable point on a scene's sphere. Its angle is kept relative
// to the owning scene's orientation and follows every draw, so that world
// angle = relative angle + scene angle.
type Marker struct {
	handle MarkerHandle
	pitch  float64
	yaw    float64
	target SceneRef
	scene  *Scene

	pos     Vec2
	visible bool

	OnActivate func(*Marker)
	UserData   any
}

// NewMarker creates a marker at the given world angle. The pitch must lie
// within the pitch-visible range.
func NewMarker(handle MarkerHandle, opts MarkerOptions) (*Marker, error) {
	if handle == nil {
		return nil, fmt.Errorf("new marker: nil handle: %w", ErrInvalidMarker)
	}
	r := opts.PitchRange
	if r == (Range{}) {
		r = DefaultPitchVisibleRange
	}
	if !isFinite(opts.Pitch) || !isFinite(opts.Yaw) || opts.Pitch < r.Min || opts.Pitch > r.Max {
		return nil, fmt.Errorf("new marker: pitch %v outside [%v, %v]: %w", opts.Pitch, r.Min, r.Max, ErrInvalidMarker)
	}
	return &Marker{
		handle:     handle,
		pitch:      opts.Pitch,
		yaw:        opts.Yaw,
		target:     opts.Target,
		OnActivate: opts.OnActivate,
		UserData:   opts.UserData,
	}, nil
}

// Handle returns the marker's visual handle.
func (m *Marker) Handle() MarkerHandle { return m.handle }

// Target returns the scene the marker switches to.
func (m *Marker) Target() SceneRef { return m.target }

// Scene returns the owning scene, or nil before AddMarkers.
func (m *Marker) Scene() *Scene { return m.scene }

// Angle returns the marker angle relative to the owning scene's current
// orientation. Before the marker is added it is the world angle.
func (m *Marker) Angle() Angle {
	return Angle{Pitch: m.pitch, Yaw: m.yaw}
}

// WorldAngle returns the marker's angle in the scene's un-rotated space.
func (m *Marker) WorldAngle() Angle {
	if m.scene == nil {
		return m.Angle()
	}
	return Angle{
		Pitch: m.pitch + m.scene.pitch,
		Yaw:   NormalizeAngle(m.yaw + m.scene.yaw),
	}
}

// Position returns the handle's last top-left position.
func (m *Marker) Position() Vec2 { return m.pos }

// Visible reports whether the marker is in front of the camera.
func (m *Marker) Visible() bool { return m.visible }

// Bounds returns the handle's screen rectangle.
func (m *Marker) Bounds() Rect {
	w, h := m.handle.Size()
	return Rect{X: m.pos.X, Y: m.pos.Y, Width: w, Height: h}
}

// Activate behaves like a click on the marker's handle: the owning scene
// starts its fly-in, then OnActivate runs.
func (m *Marker) Activate() {
	if m.scene == nil {
		return
	}
	m.scene.OnMarkerActivated(m)
	if m.OnActivate != nil {
		m.OnActivate(m)
	}
}

// follow moves the relative angle opposite to a scene rotation.
func (m *Marker) follow(deltaPitch, deltaYaw float64) {
	m.pitch -= deltaPitch
	m.yaw = NormalizeAngle(m.yaw - deltaYaw)
}

// place projects the marker for a viewport and pushes the result to the
// handle.
func (m *Marker) place(viewW, viewH, fov float64) {
	hw, hh := m.handle.Size()
	m.pos, m.visible = projectMarker(m.Angle(), viewW, viewH, hw, hh, fov)
	m.handle.SetPosition(m.pos.X, m.pos.Y)
}

// projectMarker computes the top-left position of a handle of size hw x hh
// for a marker at relative angle a. Markers facing away from the camera
// (yaw in [90, 270]) are pushed off-screen and reported invisible.
//
// The horizontal and vertical offsets use tan(angle) scaled by half the
// viewport height and 90/fov, which matches the 3D projection at fov 90.
func projectMarker(a Angle, viewW, viewH, hw, hh, fov float64) (Vec2, bool) {
	cx := (viewW - hw) / 2
	cy := (viewH - hh) / 2
	if viewW <= 0 || viewH <= 0 || fov <= 0 {
		return Vec2{cx, cy}, false
	}
	scale := 90 / fov

	deltaTop := math.Tan(DegToRad(math.Abs(a.Pitch))) * (viewH / 2) * scale
	top := cy + deltaTop
	if a.Pitch > 0 {
		top = cy - deltaTop
	}

	yaw := NormalizeAngle(a.Yaw)
	visible := true
	var deltaLeft float64
	switch {
	case yaw < 90:
		deltaLeft = math.Tan(DegToRad(yaw))
	case yaw > 270:
		deltaLeft = -math.Tan(DegToRad(360 - yaw))
	default:
		deltaLeft = offscreenDeltaLeft
		visible = false
	}
	deltaLeft *= (viewW / 2) * (viewH / viewW) * scale

	return Vec2{X: cx + deltaLeft, Y: top}, visible
}

// ImageHandle is a DrawableHandle backed by an ebiten image.
type ImageHandle struct {
	Image     *ebiten.Image
	left, top float64
}

// NewImageHandle wraps img as a marker handle.
func NewImageHandle(img *ebiten.Image) *ImageHandle {
	return &ImageHandle{Image: img}
}

// NewLabelHandle renders text on a translucent plate using the debug font.
func NewLabelHandle(text string) *ImageHandle {
	w := 6*len(text) + 8
	img := ebiten.NewImage(max(w, 16), 20)
	img.Fill(Color{0, 0, 0, 0.6}.RGBA())
	ebitenutil.DebugPrintAt(img, text, 4, 2)
	return NewImageHandle(img)
}

// Size implements MarkerHandle.
func (h *ImageHandle) Size() (float64, float64) {
	if h.Image == nil {
		return 0, 0
	}
	b := h.Image.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

// SetPosition implements MarkerHandle.
func (h *ImageHandle) SetPosition(left, top float64) {
	h.left, h.top = left, top
}

// Draw implements DrawableHandle.
func (h *ImageHandle) Draw(dst *ebiten.Image) {
	if h.Image == nil {
		return
	}
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(h.left, h.top)
	dst.DrawImage(h.Image, &op)
}

// Overlay is the layer above the panorama that holds the active scene's
// marker handles, in insertion order.
type Overlay struct {
	markers []*Marker
}

// Markers returns the attached markers. The returned slice MUST NOT be mutated.
func (o *Overlay) Markers() []*Marker { return o.markers }

func (o *Overlay) attach(m *Marker) {
	for _, x := range o.markers {
		if x == m {
			return
		}
	}
	o.markers = append(o.markers, m)
}

func (o *Overlay) detach(m *Marker) {
	for i, x := range o.markers {
		if x == m {
			copy(o.markers[i:], o.markers[i+1:])
			o.markers[len(o.markers)-1] = nil
			o.markers = o.markers[:len(o.markers)-1]
			return
		}
	}
}

// hitTest returns the topmost visible marker containing (x, y).
func (o *Overlay) hitTest(x, y float64) *Marker {
	for i := len(o.markers) - 1; i >= 0; i-- {
		m := o.markers[i]
		if m.visible && m.Bounds().Contains(x, y) {
			return m
		}
	}
	return nil
}

// Draw draws every visible drawable handle.
func (o *Overlay) Draw(dst *ebiten.Image) {
	for _, m := range o.markers {
		if !m.visible {
			continue
		}
		if d, ok := m.handle.(DrawableHandle); ok {
			d.Draw(dst)
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
