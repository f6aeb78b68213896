package pano

import (
	"context"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// sceneState tracks texture availability. No draw call is issued for a scene
// that is not ready.
type sceneState uint8

const (
	sceneUnloaded sceneState = iota
	sceneLoading
	sceneReady
	sceneFailed
)

type textureResult struct {
	images []image.Image
	err    error
}

// SceneOption configures NewScene.
type SceneOption func(*Scene)

// WithName sets the scene name used in logs and tour files.
func WithName(name string) SceneOption {
	return func(s *Scene) { s.Name = name }
}

// WithAngle sets the initial orientation.
func WithAngle(a Angle) SceneOption {
	return func(s *Scene) { s.initial = a }
}

// WithFieldOfView sets the initial field of view. It must lie in (0, 180).
func WithFieldOfView(fov float64) SceneOption {
	return func(s *Scene) {
		s.fov = fov
		s.fovSet = true
	}
}

// WithPitchRange sets the pitch-visible range.
func WithPitchRange(r Range) SceneOption {
	return func(s *Scene) {
		s.pitchRange = r
		s.rangeSet = true
	}
}

// Scene is one panorama node: the camera state, the geometry with its
// textures, and the markers placed on it.
//
// A Scene is not safe for concurrent use. All calls, including the ones made
// by animations and input, happen on the goroutine driving Viewer.Update.
type Scene struct {
	Name string

	pitch      float64
	yaw        float64
	fov        float64
	pitchRange Range
	initial    Angle
	fovSet     bool
	rangeSet   bool

	geometry Geometry
	sources  []TextureSource
	textures []Texture
	markers  []*Marker

	handlers handlerRegistry
	anim     animator
	viewer   *Viewer
	active   bool
	state    sceneState
	mvp      Mat4
	flyIn    *flyIn

	// Guarded by mu: texture loads finish on loader goroutines.
	mu      sync.Mutex
	loadGen uint64
	pending *textureResult
}

// NewScene creates a scene for geometry with one texture source per
// geometry texture slot.
func NewScene(geometry Geometry, textures []TextureSource, opts ...SceneOption) (*Scene, error) {
	if geometry == nil {
		return nil, fmt.Errorf("new scene: nil geometry: %w", ErrMissingPrimitive)
	}
	s := &Scene{
		fov:        DefaultFieldOfView,
		pitchRange: DefaultPitchVisibleRange,
		geometry:   geometry,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := checkTextureSet(geometry, textures); err != nil {
		return nil, fmt.Errorf("new scene %q: %w", s.Name, err)
	}
	if !validFieldOfView(s.fov) {
		return nil, fmt.Errorf("new scene %q: field of view %v: %w", s.Name, s.fov, ErrFieldOfViewRange)
	}
	if s.pitchRange.Min >= s.pitchRange.Max {
		return nil, fmt.Errorf("new scene %q: pitch range [%v, %v]: %w",
			s.Name, s.pitchRange.Min, s.pitchRange.Max, ErrDegenerateProjection)
	}
	s.sources = slices.Clone(textures)
	s.pitch = s.PitchRange().Clamp(finiteOr(s.initial.Pitch, 0))
	s.yaw = NormalizeAngle(s.initial.Yaw)
	return s, nil
}

func checkTextureSet(g Geometry, textures []TextureSource) error {
	if len(textures) != g.TextureCount() {
		return fmt.Errorf("%s geometry needs %d textures, got %d: %w",
			g.Kind(), g.TextureCount(), len(textures), ErrMissingPrimitive)
	}
	for i, t := range textures {
		if t.Src == "" && t.Image == nil {
			return fmt.Errorf("texture %d is empty: %w", i, ErrMissingPrimitive)
		}
	}
	return nil
}

func validFieldOfView(v float64) bool {
	return v > 0 && v < 180
}

func finiteOr(v, fallback float64) float64 {
	if isFinite(v) {
		return v
	}
	return fallback
}

// configure applies viewer-level defaults the scene did not set itself.
func (s *Scene) configure(v *Viewer) {
	s.viewer = v
	s.anim.clock = v.clock
	if !s.fovSet {
		s.fov = v.cfg.FieldOfView
	}
	if !s.rangeSet {
		s.pitchRange = v.cfg.PitchRange
	}
	s.pitch = s.PitchRange().Clamp(s.pitch)
}

// Kind returns the geometry kind.
func (s *Scene) Kind() GeometryKind { return s.geometry.Kind() }

// Geometry returns the scene's geometry strategy.
func (s *Scene) Geometry() Geometry { return s.geometry }

// TextureSources returns the current texture set.
func (s *Scene) TextureSources() []TextureSource { return slices.Clone(s.sources) }

// Angle returns the current orientation.
func (s *Scene) Angle() Angle {
	return Angle{Pitch: s.pitch, Yaw: s.yaw}
}

// FieldOfView returns the current vertical field of view in degrees.
func (s *Scene) FieldOfView() float64 { return s.fov }

// PitchVisibleRange returns the absolute pitch extremes.
func (s *Scene) PitchVisibleRange() Range { return s.pitchRange }

// PitchRange returns the range pitch is clamped into, which shrinks by half
// the field of view at each end.
func (s *Scene) PitchRange() Range {
	half := s.fov / 2
	return Range{Min: s.pitchRange.Min + half, Max: s.pitchRange.Max - half}
}

// IsAnimating reports whether an angle or field-of-view animation is running.
func (s *Scene) IsAnimating() bool { return s.anim.busy() }

// Ready reports whether the textures are uploaded and the scene draws.
func (s *Scene) Ready() bool { return s.state == sceneReady }

// Failed reports whether the last texture load failed.
func (s *Scene) Failed() bool { return s.state == sceneFailed }

// Markers returns the attached markers. The returned slice MUST NOT be mutated.
func (s *Scene) Markers() []*Marker { return s.markers }

// ViewProjection returns the matrix used by the last model draw.
func (s *Scene) ViewProjection() Mat4 { return s.mvp }

// Draw rotates the camera by the given deltas and redraws. Pitch is clamped
// into PitchRange and yaw normalized into [0, 360). Markers follow the
// rotation and angle-change listeners fire with the result. While textures
// are loading only the camera state and markers are updated.
func (s *Scene) Draw(deltaPitch, deltaYaw float64) error {
	deltaPitch = finiteOr(deltaPitch, 0)
	deltaYaw = finiteOr(deltaYaw, 0)

	prev := s.pitch
	s.pitch = s.PitchRange().Clamp(s.pitch + deltaPitch)
	s.yaw = NormalizeAngle(s.yaw + deltaYaw)

	var err error
	if s.state == sceneReady {
		err = s.drawModel()
	}
	// Markers follow the applied pitch change, not the requested one, so a
	// clamped draw cannot drift them.
	s.renderMarkers(s.pitch-prev, deltaYaw)
	s.fireAngleChange()
	return err
}

func (s *Scene) renderer() Renderer {
	if s.viewer == nil {
		return nil
	}
	return s.viewer.renderer
}

func (s *Scene) meshCache() *MeshCache {
	if s.viewer == nil {
		return nil
	}
	return s.viewer.meshes
}

func (s *Scene) drawModel() error {
	r := s.renderer()
	if r == nil {
		return fmt.Errorf("draw scene %q: no renderer: %w", s.Name, ErrMissingPrimitive)
	}
	debug := s.viewer.debug
	var stats debugStats
	var t0 time.Time
	if debug {
		t0 = time.Now()
	}

	w, h := r.Viewport()
	mvp, err := ViewProjection(Projection{
		Pitch:       s.pitch,
		Yaw:         s.yaw,
		FieldOfView: s.fov,
		Aspect:      w / h,
		Near:        DefaultNear,
		Far:         DefaultFar,
	})
	if err != nil {
		return fmt.Errorf("draw scene %q: %w", s.Name, err)
	}
	s.mvp = mvp

	meshes := s.geometry.Meshes(s.meshCache())
	if len(meshes) != len(s.textures) {
		return fmt.Errorf("draw scene %q: %d meshes for %d textures: %w",
			s.Name, len(meshes), len(s.textures), ErrMissingPrimitive)
	}

	if debug {
		stats.projectTime = time.Since(t0)
		t0 = time.Now()
	}

	r.Clear()
	for i, mesh := range meshes {
		tex := s.textures[i]
		if tex == nil {
			return fmt.Errorf("draw scene %q: texture %d: %w", s.Name, i, ErrMissingPrimitive)
		}
		if err := r.DrawElements(mvp, mesh, tex); err != nil {
			return fmt.Errorf("draw scene %q: mesh %d: %w", s.Name, i, err)
		}
		stats.triangles += mesh.TriangleCount()
		stats.drawCalls++
	}

	if debug {
		stats.drawTime = time.Since(t0)
		s.viewer.debugLog(s, stats)
	}
	return nil
}

func (s *Scene) renderMarkers(deltaPitch, deltaYaw float64) {
	var w, h float64
	r := s.renderer()
	if r != nil {
		w, h = r.Viewport()
	}
	for _, m := range s.markers {
		m.follow(deltaPitch, deltaYaw)
		if r != nil {
			m.place(w, h, s.fov)
		}
	}
}

func (s *Scene) fireAngleChange() {
	a := s.Angle()
	for _, h := range s.handlers.angleChange {
		h.fn(a)
	}
	if s.active && s.viewer != nil {
		s.viewer.emit(ViewerEvent{
			Type:        EventAngleChange,
			SceneIndex:  s.viewer.index,
			TargetIndex: -1,
			Pitch:       a.Pitch,
			Yaw:         a.Yaw,
			FieldOfView: s.fov,
		})
	}
}

// OnAngleChange registers a callback that receives the orientation after
// every draw.
func (s *Scene) OnAngleChange(fn func(Angle)) CallbackHandle {
	s.handlers.nextID++
	id := s.handlers.nextID
	s.handlers.angleChange = append(s.handlers.angleChange, angleHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &s.handlers, event: EventAngleChange}
}

// RemoveAllListeners drops every angle-change callback.
func (s *Scene) RemoveAllListeners() {
	s.handlers.angleChange = nil
}

func (s *Scene) animationDuration(opts AnimationOptions) time.Duration {
	if opts.Duration > 0 {
		return opts.Duration
	}
	if s.viewer != nil && s.viewer.cfg.AnimationDuration > 0 {
		return s.viewer.cfg.AnimationDuration
	}
	return DefaultAnimationDuration
}

// frame is the per-frame draw of an animation. Errors cannot reach a caller
// from here, so they are logged.
func (s *Scene) frame(deltaPitch, deltaYaw float64) {
	if err := s.Draw(deltaPitch, deltaYaw); err != nil {
		s.logger().Error().Err(err).Msg("animation frame")
	}
}

func (s *Scene) logger() *zerolog.Logger {
	if s.viewer == nil {
		l := zerolog.Nop()
		return &l
	}
	return &s.viewer.Logger
}

// Move rotates the camera by the given deltas. Without Animate the rotation
// is drawn at once and OnDone runs immediately; with it, the deltas are
// spread over the animation duration, replacing any running angle animation.
func (s *Scene) Move(deltaPitch, deltaYaw float64, opts AnimationOptions) error {
	s.abandonFlyIn()
	if !opts.Animate {
		s.anim.cancel(axisAngle)
		if err := s.Draw(deltaPitch, deltaYaw); err != nil {
			return err
		}
		opts.done()
		return nil
	}
	s.anim.start(axisAngle, finiteOr(deltaPitch, 0), finiteOr(deltaYaw, 0),
		s.animationDuration(opts), opts.Ease, s.frame, opts.OnDone)
	return nil
}

// SetAngle moves the camera to the target orientation.
func (s *Scene) SetAngle(a Angle, opts AnimationOptions) error {
	return s.Move(a.Pitch-s.pitch, a.Yaw-s.yaw, opts)
}

// SetFieldOfView changes the field of view. Values outside (0, 180) fail with
// ErrFieldOfViewRange. An animated change interpolates the value itself.
func (s *Scene) SetFieldOfView(fov float64, opts AnimationOptions) error {
	if !validFieldOfView(fov) {
		return fmt.Errorf("set field of view %v: %w", fov, ErrFieldOfViewRange)
	}
	s.abandonFlyIn()
	if !opts.Animate {
		s.anim.cancel(axisFieldOfView)
		s.fov = fov
		if err := s.Draw(0, 0); err != nil {
			return err
		}
		opts.done()
		return nil
	}
	s.anim.start(axisFieldOfView, fov-s.fov, 0, s.animationDuration(opts), opts.Ease,
		func(delta, _ float64) {
			s.fov += delta
			s.frame(0, 0)
		}, opts.OnDone)
	return nil
}

// AddMarkers attaches markers to the scene. Each marker's angle is rebased
// against the current orientation so it appears at the world angle it was
// created with. A marker pitch outside the scene's pitch visible range
// fails the whole batch with ErrInvalidMarker.
func (s *Scene) AddMarkers(markers ...*Marker) error {
	for _, m := range markers {
		if m == nil {
			return fmt.Errorf("add markers: nil marker: %w", ErrInvalidMarker)
		}
		if m.scene != nil {
			return fmt.Errorf("add markers: marker already on scene %q: %w", m.scene.Name, ErrInvalidMarker)
		}
		if m.pitch < s.pitchRange.Min || m.pitch > s.pitchRange.Max {
			return fmt.Errorf("add markers: pitch %v outside [%v, %v] of scene %q: %w",
				m.pitch, s.pitchRange.Min, s.pitchRange.Max, s.Name, ErrInvalidMarker)
		}
	}
	var w, h float64
	r := s.renderer()
	if r != nil {
		w, h = r.Viewport()
	}
	for _, m := range markers {
		m.pitch -= s.pitch
		m.yaw = NormalizeAngle(m.yaw - s.yaw)
		m.scene = s
		s.markers = append(s.markers, m)
		if s.active {
			s.viewer.overlay.attach(m)
		}
		if r != nil {
			m.place(w, h, s.fov)
		}
	}
	return nil
}

// ReplaceTextures swaps the texture set and, when the scene is rendered,
// loads and draws the new one. The orientation is kept.
func (s *Scene) ReplaceTextures(textures []TextureSource) error {
	if err := checkTextureSet(s.geometry, textures); err != nil {
		return fmt.Errorf("replace textures of %q: %w", s.Name, err)
	}
	s.sources = slices.Clone(textures)
	if s.active {
		s.load(s.viewer.ctx)
	}
	return nil
}

// flyIn is the state of a running marker fly-in. restore is the field of
// view from before the dip.
type flyIn struct {
	restore float64
	pending int
}

// FlyingIn reports whether a marker fly-in is running.
func (s *Scene) FlyingIn() bool { return s.flyIn != nil }

// OnMarkerActivated plays the fly-in toward m: the camera turns to the
// marker along the shortest yaw path while the field of view dips, then the
// viewer switches to the marker's target once both animations finish. The
// field of view is restored before the switch. Markers without a target are
// ignored, and so are activations while a fly-in is running.
func (s *Scene) OnMarkerActivated(m *Marker) {
	if m == nil || m.scene != s || !m.target.Valid() || s.flyIn != nil {
		return
	}
	restore := s.fov
	dip := DefaultFlyInDip
	if s.viewer != nil {
		dip = s.viewer.cfg.FlyInDip
	}
	dipped := restore - dip
	if dipped <= 0 {
		dipped = restore / 2
	}

	f := &flyIn{restore: restore, pending: 2}
	finish := func() {
		if s.flyIn != f {
			return
		}
		f.pending--
		if f.pending > 0 {
			return
		}
		s.flyIn = nil
		if err := s.SetFieldOfView(f.restore, AnimationOptions{}); err != nil {
			s.logger().Error().Err(err).Msg("restore field of view")
		}
		if s.viewer != nil {
			s.viewer.switchTo(m.target)
		}
	}

	rel := m.Angle()
	duration := s.animationDuration(AnimationOptions{})
	if err := s.Move(rel.Pitch, SignedYaw(rel.Yaw), AnimationOptions{Animate: true, Duration: duration, OnDone: finish}); err != nil {
		s.logger().Error().Err(err).Msg("fly-in move")
		return
	}
	if err := s.SetFieldOfView(dipped, AnimationOptions{Animate: true, Duration: duration, OnDone: finish}); err != nil {
		s.anim.cancel(axisAngle)
		s.logger().Error().Err(err).Msg("fly-in field of view")
		return
	}
	s.flyIn = f
}

// abandonFlyIn drops a running fly-in whose animations are being replaced,
// putting the field of view back to its value before the dip. No switch
// happens.
func (s *Scene) abandonFlyIn() {
	f := s.flyIn
	if f == nil {
		return
	}
	s.flyIn = nil
	s.anim.cancel(axisFieldOfView)
	s.fov = f.restore
	s.frame(0, 0)
}

// Update applies finished texture loads and advances animations.
func (s *Scene) Update(now time.Time) {
	s.drainLoads()
	s.anim.tick(now)
}

// load resolves the current texture set on a loader goroutine. Only the
// newest load is applied; Update picks it up.
func (s *Scene) load(ctx context.Context) {
	v := s.viewer
	if v == nil {
		return
	}
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.pending = nil
	s.mu.Unlock()
	s.state = sceneLoading

	sources := slices.Clone(s.sources)
	loader := v.loader
	timeout := v.cfg.LoadTimeout
	go func() {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		images, err := loader.Resolve(ctx, sources)
		s.mu.Lock()
		if gen == s.loadGen {
			s.pending = &textureResult{images: images, err: err}
		}
		s.mu.Unlock()
	}()
}

func (s *Scene) drainLoads() {
	s.mu.Lock()
	res := s.pending
	s.pending = nil
	s.mu.Unlock()
	if res == nil {
		return
	}
	if res.err != nil {
		s.state = sceneFailed
		s.logger().Error().Err(res.err).Str("scene", s.Name).Msg("texture load")
		return
	}
	if err := s.present(res.images); err != nil {
		s.logger().Error().Err(err).Str("scene", s.Name).Msg("present textures")
	}
}

// present uploads decoded images and draws the scene for the first time.
func (s *Scene) present(images []image.Image) error {
	r := s.renderer()
	if r == nil {
		return fmt.Errorf("present %q: no renderer: %w", s.Name, ErrMissingPrimitive)
	}
	textures, err := r.Upload(images)
	if err != nil {
		s.state = sceneFailed
		return fmt.Errorf("present %q: upload: %w", s.Name, err)
	}
	if len(s.textures) > 0 {
		r.Release(s.textures)
	}
	s.textures = textures
	s.state = sceneReady
	return s.Draw(0, 0)
}

// Destroy detaches the markers from the overlay, stops animations and drops
// pending loads. The orientation is kept so the scene can be shown again.
func (s *Scene) Destroy() {
	if s.viewer != nil {
		for _, m := range s.markers {
			s.viewer.overlay.detach(m)
		}
	}
	if f := s.flyIn; f != nil {
		s.flyIn = nil
		s.fov = f.restore
	}
	s.anim.cancelAll()

	s.mu.Lock()
	s.loadGen++
	s.pending = nil
	s.mu.Unlock()

	if r := s.renderer(); r != nil && len(s.textures) > 0 {
		r.Release(s.textures)
	}
	s.textures = nil
	s.state = sceneUnloaded
	s.active = false
}
