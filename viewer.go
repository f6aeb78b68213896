package pano

import (
	"context"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
)

// EntityStore is the interface for optional ECS integration.
// When set on a Viewer, viewer events are forwarded to the ECS.
type EntityStore interface {
	EmitEvent(event ViewerEvent)
}

// ViewerEvent carries scene, marker and camera events for the ECS bridge.
type ViewerEvent struct {
	Type        EventType
	SceneIndex  int
	TargetIndex int // valid for EventMarkerActivated; -1 when unknown
	Pitch       float64
	Yaw         float64
	FieldOfView float64
}

// ViewerConfig holds the viewer-wide parameters. Start from
// DefaultViewerConfig and override what you need.
type ViewerConfig struct {
	Width, Height      int
	FieldOfView        float64
	PitchRange         Range
	AnimationDuration  time.Duration
	MovingRate         float64
	FlyInDip           float64
	KeyStep            float64
	DragDeadZone       float64
	CubeSubdivisions   int
	SphereSubdivisions int
	// LoadTimeout bounds every scene texture load. Zero waits forever.
	LoadTimeout time.Duration
	ClearColor  Color
	// ScreenshotDir receives Screenshot output. ScreenshotFormat is "png"
	// (default) or "webp".
	ScreenshotDir    string
	ScreenshotFormat string
}

// DefaultViewerConfig returns the stock configuration.
func DefaultViewerConfig() ViewerConfig {
	return ViewerConfig{
		Width:              1024,
		Height:             640,
		FieldOfView:        DefaultFieldOfView,
		PitchRange:         DefaultPitchVisibleRange,
		AnimationDuration:  DefaultAnimationDuration,
		MovingRate:         DefaultMovingRate,
		FlyInDip:           DefaultFlyInDip,
		KeyStep:            DefaultKeyStep,
		DragDeadZone:       DefaultDragDeadZone,
		CubeSubdivisions:   DefaultCubeSubdivisions,
		SphereSubdivisions: DefaultSphereSubdivisions,
		ClearColor:         ColorBlack,
		ScreenshotDir:      "screenshots",
		ScreenshotFormat:   "png",
	}
}

// withDefaults fills zero fields from DefaultViewerConfig.
func (c ViewerConfig) withDefaults() ViewerConfig {
	d := DefaultViewerConfig()
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if !validFieldOfView(c.FieldOfView) {
		c.FieldOfView = d.FieldOfView
	}
	if c.PitchRange.Min >= c.PitchRange.Max {
		c.PitchRange = d.PitchRange
	}
	if c.AnimationDuration <= 0 {
		c.AnimationDuration = d.AnimationDuration
	}
	if c.MovingRate <= 0 {
		c.MovingRate = d.MovingRate
	}
	if c.FlyInDip <= 0 {
		c.FlyInDip = d.FlyInDip
	}
	if c.KeyStep <= 0 {
		c.KeyStep = d.KeyStep
	}
	if c.DragDeadZone <= 0 {
		c.DragDeadZone = d.DragDeadZone
	}
	if c.CubeSubdivisions <= 0 {
		c.CubeSubdivisions = d.CubeSubdivisions
	}
	if c.SphereSubdivisions <= 0 {
		c.SphereSubdivisions = d.SphereSubdivisions
	}
	if c.ClearColor == (Color{}) {
		c.ClearColor = d.ClearColor
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = d.ScreenshotDir
	}
	if c.ScreenshotFormat == "" {
		c.ScreenshotFormat = d.ScreenshotFormat
	}
	return c
}

// Viewer owns the scene list, the active scene, the renderer and the input
// state. It implements ebiten.Game.
type Viewer struct {
	// Logger receives structured logs. Defaults to a no-op logger.
	Logger zerolog.Logger

	cfg      ViewerConfig
	renderer Renderer
	loader   *Loader
	meshes   *MeshCache
	clock    Clock
	ctx      context.Context
	cancel   context.CancelFunc

	scenes   []*Scene
	index    int
	rendered bool

	input    InteractionController
	overlay  Overlay
	handlers handlerRegistry
	store    EntityStore
	debug    bool
	hud      *HUD

	// Input state
	pointer  pointerState
	touchID  ebiten.TouchID
	touchIDs []ebiten.TouchID

	// Automation
	injectQueue     []syntheticPointerEvent
	testRunner      *TestRunner
	screenshotQueue []string
}

// NewViewer creates a viewer drawing through renderer and resolving textures
// through loader. A nil loader gets a default one reading files and URLs.
func NewViewer(renderer Renderer, loader *Loader, cfg ViewerConfig) *Viewer {
	cfg = cfg.withDefaults()
	if loader == nil {
		loader = NewLoader(AutoFetcher{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &Viewer{
		Logger:   zerolog.Nop(),
		cfg:      cfg,
		renderer: renderer,
		loader:   loader,
		meshes:   NewMeshCache(),
		clock:    systemClock{},
		ctx:      ctx,
		cancel:   cancel,
	}
	v.input.MovingRate = cfg.MovingRate
	v.input.KeyStep = cfg.KeyStep
	return v
}

// Config returns the effective configuration.
func (v *Viewer) Config() ViewerConfig { return v.cfg }

// Renderer returns the viewer's renderer.
func (v *Viewer) Renderer() Renderer { return v.renderer }

// Loader returns the shared texture loader.
func (v *Viewer) Loader() *Loader { return v.loader }

// Input returns the interaction controller.
func (v *Viewer) Input() *InteractionController { return &v.input }

// Overlay returns the marker overlay of the active scene.
func (v *Viewer) Overlay() *Overlay { return &v.overlay }

// SetClock replaces the animation clock. Scenes added later use it too.
func (v *Viewer) SetClock(c Clock) {
	v.clock = c
	for _, s := range v.scenes {
		s.anim.clock = c
	}
}

// SetEntityStore sets the optional ECS bridge.
func (v *Viewer) SetEntityStore(store EntityStore) {
	v.store = store
}

// SetDebugMode enables or disables per-draw timing logs at debug level.
func (v *Viewer) SetDebugMode(enabled bool) {
	v.debug = enabled
}

// AddScene appends a scene. Viewer-level defaults apply to the field of view
// and pitch range the scene did not set.
func (v *Viewer) AddScene(s *Scene) {
	s.configure(v)
	v.scenes = append(v.scenes, s)
}

// Scenes returns the scene list. The returned slice MUST NOT be mutated.
func (v *Viewer) Scenes() []*Scene { return v.scenes }

// SceneIndex returns the active scene index.
func (v *Viewer) SceneIndex() int { return v.index }

// CurrentScene returns the active scene, or nil when there are no scenes.
func (v *Viewer) CurrentScene() *Scene {
	if v.index < 0 || v.index >= len(v.scenes) {
		return nil
	}
	return v.scenes[v.index]
}

// OnSceneChange registers a callback fired after every scene switch.
func (v *Viewer) OnSceneChange(fn func(*Scene, int)) CallbackHandle {
	v.handlers.nextID++
	id := v.handlers.nextID
	v.handlers.sceneChange = append(v.handlers.sceneChange, sceneHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &v.handlers, event: EventSceneChange}
}

// OnMarkerActivated registers a callback fired when a marker is clicked.
func (v *Viewer) OnMarkerActivated(fn func(*Marker)) CallbackHandle {
	v.handlers.nextID++
	id := v.handlers.nextID
	v.handlers.markerActivated = append(v.handlers.markerActivated, markerHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &v.handlers, event: EventMarkerActivated}
}

// RemoveAllListeners drops every scene-change and marker callback.
func (v *Viewer) RemoveAllListeners() {
	v.handlers.sceneChange = nil
	v.handlers.markerActivated = nil
}

// Render loads and shows the active scene. Its textures are awaited; the
// textures of the scenes its markers link to are then prefetched, followed
// by every other scene, without waiting.
func (v *Viewer) Render(ctx context.Context) error {
	s := v.CurrentScene()
	if s == nil {
		return ErrNoScenes
	}
	if v.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.LoadTimeout)
		defer cancel()
	}
	images, err := v.loader.Resolve(ctx, s.sources)
	if err != nil {
		return fmt.Errorf("render scene %d: %w", v.index, err)
	}

	neighbours, rest := v.preloadOrder()
	v.loader.Prefetch(v.ctx, neighbours)
	v.loader.Prefetch(v.ctx, rest)

	v.activate(s)
	v.rendered = true
	if v.debug {
		v.debugCheckScene(s)
	}
	if err := s.present(images); err != nil {
		return fmt.Errorf("render scene %d: %w", v.index, err)
	}
	v.Logger.Info().Int("index", v.index).Str("scene", s.Name).Msg("rendered")
	return nil
}

// preloadOrder returns the texture identifiers of the active scene's marker
// targets, then those of every remaining scene.
func (v *Viewer) preloadOrder() (neighbours, rest []string) {
	seen := map[int]bool{v.index: true}
	for _, m := range v.scenes[v.index].markers {
		i := v.resolveRef(m.target)
		if i < 0 || seen[i] {
			continue
		}
		seen[i] = true
		neighbours = append(neighbours, sourceIDs(v.scenes[i].sources)...)
	}
	for i, s := range v.scenes {
		if !seen[i] {
			rest = append(rest, sourceIDs(s.sources)...)
		}
	}
	return neighbours, rest
}

func (v *Viewer) resolveRef(ref SceneRef) int {
	if !ref.Valid() {
		return -1
	}
	if ref.scene != nil {
		return v.indexOf(ref.scene)
	}
	if ref.index < 0 || ref.index >= len(v.scenes) {
		return -1
	}
	return ref.index
}

func (v *Viewer) indexOf(s *Scene) int {
	for i, x := range v.scenes {
		if x == s {
			return i
		}
	}
	return -1
}

// activate binds input and the overlay to s.
func (v *Viewer) activate(s *Scene) {
	s.active = true
	v.input.Bind(s)
	for _, m := range s.markers {
		v.overlay.attach(m)
	}
}

// SwitchScene destroys the active scene, shows the scene at index and fires
// the scene-change callbacks. Switching to the active index is a no-op.
func (v *Viewer) SwitchScene(index int) error {
	if index == v.index {
		return nil
	}
	if index < 0 || index >= len(v.scenes) {
		return fmt.Errorf("switch scene %d of %d: %w", index, len(v.scenes), ErrSceneIndex)
	}
	if cur := v.CurrentScene(); cur != nil {
		v.input.Unbind()
		cur.Destroy()
	}
	v.pointer = pointerState{}
	v.index = index
	next := v.scenes[index]
	v.activate(next)
	next.load(v.ctx)
	v.rendered = true
	if v.debug {
		v.debugCheckScene(next)
	}

	v.Logger.Info().Int("index", index).Str("scene", next.Name).Msg("scene change")
	for _, h := range v.handlers.sceneChange {
		h.fn(next, index)
	}
	v.emit(ViewerEvent{
		Type:        EventSceneChange,
		SceneIndex:  index,
		TargetIndex: index,
		Pitch:       next.pitch,
		Yaw:         next.yaw,
		FieldOfView: next.fov,
	})
	return nil
}

// SetScene switches to the scene at index.
func (v *Viewer) SetScene(index int) error {
	if index < 0 || index >= len(v.scenes) {
		return fmt.Errorf("set scene %d of %d: %w", index, len(v.scenes), ErrSceneIndex)
	}
	return v.SwitchScene(index)
}

// SetSceneHandle switches to s, which must have been added.
func (v *Viewer) SetSceneHandle(s *Scene) error {
	i := v.indexOf(s)
	if i < 0 {
		return fmt.Errorf("set scene %p: %w", s, ErrSceneNotFound)
	}
	return v.SwitchScene(i)
}

// switchTo follows a marker target. Failures are logged: the request comes
// from an animation callback with no caller to return to.
func (v *Viewer) switchTo(ref SceneRef) {
	var err error
	if ref.scene != nil {
		err = v.SetSceneHandle(ref.scene)
	} else {
		err = v.SetScene(ref.index)
	}
	if err != nil {
		v.Logger.Error().Err(err).Msg("marker target")
	}
}

func (v *Viewer) activateMarker(m *Marker) {
	if s := v.CurrentScene(); s != nil && s.FlyingIn() {
		return
	}
	for _, h := range v.handlers.markerActivated {
		h.fn(m)
	}
	v.emit(ViewerEvent{
		Type:        EventMarkerActivated,
		SceneIndex:  v.index,
		TargetIndex: v.resolveRef(m.target),
		Pitch:       m.pitch,
		Yaw:         m.yaw,
	})
	m.Activate()
}

func (v *Viewer) emit(ev ViewerEvent) {
	if v.store != nil {
		v.store.EmitEvent(ev)
	}
}

// Resize changes the viewport and redraws the active scene. Renderers that
// cannot resize keep their size.
func (v *Viewer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r, ok := v.renderer.(interface{ Resize(w, h int) })
	if !ok {
		return
	}
	w, h := v.renderer.Viewport()
	if int(w) == width && int(h) == height {
		return
	}
	r.Resize(width, height)
	if s := v.CurrentScene(); s != nil && v.rendered {
		if err := s.Draw(0, 0); err != nil {
			v.Logger.Error().Err(err).Msg("resize redraw")
		}
	}
}

// Close stops pending texture loads and waits for prefetches to end.
func (v *Viewer) Close() {
	v.cancel()
	v.loader.Wait()
}

// Update processes input, applies finished texture loads and advances
// animations. Implements ebiten.Game.
func (v *Viewer) Update() error {
	if v.testRunner != nil {
		v.testRunner.step(v)
	}
	v.processInput()
	v.tick(v.clock.Now())
	if v.hud != nil {
		v.hud.update(v)
	}
	return nil
}

func (v *Viewer) tick(now time.Time) {
	if s := v.CurrentScene(); s != nil {
		s.Update(now)
	}
}

// Draw composites the renderer's frame and the marker overlay onto screen.
// Implements ebiten.Game.
func (v *Viewer) Draw(screen *ebiten.Image) {
	if t, ok := v.renderer.(interface{ Target() *ebiten.Image }); ok {
		if img := t.Target(); img != nil {
			screen.DrawImage(img, nil)
		}
	}
	v.overlay.Draw(screen)
	if v.hud != nil {
		v.hud.draw(screen)
	}
	v.flushScreenshots(screen)
}

// Layout tracks the outside size so the panorama always fills the window.
// Implements ebiten.Game.
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	v.Resize(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}
