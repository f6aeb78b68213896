package pano

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/viper"
)

// TourConfig describes a viewer and its scenes. It is read from a JSON, YAML
// or TOML tour file by LoadTour.
type TourConfig struct {
	Title              string        `json:"title" mapstructure:"title"`
	Width              int           `json:"width" mapstructure:"width"`
	Height             int           `json:"height" mapstructure:"height"`
	FieldOfView        float64       `json:"fieldOfView" mapstructure:"fieldOfView"`
	PitchMin           float64       `json:"pitchMin" mapstructure:"pitchMin"`
	PitchMax           float64       `json:"pitchMax" mapstructure:"pitchMax"`
	AnimationDuration  time.Duration `json:"animationDuration" mapstructure:"animationDuration"`
	MovingRate         float64       `json:"movingRate" mapstructure:"movingRate"`
	FlyInDip           float64       `json:"flyInDip" mapstructure:"flyInDip"`
	KeyStep            float64       `json:"keyStep" mapstructure:"keyStep"`
	LoadTimeout        time.Duration `json:"loadTimeout" mapstructure:"loadTimeout"`
	CubeSubdivisions   int           `json:"cubeSubdivisions" mapstructure:"cubeSubdivisions"`
	SphereSubdivisions int           `json:"sphereSubdivisions" mapstructure:"sphereSubdivisions"`
	ScreenshotDir      string        `json:"screenshotDir" mapstructure:"screenshotDir"`
	ScreenshotFormat   string        `json:"screenshotFormat" mapstructure:"screenshotFormat"`
	Debug              bool          `json:"debug" mapstructure:"debug"`
	// Start is the name of the first scene shown. Empty means the first one.
	Start  string        `json:"start" mapstructure:"start"`
	Scenes []SceneConfig `json:"scenes" mapstructure:"scenes"`

	// BaseDir resolves relative texture paths. LoadTour sets it to the
	// directory of the tour file.
	BaseDir string `json:"-" mapstructure:"-"`
}

// SceneConfig describes one scene of a tour.
type SceneConfig struct {
	Name string `json:"name" mapstructure:"name"`
	// Geometry is "cube" (six textures, in CubeFaces order) or "sphere"
	// (one equirectangular texture).
	Geometry    string         `json:"geometry" mapstructure:"geometry"`
	Textures    []string       `json:"textures" mapstructure:"textures"`
	Pitch       float64        `json:"pitch" mapstructure:"pitch"`
	Yaw         float64        `json:"yaw" mapstructure:"yaw"`
	FieldOfView float64        `json:"fieldOfView" mapstructure:"fieldOfView"`
	Markers     []MarkerConfig `json:"markers" mapstructure:"markers"`
}

// MarkerConfig describes a marker. Target names the scene it leads to.
type MarkerConfig struct {
	Pitch  float64 `json:"pitch" mapstructure:"pitch"`
	Yaw    float64 `json:"yaw" mapstructure:"yaw"`
	Target string  `json:"target" mapstructure:"target"`
	Label  string  `json:"label" mapstructure:"label"`
	// Icon is an image identifier drawn as the handle instead of the label.
	Icon string `json:"icon" mapstructure:"icon"`
}

func setTourDefaults(v *viper.Viper) {
	d := DefaultViewerConfig()
	v.SetDefault("title", "pano")
	v.SetDefault("width", d.Width)
	v.SetDefault("height", d.Height)
	v.SetDefault("fieldOfView", d.FieldOfView)
	v.SetDefault("pitchMin", d.PitchRange.Min)
	v.SetDefault("pitchMax", d.PitchRange.Max)
	v.SetDefault("animationDuration", d.AnimationDuration)
	v.SetDefault("movingRate", d.MovingRate)
	v.SetDefault("flyInDip", d.FlyInDip)
	v.SetDefault("keyStep", d.KeyStep)
	v.SetDefault("loadTimeout", time.Duration(0))
	v.SetDefault("cubeSubdivisions", d.CubeSubdivisions)
	v.SetDefault("sphereSubdivisions", d.SphereSubdivisions)
	v.SetDefault("screenshotDir", d.ScreenshotDir)
	v.SetDefault("screenshotFormat", d.ScreenshotFormat)
	v.SetDefault("debug", false)
}

// LoadTour reads a tour file. The format follows the file extension.
func LoadTour(path string) (TourConfig, error) {
	v := viper.New()
	setTourDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return TourConfig{}, fmt.Errorf("read tour %s: %w", path, err)
	}
	cfg, err := decodeTour(v)
	if err != nil {
		return TourConfig{}, fmt.Errorf("read tour %s: %w", path, err)
	}
	cfg.BaseDir = filepath.Dir(path)
	return cfg, nil
}

// ReadTour reads a tour from r in the given format ("json", "yaml" or
// "toml").
func ReadTour(r io.Reader, format string) (TourConfig, error) {
	v := viper.New()
	setTourDefaults(v)
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return TourConfig{}, fmt.Errorf("read tour: %w", err)
	}
	cfg, err := decodeTour(v)
	if err != nil {
		return TourConfig{}, fmt.Errorf("read tour: %w", err)
	}
	return cfg, nil
}

func decodeTour(v *viper.Viper) (TourConfig, error) {
	var cfg TourConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return TourConfig{}, err
	}
	for i := range cfg.Scenes {
		if cfg.Scenes[i].Geometry == "" {
			cfg.Scenes[i].Geometry = GeometryCuboid.String()
		}
	}
	if err := cfg.Validate(); err != nil {
		return TourConfig{}, err
	}
	return cfg, nil
}

// Validate checks that scene names are unique, geometries are known and
// marker targets name existing scenes.
func (c TourConfig) Validate() error {
	if len(c.Scenes) == 0 {
		return ErrNoScenes
	}
	names := make(map[string]bool, len(c.Scenes))
	for i, s := range c.Scenes {
		if s.Name == "" {
			return fmt.Errorf("scene %d: empty name: %w", i, ErrMissingPrimitive)
		}
		if names[s.Name] {
			return fmt.Errorf("scene %q: duplicate name: %w", s.Name, ErrMissingPrimitive)
		}
		names[s.Name] = true
		if _, err := parseGeometryKind(s.Geometry); err != nil {
			return fmt.Errorf("scene %q: %w", s.Name, err)
		}
	}
	if c.Start != "" && !names[c.Start] {
		return fmt.Errorf("start scene %q: %w", c.Start, ErrSceneNotFound)
	}
	for _, s := range c.Scenes {
		for j, m := range s.Markers {
			if m.Target != "" && !names[m.Target] {
				return fmt.Errorf("scene %q marker %d: target %q: %w", s.Name, j, m.Target, ErrSceneNotFound)
			}
		}
	}
	return nil
}

func parseGeometryKind(s string) (GeometryKind, error) {
	switch strings.ToLower(s) {
	case "cube", "cuboid", "":
		return GeometryCuboid, nil
	case "sphere":
		return GeometrySphere, nil
	}
	return 0, fmt.Errorf("unknown geometry %q: %w", s, ErrMissingPrimitive)
}

// ViewerConfig converts the tour's viewer settings.
func (c TourConfig) ViewerConfig() ViewerConfig {
	return ViewerConfig{
		Width:              c.Width,
		Height:             c.Height,
		FieldOfView:        c.FieldOfView,
		PitchRange:         Range{Min: c.PitchMin, Max: c.PitchMax},
		AnimationDuration:  c.AnimationDuration,
		MovingRate:         c.MovingRate,
		FlyInDip:           c.FlyInDip,
		KeyStep:            c.KeyStep,
		CubeSubdivisions:   c.CubeSubdivisions,
		SphereSubdivisions: c.SphereSubdivisions,
		LoadTimeout:        c.LoadTimeout,
		ScreenshotDir:      c.ScreenshotDir,
		ScreenshotFormat:   c.ScreenshotFormat,
	}.withDefaults()
}

// resolvePath joins relative file paths onto BaseDir. URLs and absolute
// paths are kept.
func (c TourConfig) resolvePath(src string) string {
	if c.BaseDir == "" || filepath.IsAbs(src) {
		return src
	}
	if u, err := url.Parse(src); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return src
	}
	return filepath.Join(c.BaseDir, src)
}

// HandleFactory creates the handle of a tour marker.
type HandleFactory func(ctx context.Context, mc MarkerConfig) (MarkerHandle, error)

// TourOption configures BuildTour.
type TourOption func(*tourBuild)

type tourBuild struct {
	handles HandleFactory
}

// WithMarkerHandles replaces the default handle factory, which draws the
// marker's icon or a text label.
func WithMarkerHandles(f HandleFactory) TourOption {
	return func(b *tourBuild) { b.handles = f }
}

// BuildTour creates a viewer with the tour's scenes and markers. The start
// scene becomes active but nothing is rendered until Viewer.Render.
func BuildTour(ctx context.Context, cfg TourConfig, renderer Renderer, loader *Loader, opts ...TourOption) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("build tour: %w", err)
	}
	vc := cfg.ViewerConfig()
	v := NewViewer(renderer, loader, vc)
	v.SetDebugMode(cfg.Debug)

	b := tourBuild{}
	b.handles = func(ctx context.Context, mc MarkerConfig) (MarkerHandle, error) {
		return v.defaultHandle(ctx, cfg, mc)
	}
	for _, opt := range opts {
		opt(&b)
	}

	index := make(map[string]int, len(cfg.Scenes))
	for i, sc := range cfg.Scenes {
		kind, _ := parseGeometryKind(sc.Geometry)
		var g Geometry
		if kind == GeometrySphere {
			g = &SphereGeometry{Subdivisions: vc.SphereSubdivisions}
		} else {
			g = &CuboidGeometry{Subdivisions: vc.CubeSubdivisions}
		}
		textures := make([]TextureSource, len(sc.Textures))
		for j, t := range sc.Textures {
			textures[j] = Source(cfg.resolvePath(t))
		}
		sopts := []SceneOption{WithName(sc.Name), WithAngle(Angle{Pitch: sc.Pitch, Yaw: sc.Yaw})}
		if sc.FieldOfView != 0 {
			sopts = append(sopts, WithFieldOfView(sc.FieldOfView))
		}
		s, err := NewScene(g, textures, sopts...)
		if err != nil {
			return nil, fmt.Errorf("build tour: %w", err)
		}
		v.AddScene(s)
		index[sc.Name] = i
	}

	for i, sc := range cfg.Scenes {
		s := v.scenes[i]
		for j, mc := range sc.Markers {
			h, err := b.handles(ctx, mc)
			if err != nil {
				return nil, fmt.Errorf("build tour: scene %q marker %d: %w", sc.Name, j, err)
			}
			mo := MarkerOptions{Pitch: mc.Pitch, Yaw: mc.Yaw, PitchRange: s.PitchVisibleRange(), UserData: mc}
			if mc.Target != "" {
				mo.Target = TargetIndex(index[mc.Target])
			}
			m, err := NewMarker(h, mo)
			if err != nil {
				return nil, fmt.Errorf("build tour: scene %q marker %d: %w", sc.Name, j, err)
			}
			if err := s.AddMarkers(m); err != nil {
				return nil, fmt.Errorf("build tour: scene %q marker %d: %w", sc.Name, j, err)
			}
		}
	}

	if cfg.Start != "" {
		v.index = index[cfg.Start]
	}
	v.Logger.Info().Int("scenes", len(v.scenes)).Str("start", v.CurrentScene().Name).Msg("tour built")
	return v, nil
}

func (v *Viewer) defaultHandle(ctx context.Context, cfg TourConfig, mc MarkerConfig) (MarkerHandle, error) {
	if mc.Icon != "" {
		img, err := v.loader.Load(ctx, cfg.resolvePath(mc.Icon))
		if err != nil {
			return nil, err
		}
		return NewImageHandle(ebiten.NewImageFromImage(img)), nil
	}
	label := mc.Label
	if label == "" {
		label = mc.Target
	}
	if label == "" {
		label = "*"
	}
	return NewLabelHandle(label), nil
}
