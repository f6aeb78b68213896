package pano

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTourYAML = `
title: Test tour
fieldOfView: 80
animationDuration: 500ms
start: garden
scenes:
  - name: hall
    textures: [f.jpg, r.jpg, u.jpg, l.jpg, d.jpg, b.jpg]
    markers:
      - pitch: -5
        yaw: 30
        target: garden
        label: Garden
  - name: garden
    geometry: sphere
    textures: [https://example.com/garden.jpg]
    yaw: 180
    fieldOfView: 60
    markers:
      - target: hall
      - yaw: 90
        label: Info
`

func fakeHandles(made *[]MarkerConfig) TourOption {
	return WithMarkerHandles(func(_ context.Context, mc MarkerConfig) (MarkerHandle, error) {
		*made = append(*made, mc)
		return &fakeHandle{w: 16, h: 16}, nil
	})
}

func TestReadTourYAML(t *testing.T) {
	cfg, err := ReadTour(strings.NewReader(testTourYAML), "yaml")
	require.NoError(t, err)

	assert.Equal(t, "Test tour", cfg.Title)
	assert.Equal(t, 80.0, cfg.FieldOfView)
	assert.Equal(t, 500*time.Millisecond, cfg.AnimationDuration)
	assert.Equal(t, "garden", cfg.Start)
	require.Len(t, cfg.Scenes, 2)
	assert.Equal(t, "cube", cfg.Scenes[0].Geometry, "geometry defaults to cube")
	assert.Len(t, cfg.Scenes[0].Textures, 6)
	assert.Equal(t, "garden", cfg.Scenes[0].Markers[0].Target)
	assert.Equal(t, 180.0, cfg.Scenes[1].Yaw)

	// Unset fields fall back to the viewer defaults.
	d := DefaultViewerConfig()
	assert.Equal(t, d.Width, cfg.Width)
	assert.Equal(t, d.PitchRange, Range{Min: cfg.PitchMin, Max: cfg.PitchMax})
	assert.Equal(t, d.MovingRate, cfg.MovingRate)
	assert.Equal(t, "png", cfg.ScreenshotFormat)
}

func TestReadTourJSON(t *testing.T) {
	data := `{"scenes": [{"name": "only", "geometry": "sphere", "textures": ["pano.jpg"]}], "debug": true}`
	cfg, err := ReadTour(strings.NewReader(data), "json")
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "sphere", cfg.Scenes[0].Geometry)
	assert.Equal(t, "pano", cfg.Title)
}

func TestTourValidate(t *testing.T) {
	scene := func(name string, markers ...MarkerConfig) SceneConfig {
		return SceneConfig{Name: name, Geometry: "sphere", Textures: []string{"x.jpg"}, Markers: markers}
	}
	tests := []struct {
		name string
		cfg  TourConfig
		want error
	}{
		{"no scenes", TourConfig{}, ErrNoScenes},
		{"empty name", TourConfig{Scenes: []SceneConfig{scene("")}}, ErrMissingPrimitive},
		{"duplicate name", TourConfig{Scenes: []SceneConfig{scene("a"), scene("a")}}, ErrMissingPrimitive},
		{"unknown geometry", TourConfig{Scenes: []SceneConfig{{Name: "a", Geometry: "torus"}}}, ErrMissingPrimitive},
		{"unknown start", TourConfig{Start: "b", Scenes: []SceneConfig{scene("a")}}, ErrSceneNotFound},
		{"unknown target", TourConfig{Scenes: []SceneConfig{scene("a", MarkerConfig{Target: "b"})}}, ErrSceneNotFound},
		{"valid", TourConfig{Start: "b", Scenes: []SceneConfig{scene("a", MarkerConfig{Target: "b"}), scene("b")}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadTourRejectsInvalid(t *testing.T) {
	_, err := ReadTour(strings.NewReader(`scenes: []`), "yaml")
	assert.ErrorIs(t, err, ErrNoScenes)

	_, err = ReadTour(strings.NewReader(`{`), "json")
	assert.Error(t, err)
}

func TestLoadTourSetsBaseDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tour.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testTourYAML), 0o644))

	cfg, err := LoadTour(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.BaseDir)
	assert.Equal(t, filepath.Join(dir, "f.jpg"), cfg.resolvePath("f.jpg"))
	assert.Equal(t, "https://example.com/garden.jpg", cfg.resolvePath("https://example.com/garden.jpg"))
	abs := filepath.Join(dir, "abs.jpg")
	assert.Equal(t, abs, cfg.resolvePath(abs))

	_, err = LoadTour(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestTourViewerConfig(t *testing.T) {
	cfg, err := ReadTour(strings.NewReader(testTourYAML), "yaml")
	require.NoError(t, err)
	vc := cfg.ViewerConfig()
	assert.Equal(t, 80.0, vc.FieldOfView)
	assert.Equal(t, 500*time.Millisecond, vc.AnimationDuration)
	assert.Equal(t, DefaultPitchVisibleRange, vc.PitchRange)
	assert.Equal(t, ColorBlack, vc.ClearColor)
}

func TestBuildTour(t *testing.T) {
	cfg, err := ReadTour(strings.NewReader(testTourYAML), "yaml")
	require.NoError(t, err)
	cfg.BaseDir = "tours"

	var made []MarkerConfig
	r := newRecordingRenderer(800, 600)
	v, err := BuildTour(context.Background(), cfg, r, NewLoader(FileFetcher{}), fakeHandles(&made))
	require.NoError(t, err)
	t.Cleanup(v.Close)

	scenes := v.Scenes()
	require.Len(t, scenes, 2)
	hall, garden := scenes[0], scenes[1]

	assert.Equal(t, 1, v.SceneIndex(), "start scene is garden")
	assert.Same(t, garden, v.CurrentScene())
	assert.Equal(t, GeometryCuboid, hall.Kind())
	assert.Equal(t, GeometrySphere, garden.Kind())
	assert.Equal(t, filepath.Join("tours", "f.jpg"), hall.TextureSources()[0].Src)
	assert.Equal(t, "https://example.com/garden.jpg", garden.TextureSources()[0].Src)

	assert.Equal(t, 80.0, hall.FieldOfView(), "viewer field of view applies")
	assert.Equal(t, 60.0, garden.FieldOfView(), "scene field of view wins")
	assert.Equal(t, 180.0, garden.Angle().Yaw)

	require.Len(t, made, 3)
	require.Len(t, hall.Markers(), 1)
	m := hall.Markers()[0]
	assert.Equal(t, 1, m.Target().Index())
	assert.Equal(t, 30.0, m.WorldAngle().Yaw)
	assert.Equal(t, "Garden", m.UserData.(MarkerConfig).Label)

	require.Len(t, garden.Markers(), 2)
	assert.Equal(t, 0, garden.Markers()[0].Target().Index())
	assert.False(t, garden.Markers()[1].Target().Valid(), "marker without target")
	// Garden is rotated to 180, so the world angle survives the rebase.
	assert.InDelta(t, 90.0, garden.Markers()[1].WorldAngle().Yaw, 1e-9)

	assert.Zero(t, r.uploads, "nothing renders before Render")
}

func TestBuildTourHandleError(t *testing.T) {
	cfg, err := ReadTour(strings.NewReader(testTourYAML), "yaml")
	require.NoError(t, err)
	boom := errors.New("no icon")
	_, err = BuildTour(context.Background(), cfg, newRecordingRenderer(10, 10), NewLoader(FileFetcher{}),
		WithMarkerHandles(func(context.Context, MarkerConfig) (MarkerHandle, error) { return nil, boom }))
	assert.ErrorIs(t, err, boom)
}

func TestBuildTourRejectsMarkerPitch(t *testing.T) {
	cfg := TourConfig{Scenes: []SceneConfig{{
		Name:     "a",
		Geometry: "sphere",
		Textures: []string{"a.jpg"},
		Markers:  []MarkerConfig{{Pitch: 95}},
	}}}
	var made []MarkerConfig
	_, err := BuildTour(context.Background(), cfg, newRecordingRenderer(10, 10), NewLoader(FileFetcher{}), fakeHandles(&made))
	assert.ErrorIs(t, err, ErrInvalidMarker)
}
