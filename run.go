package pano

import (
	"context"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunConfig configures the window opened by Run.
type RunConfig struct {
	Title  string
	Width  int
	Height int
	// Resizable lets the user resize the window; the viewport follows.
	Resizable bool
	Debug     bool
	ShowFPS   bool
}

// Run renders the active scene, opens a window and runs the viewer as the
// ebiten game until the window closes. The viewer is closed on return.
func Run(v *Viewer, cfg RunConfig) error {
	defer v.Close()

	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = v.cfg.Width, v.cfg.Height
	}
	title := cfg.Title
	if title == "" {
		title = "pano"
	}
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(w, h)
	if cfg.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	v.SetDebugMode(cfg.Debug || v.debug)
	v.ShowHUD(cfg.ShowFPS)
	v.Resize(w, h)

	if err := v.Render(context.Background()); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return ebiten.RunGame(v)
}
