package pano

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// hudRefresh is the number of ticks between HUD text refreshes.
const hudRefresh = 30

// HUD is an on-screen readout of FPS, TPS and the active scene's camera.
type HUD struct {
	X, Y float64

	img   *ebiten.Image
	ticks int
	text  string
}

// NewHUD creates a HUD drawn at the top-left corner.
func NewHUD() *HUD {
	// 160x64 fits four lines of debug text.
	return &HUD{img: ebiten.NewImage(160, 64), ticks: hudRefresh}
}

// ShowHUD attaches a HUD to the viewer, or removes it when show is false.
func (v *Viewer) ShowHUD(show bool) {
	if !show {
		v.hud = nil
		return
	}
	if v.hud == nil {
		v.hud = NewHUD()
	}
}

// hudText formats the readout for the active scene.
func hudText(fps, tps float64, s *Scene) string {
	text := fmt.Sprintf("FPS: %.1f\nTPS: %.1f", fps, tps)
	if s != nil {
		text += fmt.Sprintf("\npitch: %.1f yaw: %.1f\nfov: %.1f", s.pitch, s.yaw, s.fov)
	}
	return text
}

func (h *HUD) update(v *Viewer) {
	h.ticks++
	if h.ticks < hudRefresh {
		return
	}
	h.ticks = 0
	h.text = hudText(ebiten.ActualFPS(), ebiten.ActualTPS(), v.CurrentScene())

	h.img.Clear()
	// Semi-transparent background for readability
	h.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(h.img, h.text)
}

func (h *HUD) draw(screen *ebiten.Image) {
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(h.X, h.Y)
	screen.DrawImage(h.img, &op)
}
