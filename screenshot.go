package pano

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/hajimehoshi/ebiten/v2"
)

// Screenshot queues a labeled screenshot of the composed frame, marker
// overlay included, to be captured at the end of the current Draw. Files go
// to the configured screenshot directory with a timestamped name, encoded as
// PNG or lossless WebP.
func (v *Viewer) Screenshot(label string) {
	v.screenshotQueue = append(v.screenshotQueue, label)
}

// flushScreenshots captures the rendered frame for every queued label.
// Called at the end of Viewer.Draw.
func (v *Viewer) flushScreenshots(screen *ebiten.Image) {
	if len(v.screenshotQueue) == 0 {
		return
	}
	defer func() { v.screenshotQueue = v.screenshotQueue[:0] }()

	dir := v.cfg.ScreenshotDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.Logger.Error().Err(err).Str("dir", dir).Msg("screenshot mkdir")
		return
	}

	bounds := screen.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 4*w*h)
	screen.ReadPixels(pixels)
	img := unpremultiply(pixels, w, h)

	stamp := time.Now().Format("20060102_150405")
	ext := screenshotExt(v.cfg.ScreenshotFormat)
	for _, label := range v.screenshotQueue {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", stamp, sanitizeLabel(label), ext))
		if err := writeImage(path, img, ext); err != nil {
			v.Logger.Error().Err(err).Msg("screenshot")
			continue
		}
		v.Logger.Info().Str("path", path).Msg("screenshot")
	}
}

// unpremultiply converts premultiplied RGBA pixels to straight-alpha NRGBA.
func unpremultiply(pixels []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+3 < len(pixels) && i+3 < len(img.Pix); i += 4 {
		r, g, b, a := pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

func screenshotExt(format string) string {
	if strings.EqualFold(format, "webp") {
		return "webp"
	}
	return "png"
}

// writeImage encodes img to path as PNG or WebP.
func writeImage(path string, img image.Image, ext string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if ext == "webp" {
		err = nativewebp.Encode(f, img, nil)
	} else {
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
