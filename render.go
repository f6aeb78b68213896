package pano

import (
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Texture is an image uploaded to a renderer.
type Texture interface {
	Size() (w, h int)
}

// Renderer is the drawing surface a Scene submits geometry to.
type Renderer interface {
	// Viewport returns the drawable size in pixels.
	Viewport() (width, height float64)
	// Upload turns decoded images into textures, in order.
	Upload(images []image.Image) ([]Texture, error)
	// Release frees textures returned by Upload.
	Release(textures []Texture)
	// Clear resets the frame.
	Clear()
	// DrawElements draws an indexed mesh transformed by mvp and textured by tex.
	DrawElements(mvp Mat4, mesh *Mesh, tex Texture) error
}

type ebitenTexture struct {
	img *ebiten.Image
}

func (t ebitenTexture) Size() (int, int) {
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

// EbitenRenderer projects meshes on the CPU and rasterizes them with
// DrawTriangles32 into an offscreen image. Triangles crossing the near plane
// are clipped in clip space before the perspective divide.
type EbitenRenderer struct {
	ClearColor Color

	target *ebiten.Image
	width  int
	height int

	// Scratch buffers owned by this rendering context.
	clip      map[*Mesh][]Vec4
	verts     []ebiten.Vertex
	inds      []uint32
	triangles int
}

// NewEbitenRenderer creates a renderer with a width x height target.
func NewEbitenRenderer(width, height int) *EbitenRenderer {
	r := &EbitenRenderer{
		ClearColor: ColorBlack,
		clip:       make(map[*Mesh][]Vec4),
	}
	r.Resize(width, height)
	return r
}

// Resize replaces the target image.
func (r *EbitenRenderer) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	if r.target != nil {
		if r.width == width && r.height == height {
			return
		}
		r.target.Deallocate()
	}
	r.width, r.height = width, height
	r.target = ebiten.NewImage(width, height)
}

// Target returns the offscreen image holding the last frame.
func (r *EbitenRenderer) Target() *ebiten.Image { return r.target }

// Viewport implements Renderer.
func (r *EbitenRenderer) Viewport() (float64, float64) {
	return float64(r.width), float64(r.height)
}

// Upload implements Renderer.
func (r *EbitenRenderer) Upload(images []image.Image) ([]Texture, error) {
	out := make([]Texture, len(images))
	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("upload texture %d: nil image: %w", i, ErrMissingPrimitive)
		}
		if e, ok := img.(*ebiten.Image); ok {
			out[i] = ebitenTexture{img: e}
			continue
		}
		out[i] = ebitenTexture{img: ebiten.NewImageFromImage(img)}
	}
	return out, nil
}

// Release implements Renderer.
func (r *EbitenRenderer) Release(textures []Texture) {
	for _, t := range textures {
		if et, ok := t.(ebitenTexture); ok {
			et.img.Deallocate()
		}
	}
}

// Clear implements Renderer.
func (r *EbitenRenderer) Clear() {
	r.target.Fill(r.ClearColor.RGBA())
	r.triangles = 0
}

// DrawElements implements Renderer.
func (r *EbitenRenderer) DrawElements(mvp Mat4, mesh *Mesh, tex Texture) error {
	et, ok := tex.(ebitenTexture)
	if !ok || et.img == nil {
		return fmt.Errorf("draw elements: foreign texture %T: %w", tex, ErrMissingPrimitive)
	}
	if mesh == nil || len(mesh.UVs) != len(mesh.Positions) {
		return fmt.Errorf("draw elements: malformed mesh: %w", ErrMissingPrimitive)
	}

	clip := r.clip[mesh]
	if cap(clip) < len(mesh.Positions) {
		clip = make([]Vec4, len(mesh.Positions))
		r.clip[mesh] = clip
	}
	clip = clip[:len(mesh.Positions)]

	tw, th := et.Size()
	r.verts, r.inds = projectMesh(mvp, mesh, clip, float64(tw), float64(th),
		float64(r.width), float64(r.height), r.verts[:0], r.inds[:0])
	if len(r.inds) == 0 {
		return nil
	}
	r.triangles += len(r.inds) / 3

	var triOp ebiten.DrawTrianglesOptions
	triOp.Filter = ebiten.FilterLinear
	r.target.DrawTriangles32(r.verts, r.inds, et.img, &triOp)
	return nil
}

// clipVertex is a clip-space position with its texture coordinate.
type clipVertex struct {
	pos Vec4
	uv  Vec2
}

// projectMesh transforms mesh into screen-space vertices for a viewW x viewH
// target, appending to verts and inds. clip is scratch space of
// len(mesh.Positions). UVs are scaled to texW x texH pixels.
func projectMesh(mvp Mat4, mesh *Mesh, clip []Vec4, texW, texH, viewW, viewH float64,
	verts []ebiten.Vertex, inds []uint32) ([]ebiten.Vertex, []uint32) {
	for i, p := range mesh.Positions {
		clip[i] = mvp.TransformPoint(p)
	}

	var poly [4]clipVertex
	for t := 0; t+2 < len(mesh.Indices); t += 3 {
		i0, i1, i2 := mesh.Indices[t], mesh.Indices[t+1], mesh.Indices[t+2]
		tri := [3]clipVertex{
			{clip[i0], mesh.UVs[i0]},
			{clip[i1], mesh.UVs[i1]},
			{clip[i2], mesh.UVs[i2]},
		}
		if outsideFrustum(tri) {
			continue
		}
		n := clipNear(tri, &poly)
		if n < 3 {
			continue
		}
		base := uint32(len(verts))
		for k := 0; k < n; k++ {
			sx, sy := toScreen(poly[k].pos, viewW, viewH)
			verts = append(verts, ebiten.Vertex{
				DstX:   float32(sx),
				DstY:   float32(sy),
				SrcX:   float32(poly[k].uv.X * texW),
				SrcY:   float32(poly[k].uv.Y * texH),
				ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
			})
		}
		for k := 1; k+1 < n; k++ {
			inds = append(inds, base, base+uint32(k), base+uint32(k+1))
		}
	}
	return verts, inds
}

// outsideFrustum reports whether all three vertices lie beyond the same
// side plane, so the triangle cannot be visible.
func outsideFrustum(tri [3]clipVertex) bool {
	var left, right, bottom, top = true, true, true, true
	for _, v := range tri {
		p := v.pos
		left = left && p.X < -p.W
		right = right && p.X > p.W
		bottom = bottom && p.Y < -p.W
		top = top && p.Y > p.W
	}
	return left || right || bottom || top
}

// clipNear clips a triangle against the near plane (z >= -w) and writes the
// resulting convex polygon into out. Returns its vertex count: 0, 3 or 4.
func clipNear(tri [3]clipVertex, out *[4]clipVertex) int {
	n := 0
	for i := 0; i < 3; i++ {
		a, b := tri[i], tri[(i+1)%3]
		da := a.pos.Z + a.pos.W
		db := b.pos.Z + b.pos.W
		if da >= 0 {
			out[n] = a
			n++
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out[n] = clipVertex{
				pos: Vec4{
					X: a.pos.X + (b.pos.X-a.pos.X)*t,
					Y: a.pos.Y + (b.pos.Y-a.pos.Y)*t,
					Z: a.pos.Z + (b.pos.Z-a.pos.Z)*t,
					W: a.pos.W + (b.pos.W-a.pos.W)*t,
				},
				uv: Vec2{
					X: a.uv.X + (b.uv.X-a.uv.X)*t,
					Y: a.uv.Y + (b.uv.Y-a.uv.Y)*t,
				},
			}
			n++
		}
	}
	return n
}

// toScreen divides by w and maps normalized device coordinates to pixels
// with Y pointing down.
func toScreen(p Vec4, viewW, viewH float64) (float64, float64) {
	x := p.X / p.W
	y := p.Y / p.W
	return (x*0.5 + 0.5) * viewW, (0.5 - y*0.5) * viewH
}
