package pano

import "math"

// Mesh is an indexed triangle list in model space. UVs are normalized with the
// origin at the top-left of the texture image.
type Mesh struct {
	Positions []Vec3
	UVs       []Vec2
	Indices   []uint32
}

// TriangleCount returns the number of triangles described by Indices.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Geometry is the model a Scene draws. It supplies vertex data and the shape
// of the texture set; the Scene owns camera, animation and marker logic.
type Geometry interface {
	Kind() GeometryKind
	// TextureCount is the number of texture sources the geometry binds.
	TextureCount() int
	// Meshes returns one mesh per texture, built at most once per cache.
	Meshes(cache *MeshCache) []*Mesh
}

// CubeFaces lists the cuboid faces in texture order.
var CubeFaces = [6]string{"front", "right", "up", "left", "down", "back"}

// CuboidGeometry maps six square textures onto the inward faces of a cube.
// Each face is subdivided into a grid so that the CPU projection stays close
// to perspective-correct.
type CuboidGeometry struct {
	Subdivisions int
}

// Cuboid returns a CuboidGeometry with the default subdivision count.
func Cuboid() *CuboidGeometry {
	return &CuboidGeometry{Subdivisions: DefaultCubeSubdivisions}
}

// Kind implements Geometry.
func (g *CuboidGeometry) Kind() GeometryKind { return GeometryCuboid }

// TextureCount implements Geometry.
func (g *CuboidGeometry) TextureCount() int { return len(CubeFaces) }

// Meshes implements Geometry.
func (g *CuboidGeometry) Meshes(cache *MeshCache) []*Mesh {
	n := max(g.Subdivisions, 1)
	return cache.lookup(meshKey{kind: GeometryCuboid, subdivisions: n}, func() []*Mesh {
		meshes := make([]*Mesh, len(cubeFaceFrames))
		for i, f := range cubeFaceFrames {
			meshes[i] = buildCubeFace(f, n)
		}
		return meshes
	})
}

// cubeFaceFrame places a face seen from inside the cube: center is the face
// midpoint, right and up span the face in image orientation.
type cubeFaceFrame struct {
	center, right, up Vec3
}

var cubeFaceFrames = [6]cubeFaceFrame{
	{center: Vec3{0, 0, -1}, right: Vec3{1, 0, 0}, up: Vec3{0, 1, 0}},  // front
	{center: Vec3{1, 0, 0}, right: Vec3{0, 0, 1}, up: Vec3{0, 1, 0}},   // right
	{center: Vec3{0, 1, 0}, right: Vec3{1, 0, 0}, up: Vec3{0, 0, 1}},   // up
	{center: Vec3{-1, 0, 0}, right: Vec3{0, 0, -1}, up: Vec3{0, 1, 0}}, // left
	{center: Vec3{0, -1, 0}, right: Vec3{1, 0, 0}, up: Vec3{0, 0, -1}}, // down
	{center: Vec3{0, 0, 1}, right: Vec3{-1, 0, 0}, up: Vec3{0, 1, 0}},  // back
}

func buildCubeFace(f cubeFaceFrame, n int) *Mesh {
	stride := n + 1
	m := &Mesh{
		Positions: make([]Vec3, 0, stride*stride),
		UVs:       make([]Vec2, 0, stride*stride),
		Indices:   make([]uint32, 0, n*n*6),
	}
	for row := 0; row <= n; row++ {
		b := 1 - 2*float64(row)/float64(n) // +1 at the top edge
		for col := 0; col <= n; col++ {
			a := 2*float64(col)/float64(n) - 1
			m.Positions = append(m.Positions, Vec3{
				X: f.center.X + f.right.X*a + f.up.X*b,
				Y: f.center.Y + f.right.Y*a + f.up.Y*b,
				Z: f.center.Z + f.right.Z*a + f.up.Z*b,
			})
			m.UVs = append(m.UVs, Vec2{X: (a + 1) / 2, Y: (1 - b) / 2})
		}
	}
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			p1 := uint32(row*stride + col)
			p2 := p1 + uint32(stride)
			m.Indices = append(m.Indices, p1, p2, p1+1, p1+1, p2, p2+1)
		}
	}
	return m
}

// SphereGeometry maps one equirectangular texture onto a latitude/longitude
// sphere. The texture's horizontal center faces the default view direction.
type SphereGeometry struct {
	Subdivisions int
}

// Sphere returns a SphereGeometry with the default subdivision count.
func Sphere() *SphereGeometry {
	return &SphereGeometry{Subdivisions: DefaultSphereSubdivisions}
}

// Kind implements Geometry.
func (g *SphereGeometry) Kind() GeometryKind { return GeometrySphere }

// TextureCount implements Geometry.
func (g *SphereGeometry) TextureCount() int { return 1 }

// Meshes implements Geometry.
func (g *SphereGeometry) Meshes(cache *MeshCache) []*Mesh {
	n := max(g.Subdivisions, 3)
	return cache.lookup(meshKey{kind: GeometrySphere, subdivisions: n}, func() []*Mesh {
		return []*Mesh{buildSphere(n)}
	})
}

// buildSphere iterates latitude steps j (top to bottom) and longitude steps i,
// both 0..n inclusive, so the seam column is duplicated with u = 0 and u = 1.
func buildSphere(n int) *Mesh {
	stride := n + 1
	m := &Mesh{
		Positions: make([]Vec3, 0, stride*stride),
		UVs:       make([]Vec2, 0, stride*stride),
		Indices:   make([]uint32, 0, n*n*6),
	}
	for j := 0; j <= n; j++ {
		aj := float64(j) * math.Pi / float64(n)
		sj, cj := math.Sin(aj), math.Cos(aj)
		for i := 0; i <= n; i++ {
			ai := float64(i) * 2 * math.Pi / float64(n)
			si, ci := math.Sin(ai), math.Cos(ai)
			m.Positions = append(m.Positions, Vec3{X: -si * sj, Y: cj, Z: ci * sj})
			m.UVs = append(m.UVs, Vec2{X: float64(i) / float64(n), Y: float64(j) / float64(n)})

			if j < n && i < n {
				p1 := uint32(j*stride + i)
				p2 := p1 + uint32(stride)
				m.Indices = append(m.Indices, p1, p2, p1+1, p1+1, p2, p2+1)
			}
		}
	}
	return m
}

type meshKey struct {
	kind         GeometryKind
	subdivisions int
}

// MeshCache holds generated meshes for one rendering context. Each Viewer
// owns its own cache so independent viewers never share buffers.
// Not safe for concurrent use.
type MeshCache struct {
	meshes map[meshKey][]*Mesh
	builds int
}

// NewMeshCache creates an empty cache.
func NewMeshCache() *MeshCache {
	return &MeshCache{meshes: make(map[meshKey][]*Mesh)}
}

func (c *MeshCache) lookup(key meshKey, build func() []*Mesh) []*Mesh {
	if c == nil {
		return build()
	}
	if m, ok := c.meshes[key]; ok {
		return m
	}
	m := build()
	c.meshes[key] = m
	c.builds++
	return m
}
