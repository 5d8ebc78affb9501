package geom

import (
	"math"
)

// Plane builds a rectangle in the XZ plane centered at the origin with
// its normal pointing up.
func Plane(width, depth float32) *Mesh {
	hw, hd := width/2, depth/2
	positions := []float32{
		-hw, 0, -hd,
		hw, 0, -hd,
		hw, 0, hd,
		-hw, 0, hd,
	}
	normals := []float32{
		0, 1, 0,
		0, 1, 0,
		0, 1, 0,
		0, 1, 0,
	}
	indices := []uint32{0, 2, 1, 0, 3, 2}

	m, err := NewMesh(positions, normals, indices)
	if err != nil {
		panic(err)
	}
	return m
}

// Box builds an axis-aligned box centered at the origin with flat
// per-face normals (24 vertices, 12 triangles).
func Box(sizeX, sizeY, sizeZ float32) *Mesh {
	hx, hy, hz := sizeX/2, sizeY/2, sizeZ/2

	type face struct {
		normal  [3]float32
		corners [4][3]float32
	}
	faces := []face{
		{[3]float32{1, 0, 0}, [4][3]float32{{hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}, {-hx, -hy, -hz}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-hx, -hy, hz}, {-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}}},
		{[3]float32{0, 0, 1}, [4][3]float32{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}},
	}

	positions := make([]float32, 0, 24*3)
	normals := make([]float32, 0, 24*3)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(positions) / 3)
		for _, c := range f.corners {
			positions = append(positions, c[0], c[1], c[2])
			normals = append(normals, f.normal[0], f.normal[1], f.normal[2])
		}
		indices = append(indices, base, base+2, base+1, base, base+3, base+2)
	}

	m, err := NewMesh(positions, normals, indices)
	if err != nil {
		panic(err)
	}
	return m
}

// Sphere builds a UV sphere centered at the origin. segments is the
// longitude resolution, rings the latitude resolution; both are
// clamped to a sane minimum.
func Sphere(radius float32, segments, rings int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	positions := make([]float32, 0, (rings+1)*(segments+1)*3)
	normals := make([]float32, 0, (rings+1)*(segments+1)*3)
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		y := float32(math.Cos(phi))
		ringR := float32(math.Sin(phi))
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			nx := ringR * float32(math.Cos(theta))
			nz := ringR * float32(math.Sin(theta))
			positions = append(positions, nx*radius, y*radius, nz*radius)
			normals = append(normals, nx, y, nz)
		}
	}

	indices := make([]uint32, 0, rings*segments*6)
	stride := uint32(segments + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			indices = append(indices, a, a+1, b, a+1, b+1, b)
		}
	}

	m, err := NewMesh(positions, normals, indices)
	if err != nil {
		panic(err)
	}
	return m
}
