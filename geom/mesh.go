package geom

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type MeshId string

func makeMeshId() MeshId {
	return MeshId(uuid.NewString())
}

// Mesh is triangulated geometry with tightly packed xyz attributes.
type Mesh struct {
	Id        MeshId
	Positions []float32 // 3 floats per vertex
	Normals   []float32 // 3 floats per vertex
	Indices   []uint32  // 3 entries per triangle
}

func NewMesh(positions, normals []float32, indices []uint32) (*Mesh, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("geom: position count %d not a multiple of 3", len(positions))
	}
	if len(normals) != len(positions) {
		return nil, fmt.Errorf("geom: %d normal floats for %d position floats", len(normals), len(positions))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("geom: index count %d not a multiple of 3", len(indices))
	}
	vcount := uint32(len(positions) / 3)
	for _, idx := range indices {
		if idx >= vcount {
			return nil, fmt.Errorf("geom: index %d out of range for %d vertices", idx, vcount)
		}
	}
	return &Mesh{
		Id:        makeMeshId(),
		Positions: positions,
		Normals:   normals,
		Indices:   indices,
	}, nil
}

// WidenIndices converts a 16-bit index buffer to the uniform 32-bit
// width the GPU buffers use regardless of source width.
func WidenIndices(indices []uint16) []uint32 {
	out := make([]uint32, len(indices))
	for i, idx := range indices {
		out[i] = uint32(idx)
	}
	return out
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Instance places a mesh in the scene with a material slot.
type Instance struct {
	Mesh          *Mesh
	Transform     mgl32.Mat4
	MaterialIndex uint32
}

// ObjectRange is one sub-object of the consolidated geometry: a
// half-open index range [Start, Start+Count) and its material. MeshId
// records which source mesh the range came from so later validation
// failures can name it.
type ObjectRange struct {
	Start         uint32
	Count         uint32
	MaterialIndex uint32
	MeshId        MeshId
}

// Consolidated is the single draw-compatible buffer set the renderer
// uploads: all instances merged, indices rebased, attributes padded to
// vec4 for GPU storage-buffer alignment.
type Consolidated struct {
	Positions []float32 // 4 floats per vertex, w = 1
	Normals   []float32 // 4 floats per vertex, w = 0
	Indices   []uint32
	Objects   []ObjectRange
}

func (c *Consolidated) VertexCount() int {
	return len(c.Positions) / 4
}

func (c *Consolidated) TriangleCount() int {
	return len(c.Indices) / 3
}

// Consolidate merges mesh instances into one buffer set, applying each
// instance transform to positions and its inverse-transpose to
// normals. Instance order is preserved in the object table.
func Consolidate(instances []Instance) (*Consolidated, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("geom: nothing to consolidate")
	}

	out := &Consolidated{
		Objects: make([]ObjectRange, 0, len(instances)),
	}

	for n, inst := range instances {
		if inst.Mesh == nil {
			return nil, fmt.Errorf("geom: instance %d has no mesh", n)
		}
		m := inst.Mesh
		base := uint32(out.VertexCount())
		start := uint32(len(out.Indices))

		normalMat := inst.Transform.Inv().Transpose().Mat3()
		for v := 0; v < m.VertexCount(); v++ {
			p := mgl32.Vec3{m.Positions[v*3], m.Positions[v*3+1], m.Positions[v*3+2]}
			wp := inst.Transform.Mul4x1(p.Vec4(1))
			out.Positions = append(out.Positions, wp.X(), wp.Y(), wp.Z(), 1)

			nv := mgl32.Vec3{m.Normals[v*3], m.Normals[v*3+1], m.Normals[v*3+2]}
			wn := normalMat.Mul3x1(nv)
			if l := wn.Len(); l > 0 {
				wn = wn.Mul(1 / l)
			}
			out.Normals = append(out.Normals, wn.X(), wn.Y(), wn.Z(), 0)
		}

		for _, idx := range m.Indices {
			out.Indices = append(out.Indices, base+idx)
		}

		out.Objects = append(out.Objects, ObjectRange{
			Start:         start,
			Count:         uint32(len(m.Indices)),
			MaterialIndex: inst.MaterialIndex,
			MeshId:        m.Id,
		})
	}

	return out, nil
}
