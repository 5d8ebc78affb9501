package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestWidenIndices(t *testing.T) {
	got := WidenIndices([]uint16{0, 1, 65535})
	want := []uint32{0, 1, 65535}
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNewMeshValidation(t *testing.T) {
	if _, err := NewMesh([]float32{0, 0}, []float32{0, 0}, nil); err == nil {
		t.Error("expected error for ragged positions")
	}
	if _, err := NewMesh([]float32{0, 0, 0}, []float32{}, nil); err == nil {
		t.Error("expected error for missing normals")
	}
	if _, err := NewMesh([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0, 0, 1}); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestConsolidateRebasesIndices(t *testing.T) {
	a := Plane(2, 2)
	b := Box(1, 1, 1)

	con, err := Consolidate([]Instance{
		{Mesh: a, Transform: mgl32.Ident4(), MaterialIndex: 0},
		{Mesh: b, Transform: mgl32.Translate3D(0, 3, 0), MaterialIndex: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	if con.VertexCount() != a.VertexCount()+b.VertexCount() {
		t.Fatalf("vertex count %d, want %d", con.VertexCount(), a.VertexCount()+b.VertexCount())
	}
	if con.TriangleCount() != a.TriangleCount()+b.TriangleCount() {
		t.Fatalf("triangle count %d, want %d", con.TriangleCount(), a.TriangleCount()+b.TriangleCount())
	}

	if len(con.Objects) != 2 {
		t.Fatalf("object count %d, want 2", len(con.Objects))
	}
	if con.Objects[0].Start != 0 || con.Objects[0].Count != uint32(len(a.Indices)) {
		t.Errorf("object 0 range = (%d,%d)", con.Objects[0].Start, con.Objects[0].Count)
	}
	if con.Objects[1].Start != uint32(len(a.Indices)) || con.Objects[1].MaterialIndex != 2 {
		t.Errorf("object 1 = %+v", con.Objects[1])
	}
	if con.Objects[0].MeshId != a.Id || con.Objects[1].MeshId != b.Id {
		t.Errorf("object mesh ids = %q, %q, want %q, %q",
			con.Objects[0].MeshId, con.Objects[1].MeshId, a.Id, b.Id)
	}

	// Second object's indices must reference vertices past the first
	// mesh's range.
	firstVerts := uint32(a.VertexCount())
	for _, idx := range con.Indices[con.Objects[1].Start:] {
		if idx < firstVerts {
			t.Fatalf("rebased index %d points into first mesh", idx)
		}
		if int(idx) >= con.VertexCount() {
			t.Fatalf("rebased index %d out of range", idx)
		}
	}

	// Translation applied: the box vertices moved up by 3.
	boxBase := int(firstVerts) * 4
	minY := float32(math.Inf(1))
	for v := boxBase; v < len(con.Positions); v += 4 {
		if con.Positions[v+1] < minY {
			minY = con.Positions[v+1]
		}
	}
	if minY < 2.4 || minY > 2.6 {
		t.Errorf("translated box min y = %f, want 2.5", minY)
	}
}

func TestConsolidateNormalsStayUnit(t *testing.T) {
	s := Sphere(2, 12, 8)
	con, err := Consolidate([]Instance{
		{Mesh: s, Transform: mgl32.HomogRotate3DY(1.1).Mul4(mgl32.Scale3D(2, 2, 2))},
	})
	if err != nil {
		t.Fatal(err)
	}

	for v := 0; v < len(con.Normals); v += 4 {
		n := mgl32.Vec3{con.Normals[v], con.Normals[v+1], con.Normals[v+2]}
		if l := n.Len(); l < 0.99 || l > 1.01 {
			t.Fatalf("normal %d has length %f after transform", v/4, l)
		}
		if con.Normals[v+3] != 0 {
			t.Fatalf("normal %d pad component %f, want 0", v/4, con.Normals[v+3])
		}
	}
	for v := 3; v < len(con.Positions); v += 4 {
		if con.Positions[v] != 1 {
			t.Fatalf("position pad component %f, want 1", con.Positions[v])
		}
	}
}

func TestConsolidateEmpty(t *testing.T) {
	if _, err := Consolidate(nil); err == nil {
		t.Error("expected error for empty instance list")
	}
}

func TestShapesAreClosedTriangleLists(t *testing.T) {
	for name, m := range map[string]*Mesh{
		"plane":  Plane(1, 1),
		"box":    Box(1, 2, 3),
		"sphere": Sphere(1, 8, 6),
	} {
		if m.TriangleCount() == 0 {
			t.Errorf("%s: no triangles", name)
		}
		if len(m.Indices)%3 != 0 {
			t.Errorf("%s: ragged index list", name)
		}
		if m.Id == "" {
			t.Errorf("%s: missing mesh id", name)
		}
	}
}
