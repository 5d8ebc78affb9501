package core

// Material parameters consumed by the trace kernel. The GPU layer
// packs each record as three vec4 groups: base color, emissive,
// (roughness, metalness, 0, 0).
type Material struct {
	BaseColor [4]float32
	Emissive  [4]float32
	Roughness float32
	Metalness float32
}

func NewMaterial(baseColor [4]float32) Material {
	return Material{
		BaseColor: baseColor,
		Roughness: 1.0,
		Metalness: 0.0,
	}
}

// DefaultMaterial is plain white diffuse.
func DefaultMaterial() Material {
	return NewMaterial([4]float32{1, 1, 1, 1})
}
