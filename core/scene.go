package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/lumen3d/lumen/geom"
)

// Scene is the finalized, write-once input to the renderer: one
// consolidated geometry, the material table its objects reference, a
// camera and a single directional light. Nothing here mutates after
// Finalize.
type Scene struct {
	Geometry  *geom.Consolidated
	Materials []Material
	Camera    *CameraState

	LightDir mgl32.Vec3
	Ambient  mgl32.Vec3
}

func NewScene() *Scene {
	return &Scene{
		Camera:   NewCameraState(),
		LightDir: mgl32.Vec3{-0.4, -1, -0.3}.Normalize(),
		Ambient:  mgl32.Vec3{0.08, 0.08, 0.1},
	}
}

// Finalize checks cross-references before any GPU upload so a bad
// material index fails initialization instead of sampling garbage.
func (s *Scene) Finalize() error {
	if s.Geometry == nil || s.Geometry.TriangleCount() == 0 {
		return fmt.Errorf("scene: no geometry")
	}
	if len(s.Materials) == 0 {
		return fmt.Errorf("scene: no materials")
	}
	for i, obj := range s.Geometry.Objects {
		if int(obj.MaterialIndex) >= len(s.Materials) {
			return fmt.Errorf("scene: object %d (mesh %s) references material %d of %d", i, obj.MeshId, obj.MaterialIndex, len(s.Materials))
		}
	}
	return nil
}
