package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type CameraState struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	FovYDeg  float32
	Near     float32
	Far      float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position: mgl32.Vec3{6, 5, 10},
		Target:   mgl32.Vec3{0, 1, 0},
		FovYDeg:  60,
		Near:     0.1,
		Far:      1000,
	}
}

func (c *CameraState) ViewMatrix() mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	return mgl32.LookAtV(c.Position, c.Target, up)
}

func (c *CameraState) ProjMatrix(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovYDeg), aspect, c.Near, c.Far)
}

// Matrices returns the inverse view and inverse projection the kernel
// uses to unproject pixel coordinates into world-space rays.
func (c *CameraState) Matrices(aspect float32) (invView, invProj mgl32.Mat4) {
	return c.ViewMatrix().Inv(), c.ProjMatrix(aspect).Inv()
}
