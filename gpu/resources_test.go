package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen3d/lumen/core"
	"github.com/lumen3d/lumen/geom"
)

func TestPackObjects(t *testing.T) {
	buf := packObjects([]geom.ObjectRange{
		{Start: 0, Count: 36, MaterialIndex: 1},
		{Start: 36, Count: 6, MaterialIndex: 0},
	})
	require.Len(t, buf, 2*objectStride)

	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[0:]))
	assert.Equal(t, uint32(36), binary.LittleEndian.Uint32(buf[4:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[8:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[12:]), "pad word")

	assert.Equal(t, uint32(36), binary.LittleEndian.Uint32(buf[objectStride:]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(buf[objectStride+4:]))
}

func TestPackMaterials(t *testing.T) {
	m := core.NewMaterial([4]float32{0.8, 0.2, 0.1, 1})
	m.Emissive = [4]float32{0, 0, 0, 0}
	m.Roughness = 0.5
	m.Metalness = 0.25

	buf := packMaterials([]core.Material{m})
	require.Len(t, buf, materialStride)

	assert.Equal(t, float32(0.8), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[12:])))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[32:])))
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(buf[36:])))
	// Reserved tail of the params vec4 stays zero.
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[40:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[44:]))
}

func TestPackParamsLayout(t *testing.T) {
	s := core.NewScene()
	s.Camera.Position = mgl32.Vec3{1, 2, 3}

	buf := packParams(s, 1280, 720, 77)
	require.Len(t, buf, paramsByteSize)

	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[128:])))
	assert.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(buf[132:])))
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(buf[136:])))

	assert.Equal(t, uint32(1280), binary.LittleEndian.Uint32(buf[176:]))
	assert.Equal(t, uint32(720), binary.LittleEndian.Uint32(buf[180:]))
	assert.Equal(t, uint32(77), binary.LittleEndian.Uint32(buf[184:]))

	// The first matrix slot holds the inverse view; multiplying any
	// point through view then inverse view must identity out, which is
	// covered in core. Here just pin the serialization order.
	invView, _ := s.Camera.Matrices(1280.0 / 720.0)
	assert.Equal(t, invView[0], math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])))
	assert.Equal(t, invView[15], math.Float32frombits(binary.LittleEndian.Uint32(buf[60:])))
}

func TestScalarSerialization(t *testing.T) {
	fb := floatsToBytes([]float32{1.5, -2})
	require.Len(t, fb, 8)
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(fb[0:])))
	assert.Equal(t, float32(-2), math.Float32frombits(binary.LittleEndian.Uint32(fb[4:])))

	ub := u32sToBytes([]uint32{7, 0xFFFF0002})
	require.Len(t, ub, 8)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(ub[0:]))
	assert.Equal(t, uint32(0xFFFF0002), binary.LittleEndian.Uint32(ub[4:]))
}
