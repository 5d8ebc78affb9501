package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/lumen3d/lumen/bvh"
	"github.com/lumen3d/lumen/core"
	"github.com/lumen3d/lumen/geom"
)

// ConfigurationMismatchError means the fixed positional binding order
// and the kernel's declared bindings disagree. That is a build-time
// defect; it is surfaced at pipeline/bind-group creation instead of
// rendering silently wrong pixels.
type ConfigurationMismatchError struct {
	What string
	Err  error
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf("gpu: binding configuration mismatch (%s): %v", e.What, e.Err)
}

func (e *ConfigurationMismatchError) Unwrap() error { return e.Err }

// Compute bind group 0 slot order. The trace kernel declares its
// bindings in exactly this order; see shaders/trace.wgsl.
//
//	0 output storage image
//	1 positions      vec4<f32> per vertex
//	2 indices        u32, widened from any source width
//	3 normals        vec4<f32> per vertex
//	4 bvh bounds     f32
//	5 bvh contents   u32 pairs
//	6 indirection    u32, opaque copy owned by the bvh package
//	7 objects        4 x u32 per sub-object (start, count, material, 0)
//	8 materials      3 x vec4<f32> per material
//
// Bind group 1 holds the scene parameter uniform at binding 0.
const (
	paramsByteSize = 192
	objectStride   = 16
	materialStride = 48
)

// Resources owns every device-side buffer the tracer reads plus the
// storage image it writes. All buffers are populated once at setup and
// never touched by the host again.
type Resources struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	OutputTexture *wgpu.Texture
	OutputView    *wgpu.TextureView

	PositionBuf    *wgpu.Buffer
	IndexBuf       *wgpu.Buffer
	NormalBuf      *wgpu.Buffer
	BoundsBuf      *wgpu.Buffer
	ContentsBuf    *wgpu.Buffer
	IndirectionBuf *wgpu.Buffer
	ObjectBuf      *wgpu.Buffer
	MaterialBuf    *wgpu.Buffer
	ParamsBuf      *wgpu.Buffer

	SceneBindGroup  *wgpu.BindGroup
	ParamsBindGroup *wgpu.BindGroup
}

func NewResources(device *wgpu.Device) *Resources {
	return &Resources{
		device: device,
		queue:  device.GetQueue(),
	}
}

// Build allocates and populates one device buffer per logical input
// and the writable output image. Sizes are exact: element count times
// element width, nothing more.
func (r *Resources) Build(scene *core.Scene, enc *bvh.Encoded, indirection []uint32, width, height uint32) error {
	g := scene.Geometry

	var err error
	if r.PositionBuf, err = r.createBuffer("Positions", floatsToBytes(g.Positions), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if r.IndexBuf, err = r.createBuffer("Indices", u32sToBytes(g.Indices), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if r.NormalBuf, err = r.createBuffer("Normals", floatsToBytes(g.Normals), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if r.BoundsBuf, err = r.createBuffer("BVHBounds", floatsToBytes(enc.Bounds), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if r.ContentsBuf, err = r.createBuffer("BVHContents", u32sToBytes(enc.Contents), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	// The indirection array is owned by the bvh package; only its byte
	// length matters here.
	if r.IndirectionBuf, err = r.createBuffer("BVHIndirection", u32sToBytes(indirection), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if r.ObjectBuf, err = r.createBuffer("Objects", packObjects(g.Objects), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if r.MaterialBuf, err = r.createBuffer("Materials", packMaterials(scene.Materials), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if r.ParamsBuf, err = r.createBuffer("SceneParams", packParams(scene, width, height, uint32(enc.NodeCount)), wgpu.BufferUsageUniform); err != nil {
		return err
	}

	r.OutputTexture, err = r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "TraceOutput",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("gpu: create output texture: %w", err)
	}
	r.OutputView, err = r.OutputTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("gpu: create output view: %w", err)
	}

	return nil
}

// CreateBindGroups resolves the fixed slot order against the trace
// pipeline's auto layout. Any disagreement with the kernel's declared
// bindings fails here as a ConfigurationMismatchError.
func (r *Resources) CreateBindGroups(pipeline *wgpu.ComputePipeline) error {
	scene, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: r.OutputView},
			{Binding: 1, Buffer: r.PositionBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: r.IndexBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: r.NormalBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: r.BoundsBuf, Size: wgpu.WholeSize},
			{Binding: 5, Buffer: r.ContentsBuf, Size: wgpu.WholeSize},
			{Binding: 6, Buffer: r.IndirectionBuf, Size: wgpu.WholeSize},
			{Binding: 7, Buffer: r.ObjectBuf, Size: wgpu.WholeSize},
			{Binding: 8, Buffer: r.MaterialBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return &ConfigurationMismatchError{What: "scene bind group 0", Err: err}
	}
	r.SceneBindGroup = scene

	params, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: pipeline.GetBindGroupLayout(1),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.ParamsBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return &ConfigurationMismatchError{What: "params bind group 1", Err: err}
	}
	r.ParamsBindGroup = params
	return nil
}

// createBuffer allocates an exactly sized buffer and issues the single
// synchronous upload for it.
func (r *Resources) createBuffer(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("gpu: %s: refusing to create empty buffer", label)
	}
	size := uint64(len(data))
	if size%4 != 0 {
		size += 4 - size%4
	}
	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s buffer: %w", label, err)
	}
	r.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

func floatsToBytes(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func u32sToBytes(vals []uint32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func packObjects(objects []geom.ObjectRange) []byte {
	buf := make([]byte, len(objects)*objectStride)
	for i, obj := range objects {
		base := i * objectStride
		binary.LittleEndian.PutUint32(buf[base+0:], obj.Start)
		binary.LittleEndian.PutUint32(buf[base+4:], obj.Count)
		binary.LittleEndian.PutUint32(buf[base+8:], obj.MaterialIndex)
	}
	return buf
}

func packMaterials(materials []core.Material) []byte {
	buf := make([]byte, len(materials)*materialStride)
	for i, mat := range materials {
		base := i * materialStride
		for c := 0; c < 4; c++ {
			binary.LittleEndian.PutUint32(buf[base+c*4:], math.Float32bits(mat.BaseColor[c]))
			binary.LittleEndian.PutUint32(buf[base+16+c*4:], math.Float32bits(mat.Emissive[c]))
		}
		binary.LittleEndian.PutUint32(buf[base+32:], math.Float32bits(mat.Roughness))
		binary.LittleEndian.PutUint32(buf[base+36:], math.Float32bits(mat.Metalness))
	}
	return buf
}

// packParams serializes the 192-byte SceneParams uniform block.
func packParams(scene *core.Scene, width, height, nodeCount uint32) []byte {
	buf := make([]byte, paramsByteSize)

	aspect := float32(width) / float32(height)
	invView, invProj := scene.Camera.Matrices(aspect)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(invView[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(invProj[i]))
	}

	pos := scene.Camera.Position
	binary.LittleEndian.PutUint32(buf[128:], math.Float32bits(pos.X()))
	binary.LittleEndian.PutUint32(buf[132:], math.Float32bits(pos.Y()))
	binary.LittleEndian.PutUint32(buf[136:], math.Float32bits(pos.Z()))

	binary.LittleEndian.PutUint32(buf[144:], math.Float32bits(scene.LightDir.X()))
	binary.LittleEndian.PutUint32(buf[148:], math.Float32bits(scene.LightDir.Y()))
	binary.LittleEndian.PutUint32(buf[152:], math.Float32bits(scene.LightDir.Z()))

	binary.LittleEndian.PutUint32(buf[160:], math.Float32bits(scene.Ambient.X()))
	binary.LittleEndian.PutUint32(buf[164:], math.Float32bits(scene.Ambient.Y()))
	binary.LittleEndian.PutUint32(buf[168:], math.Float32bits(scene.Ambient.Z()))

	binary.LittleEndian.PutUint32(buf[176:], width)
	binary.LittleEndian.PutUint32(buf[180:], height)
	binary.LittleEndian.PutUint32(buf[184:], nodeCount)

	return buf
}
