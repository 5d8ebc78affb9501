package app

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/lumen3d/lumen/bvh"
	"github.com/lumen3d/lumen/core"
	"github.com/lumen3d/lumen/gpu"
	"github.com/lumen3d/lumen/shaders"
)

const (
	RenderWidth   = 1280
	RenderHeight  = 720
	WorkgroupSize = 64
	TargetFrames  = 600
)

// DeviceUnavailableError reports that no usable adapter or device
// could be acquired. It is fatal: the caller cannot render.
type DeviceUnavailableError struct {
	Stage string
	Err   error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("gpu device unavailable (%s): %v", e.Stage, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	TracePipeline *wgpu.ComputePipeline
	BlitPipeline  *wgpu.RenderPipeline
	TextPipeline  *wgpu.RenderPipeline

	Resources *gpu.Resources
	Sampler   *wgpu.Sampler
	BlitBG    *wgpu.BindGroup

	Overlay          *core.TextOverlay
	TextAtlasView    *wgpu.TextureView
	TextBindGroup    *wgpu.BindGroup
	TextVertexBuffer *wgpu.Buffer
	textVertexCount  uint32

	Timer *FrameTimer

	Scene       *core.Scene
	Encoded     *bvh.Encoded
	Indirection []uint32

	Log        core.Logger
	FrameIndex int

	dispatchSide uint32
}

func NewApp(window *glfw.Window, scene *core.Scene, enc *bvh.Encoded, indirection []uint32, log core.Logger) *App {
	return &App{
		Window:      window,
		Scene:       scene,
		Encoded:     enc,
		Indirection: indirection,
		Log:         log,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return &DeviceUnavailableError{Stage: "adapter", Err: err}
	}
	a.Adapter = adapter

	hasTimestamps := false
	for _, f := range adapter.EnumerateFeatures() {
		if f == wgpu.FeatureNameTimestampQuery {
			hasTimestamps = true
			break
		}
	}

	var desc *wgpu.DeviceDescriptor
	if hasTimestamps {
		desc = &wgpu.DeviceDescriptor{
			RequiredFeatures: []wgpu.FeatureName{wgpu.FeatureNameTimestampQuery},
		}
	}
	a.Device, err = adapter.RequestDevice(desc)
	if err != nil {
		return &DeviceUnavailableError{Stage: "device", Err: err}
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	if err := a.setupPipelines(format); err != nil {
		return err
	}

	a.Resources = gpu.NewResources(a.Device)
	if err := a.Resources.Build(a.Scene, a.Encoded, a.Indirection, RenderWidth, RenderHeight); err != nil {
		return err
	}
	if err := a.Resources.CreateBindGroups(a.TracePipeline); err != nil {
		return err
	}

	a.Sampler, err = a.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	a.BlitBG, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.BlitPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.Resources.OutputView},
			{Binding: 1, Sampler: a.Sampler},
		},
	})
	if err != nil {
		return err
	}

	if err := a.setupTextResources(); err != nil {
		// The tracer still runs without the overlay.
		a.Log.Warnf("text overlay disabled: %v", err)
	}

	if hasTimestamps {
		a.Timer, err = NewFrameTimer(a.Device, a.Log)
		if err != nil {
			a.Log.Warnf("frame timer disabled: %v", err)
			a.Timer = nil
		}
	} else {
		a.Log.Infof("adapter lacks timestamp queries, frame timing disabled")
	}

	a.dispatchSide = uint32(DispatchSide(RenderWidth*RenderHeight, WorkgroupSize))
	a.Log.Infof("dispatching %dx%d workgroups of %d for %dx%d pixels",
		a.dispatchSide, a.dispatchSide, WorkgroupSize, RenderWidth, RenderHeight)

	return nil
}

func (a *App) setupPipelines(surfaceFormat wgpu.TextureFormat) error {
	csModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Trace CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.TraceWGSL},
	})
	if err != nil {
		return err
	}

	// Layout auto
	a.TracePipeline, err = a.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Trace Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     csModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return err
	}

	fsModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL},
	})
	if err != nil {
		return err
	}

	a.BlitPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     fsModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	return err
}

func (a *App) setupTextResources() error {
	a.Overlay = core.NewTextOverlay()

	atlas := a.Overlay.AtlasImage
	w, h := atlas.Bounds().Dx(), atlas.Bounds().Dy()
	tex, err := a.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Text Atlas",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	a.Queue.WriteTexture(tex.AsImageCopy(), atlas.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(atlas.Stride),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})

	a.TextAtlasView, err = tex.CreateView(nil)
	if err != nil {
		return err
	}

	textMod, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Text Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.TextWGSL},
	})
	if err != nil {
		return err
	}

	a.TextPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Text Pipeline",
		Vertex: wgpu.VertexState{
			Module:     textMod,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(core.TextVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     textMod,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: a.Config.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	a.TextBindGroup, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.TextPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.TextAtlasView},
			{Binding: 1, Sampler: a.Sampler},
		},
	})
	return err
}

func (a *App) updateOverlay() {
	if a.Overlay == nil || a.TextPipeline == nil {
		return
	}

	status := fmt.Sprintf("frame %d / %d", a.FrameIndex, TargetFrames)
	if a.Timer != nil && a.Timer.Samples > 0 {
		status += fmt.Sprintf("\ntrace %.2f ms", a.Timer.LastDuration.Seconds()*1000)
	}

	items := []core.TextItem{{
		Text:     status,
		Position: [2]float32{10, 10},
		Scale:    2,
		Color:    [4]float32{1, 1, 0, 1},
	}}

	vertices := a.Overlay.BuildVertices(items, int(a.Config.Width), int(a.Config.Height))
	a.textVertexCount = uint32(len(vertices))
	if len(vertices) == 0 {
		return
	}

	vSize := uint64(len(vertices)) * uint64(unsafe.Sizeof(core.TextVertex{}))
	if a.TextVertexBuffer == nil || a.TextVertexBuffer.GetSize() < vSize {
		if a.TextVertexBuffer != nil {
			a.TextVertexBuffer.Release()
		}
		buf, err := a.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Text VB",
			Size:  vSize,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			a.textVertexCount = 0
			return
		}
		a.TextVertexBuffer = buf
	}
	a.Queue.WriteBuffer(a.TextVertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), vSize))
}

// RenderFrame records and submits one frame: the compute pass tracing
// every pixel, then the blit and overlay passes to the surface.
func (a *App) RenderFrame() error {
	a.updateOverlay()

	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}

	if a.Timer != nil {
		a.Timer.BeginPass(encoder)
	}
	cPass := encoder.BeginComputePass(nil)
	cPass.SetPipeline(a.TracePipeline)
	cPass.SetBindGroup(0, a.Resources.SceneBindGroup, nil)
	cPass.SetBindGroup(1, a.Resources.ParamsBindGroup, nil)
	cPass.DispatchWorkgroups(a.dispatchSide, a.dispatchSide, 1)
	if err := cPass.End(); err != nil {
		return err
	}
	if a.Timer != nil {
		a.Timer.EndPass(encoder)
		a.Timer.Resolve(encoder)
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rPass.SetPipeline(a.BlitPipeline)
	rPass.SetBindGroup(0, a.BlitBG, nil)
	rPass.Draw(6, 1, 0, 0)

	if a.textVertexCount > 0 && a.TextVertexBuffer != nil && a.TextPipeline != nil {
		rPass.SetPipeline(a.TextPipeline)
		rPass.SetBindGroup(0, a.TextBindGroup, nil)
		rPass.SetVertexBuffer(0, a.TextVertexBuffer, 0, a.TextVertexBuffer.GetSize())
		rPass.Draw(a.textVertexCount, 1, 0, 0)
	}
	if err := rPass.End(); err != nil {
		return err
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()

	if a.Timer != nil {
		a.Timer.Poll()
	}

	a.FrameIndex++
	return nil
}

// DispatchSide returns the side of the smallest square workgroup grid
// whose invocation count covers totalPixels, so side*side*workgroupSize
// is at least totalPixels and (side-1) squared would fall short.
func DispatchSide(totalPixels, workgroupSize int) int {
	if totalPixels <= 0 {
		return 1
	}
	groups := (totalPixels + workgroupSize - 1) / workgroupSize
	side := int(math.Sqrt(float64(groups)))
	for side > 1 && side*side >= groups {
		side--
	}
	for side*side < groups {
		side++
	}
	if side < 1 {
		side = 1
	}
	return side
}
