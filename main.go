package main

import (
	"flag"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/lumen3d/lumen/app"
	"github.com/lumen3d/lumen/bvh"
	"github.com/lumen3d/lumen/core"
	"github.com/lumen3d/lumen/geom"
)

func init() {
	runtime.LockOSThread()
}

func buildScene() (*core.Scene, error) {
	floor := geom.Plane(20, 20)
	box := geom.Box(1.5, 1.5, 1.5)
	tallBox := geom.Box(1, 3, 1)
	ball := geom.Sphere(1, 32, 16)

	instances := []geom.Instance{
		{Mesh: floor, Transform: mgl32.Ident4(), MaterialIndex: 0},
		{Mesh: box, Transform: mgl32.Translate3D(-2.5, 0.75, 0), MaterialIndex: 1},
		{Mesh: tallBox, Transform: mgl32.Translate3D(2, 1.5, -1.5).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(30))), MaterialIndex: 2},
		{Mesh: ball, Transform: mgl32.Translate3D(0, 1, 1.5), MaterialIndex: 3},
	}

	consolidated, err := geom.Consolidate(instances)
	if err != nil {
		return nil, err
	}

	scene := core.NewScene()
	scene.Geometry = consolidated
	scene.Materials = []core.Material{
		core.NewMaterial([4]float32{0.75, 0.75, 0.78, 1}), // floor
		core.NewMaterial([4]float32{0.85, 0.25, 0.2, 1}),  // red box
		core.NewMaterial([4]float32{0.2, 0.45, 0.85, 1}),  // blue pillar
		core.NewMaterial([4]float32{0.95, 0.8, 0.25, 1}),  // gold sphere
	}

	if err := scene.Finalize(); err != nil {
		return nil, err
	}
	return scene, nil
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	frames := flag.Int("frames", app.TargetFrames, "Frame count before exit, 0 runs until closed")
	flag.Parse()

	log := core.NewDefaultLogger("lumen", *debug)

	scene, err := buildScene()
	if err != nil {
		log.Errorf("scene setup failed: %v", err)
		return
	}

	tree, err := bvh.Build(scene.Geometry.Positions, 4, scene.Geometry.Indices, bvh.DefaultMaxLeafTris)
	if err != nil {
		log.Errorf("bvh build failed: %v", err)
		return
	}
	log.Infof("bvh: %d nodes, %d leaves, depth %d over %d triangles",
		tree.Stats.Nodes, tree.Stats.Leaves, tree.Stats.MaxDepth, scene.Geometry.TriangleCount())

	enc, err := bvh.Encode(tree)
	if err != nil {
		log.Errorf("bvh encode failed: %v", err)
		return
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	window, err := glfw.CreateWindow(app.RenderWidth, app.RenderHeight, "Lumen", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, scene, enc, tree.Indirection, log)
	if err := application.Init(); err != nil {
		log.Errorf("init failed: %v", err)
		return
	}

	start := glfw.GetTime()
	for !window.ShouldClose() {
		glfw.PollEvents()
		if err := application.RenderFrame(); err != nil {
			log.Errorf("frame %d failed: %v", application.FrameIndex, err)
			return
		}
		if *frames > 0 && application.FrameIndex >= *frames {
			break
		}
	}
	elapsed := glfw.GetTime() - start

	log.Infof("rendered %d frames in %.2fs (%.1f fps)",
		application.FrameIndex, elapsed, float64(application.FrameIndex)/elapsed)
	if application.Timer != nil && application.Timer.Samples > 0 {
		log.Infof("last measured trace pass: %s over %d samples",
			application.Timer.LastDuration, application.Timer.Samples)
	}
}
