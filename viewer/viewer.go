// Package viewer renders a running simulation with raylib and routes UI input to the runner.
package viewer

import (
	"log/slog"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/mpmfluid/app"
	"github.com/pthm-cable/mpmfluid/camera"
	"github.com/pthm-cable/mpmfluid/mpm"
)

const (
	title        = "MPM Fluid"
	panelWidth   = 200
	particleSize = 0.4
	controls     = "Space: pause | RMB drag: orbit | MMB drag: pan | Wheel: zoom | G: grid | S: spawn | Home: reset view"
)

// Viewer draws the simulation and owns the window-side interaction state.
// The window must be initialized before New is called.
type Viewer struct {
	runner   *app.Runner
	cam      *camera.Camera
	gridDims [3]int
	showGrid bool

	screenWidth, screenHeight int32
}

// New creates a viewer for r.
func New(r *app.Runner) *Viewer {
	dims := r.Sim().GridSize()
	return &Viewer{
		runner:       r,
		cam:          camera.New(dims),
		gridDims:     dims,
		screenWidth:  int32(rl.GetScreenWidth()),
		screenHeight: int32(rl.GetScreenHeight()),
	}
}

// Run loops until the window closes, the simulation diverges, or maxSteps steps have run (0 = unlimited).
func (v *Viewer) Run(maxSteps uint64) error {
	for !rl.WindowShouldClose() {
		if err := v.Update(); err != nil {
			return err
		}
		v.Draw()

		if maxSteps > 0 && v.runner.Step() >= maxSteps {
			slog.Info("max steps reached", "step", v.runner.Step())
			break
		}
	}
	return nil
}

// Update handles input and advances the simulation by the last frame's duration.
func (v *Viewer) Update() error {
	v.handleInput()
	v.runner.Perf().RecordFrame()

	elapsed := time.Duration(float64(rl.GetFrameTime()) * float64(time.Second))
	_, err := v.runner.Advance(elapsed)
	return err
}

// handleInput processes keyboard and mouse input.
func (v *Viewer) handleInput() {
	if rl.IsWindowResized() {
		v.screenWidth = int32(rl.GetScreenWidth())
		v.screenHeight = int32(rl.GetScreenHeight())
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		v.runner.SetPaused(!v.runner.Paused())
	}
	if rl.IsKeyPressed(rl.KeyG) {
		v.showGrid = !v.showGrid
	}
	if rl.IsKeyPressed(rl.KeyS) {
		if _, err := v.runner.SpawnConfigured(); err != nil {
			slog.Warn("spawn failed", "error", err)
		}
	}

	// Grid may have been resized by the runner
	if dims := v.runner.Sim().GridSize(); dims != v.gridDims {
		v.gridDims = dims
		v.cam.Resize(dims)
	}

	v.handleCameraInput()
}

// handleCameraInput processes orbit, pan and zoom controls.
func (v *Viewer) handleCameraInput() {
	// Ignore drags that start over the control panel
	if rl.GetMousePosition().X < float32(v.screenWidth-panelWidth) {
		delta := rl.GetMouseDelta()
		if rl.IsMouseButtonDown(rl.MouseButtonRight) {
			v.cam.Orbit(-delta.X*0.01, delta.Y*0.01)
		}
		if rl.IsMouseButtonDown(rl.MouseButtonMiddle) {
			v.cam.Pan(-delta.X, delta.Y)
		}
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.cam.ZoomBy(1 + wheel*0.1)
	}

	// Arrow keys orbit as well
	if rl.IsKeyDown(rl.KeyLeft) {
		v.cam.Orbit(-0.02, 0)
	}
	if rl.IsKeyDown(rl.KeyRight) {
		v.cam.Orbit(0.02, 0)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		v.cam.Orbit(0, 0.02)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		v.cam.Orbit(0, -0.02)
	}

	if rl.IsKeyPressed(rl.KeyHome) {
		v.cam.Reset()
	}
}

// Draw renders one frame.
func (v *Viewer) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(18, 20, 28, 255))

	rl.BeginMode3D(v.camera3D())
	v.drawDomain()
	if v.showGrid {
		v.drawGrid()
	}
	v.drawParticles()
	rl.EndMode3D()

	sim := v.runner.Sim()
	drawHUD(HUDData{
		Title:     title,
		Particles: sim.ParticleCount(),
		Grid:      sim.GridSize(),
		Step:      sim.StepCount(),
		FPS:       rl.GetFPS(),
		Paused:    v.runner.Paused(),
		Perf:      v.runner.Perf().Stats(),
	})
	v.drawPanel()
	drawControls(v.screenHeight, controls)

	rl.EndDrawing()
}

func (v *Viewer) camera3D() rl.Camera3D {
	return rl.Camera3D{
		Position:   vec3(v.cam.Position()),
		Target:     vec3(v.cam.Target),
		Up:         rl.NewVector3(0, 1, 0),
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}
}

// drawDomain outlines the simulation box.
func (v *Viewer) drawDomain() {
	size := mgl32.Vec3{float32(v.gridDims[0]), float32(v.gridDims[1]), float32(v.gridDims[2])}
	center := size.Mul(0.5)
	rl.DrawCubeWires(vec3(center), size[0], size[1], size[2], rl.Gray)
}

// drawParticles draws each particle as a small cube tinted by its material color.
func (v *Viewer) drawParticles() {
	for i := range v.runner.Sim().Particles() {
		p := &v.runner.Sim().Particles()[i]
		rl.DrawCube(vec3(p.Position), particleSize, particleSize, particleSize, materialColor(p.Material))
	}
}

// drawGrid draws every cell that received mass last step, brighter for heavier cells.
func (v *Viewer) drawGrid() {
	sim := v.runner.Sim()
	cells := sim.Cells()
	dims := v.gridDims

	var maxMass float32
	for i := range cells {
		if cells[i].Mass > maxMass {
			maxMass = cells[i].Mass
		}
	}
	if maxMass <= 0 {
		return
	}

	for x := 0; x < dims[0]; x++ {
		for y := 0; y < dims[1]; y++ {
			for z := 0; z < dims[2]; z++ {
				m := sim.Cell(x, y, z).Mass
				if m <= 0 {
					continue
				}
				alpha := uint8(20 + 100*m/maxMass)
				rl.DrawCubeWires(vec3(mpm.CellCenter([3]int{x, y, z})), 1, 1, 1, rl.NewColor(120, 200, 255, alpha))
			}
		}
	}
}

// drawPanel renders the right-side control panel and applies button actions.
func (v *Viewer) drawPanel() {
	x := float32(v.screenWidth - panelWidth + 10)
	y := float32(10)
	w := float32(panelWidth - 20)

	rl.DrawRectangle(v.screenWidth-panelWidth, 0, panelWidth, v.screenHeight, rl.NewColor(30, 32, 40, 220))
	rl.DrawText("Controls", int32(x), int32(y), 20, rl.LightGray)
	y += 35

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 30}, "Spawn sphere") {
		v.spawn(mpm.ShapeSphere)
	}
	y += 40
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 30}, "Spawn cube") {
		v.spawn(mpm.ShapeCube)
	}
	y += 40
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 30}, "Reset") {
		v.runner.Reset()
	}
	y += 40

	pauseLabel := "Pause"
	if v.runner.Paused() {
		pauseLabel = "Resume"
	}
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 30}, pauseLabel) {
		v.runner.SetPaused(!v.runner.Paused())
	}
	y += 40

	gridLabel := "Show grid"
	if v.showGrid {
		gridLabel = "Hide grid"
	}
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: w, Height: 30}, gridLabel) {
		v.showGrid = !v.showGrid
	}
	y += 50

	v.drawMaterialSliders(x, y, w)
}

// drawMaterialSliders exposes the default material's viscosity and stiffness.
func (v *Viewer) drawMaterialSliders(x, y, w float32) {
	m := v.runner.Config().DefaultMaterial()

	rl.DrawText(m.Name, int32(x), int32(y), 16, rl.LightGray)
	y += 22

	rl.DrawText("Viscosity", int32(x), int32(y), 14, rl.Gray)
	y += 18
	viscosity := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 20}, "", "", m.Viscosity, 0, 500)
	y += 30

	rl.DrawText("Stiffness", int32(x), int32(y), 14, rl.Gray)
	y += 18
	stiffness := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 20}, "", "", m.EOSStiffness, 1, 5000)

	if viscosity != m.Viscosity || stiffness != m.EOSStiffness {
		m.Viscosity = viscosity
		m.EOSStiffness = stiffness
		if _, err := v.runner.UpdateMaterial(m); err != nil {
			slog.Warn("material update failed", "material", m.Name, "error", err)
		}
	}
}

func (v *Viewer) spawn(shape mpm.Shape) {
	if _, err := v.runner.SpawnDefault(shape); err != nil {
		slog.Warn("spawn failed", "shape", shape, "error", err)
	}
}

func vec3(v mgl32.Vec3) rl.Vector3 {
	return rl.NewVector3(v[0], v[1], v[2])
}

// materialColor converts a material's normalized color to an opaque raylib color.
func materialColor(m mpm.Material) rl.Color {
	return rl.NewColor(channel(m.Color[0]), channel(m.Color[1]), channel(m.Color[2]), 255)
}

func channel(c float32) uint8 {
	if c <= 0 {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return uint8(c * 255)
}
