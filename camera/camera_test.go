package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNew(t *testing.T) {
	cam := New([3]int{64, 32, 64})

	// Should look at the domain center
	if !cam.Target.ApproxEqual(mgl32.Vec3{32, 16, 32}) {
		t.Errorf("expected target (32, 16, 32), got %v", cam.Target)
	}
	if cam.Distance < cam.MinDistance || cam.Distance > cam.MaxDistance {
		t.Errorf("distance %f outside [%f, %f]", cam.Distance, cam.MinDistance, cam.MaxDistance)
	}
}

func TestPositionAtDistance(t *testing.T) {
	cam := New([3]int{40, 40, 40})

	testCases := []struct{ yaw, pitch float32 }{
		{0, 0},
		{math.Pi / 2, 0.3},
		{3, -1.2},
	}

	for _, tc := range testCases {
		cam.Yaw, cam.Pitch = tc.yaw, tc.pitch
		d := cam.Position().Sub(cam.Target).Len()
		if math.Abs(float64(d-cam.Distance)) > 1e-3 {
			t.Errorf("yaw=%f pitch=%f: eye at distance %f, want %f", tc.yaw, tc.pitch, d, cam.Distance)
		}
		if math.Abs(float64(cam.Forward().Len()-1)) > 1e-5 {
			t.Errorf("forward not unit length: %v", cam.Forward())
		}
	}
}

func TestYawZeroLooksDownMinusZ(t *testing.T) {
	cam := New([3]int{10, 10, 10})
	cam.Yaw, cam.Pitch = 0, 0

	if !cam.Forward().ApproxEqual(mgl32.Vec3{0, 0, -1}) {
		t.Errorf("expected forward (0,0,-1), got %v", cam.Forward())
	}
	if !cam.Right().ApproxEqual(mgl32.Vec3{1, 0, 0}) {
		t.Errorf("expected right (1,0,0), got %v", cam.Right())
	}
}

func TestOrbitClampsPitchAndWrapsYaw(t *testing.T) {
	cam := New([3]int{10, 10, 10})
	cam.Yaw, cam.Pitch = 0, 0

	cam.Orbit(0, 10)
	if cam.Pitch != maxPitch {
		t.Errorf("expected pitch clamped to %f, got %f", maxPitch, cam.Pitch)
	}
	cam.Orbit(0, -20)
	if cam.Pitch != -maxPitch {
		t.Errorf("expected pitch clamped to %f, got %f", -maxPitch, cam.Pitch)
	}

	cam.Orbit(-1, 0)
	if cam.Yaw < 0 || cam.Yaw >= 2*math.Pi {
		t.Errorf("yaw %f not wrapped into [0, 2pi)", cam.Yaw)
	}
}

func TestZoomClamps(t *testing.T) {
	cam := New([3]int{20, 20, 20})

	cam.ZoomBy(1000)
	if cam.Distance != cam.MinDistance {
		t.Errorf("expected min distance %f, got %f", cam.MinDistance, cam.Distance)
	}

	cam.ZoomBy(0.0001)
	if cam.Distance != cam.MaxDistance {
		t.Errorf("expected max distance %f, got %f", cam.MaxDistance, cam.Distance)
	}

	before := cam.Distance
	cam.ZoomBy(0)
	if cam.Distance != before {
		t.Error("non-positive zoom factor should be ignored")
	}
}

func TestPanMovesTarget(t *testing.T) {
	cam := New([3]int{20, 20, 20})
	cam.Yaw = 0
	start := cam.Target

	cam.Pan(100, 0)
	if cam.Target.Y() != start.Y() || cam.Target.X() <= start.X() {
		t.Errorf("pan right should move target along +X, got %v from %v", cam.Target, start)
	}

	cam.Pan(0, 100)
	if cam.Target.Y() <= start.Y() {
		t.Errorf("pan up should raise target, got %v", cam.Target)
	}
}

func TestResizeAndReset(t *testing.T) {
	cam := New([3]int{100, 100, 100})
	cam.ZoomBy(0.0001)

	cam.Resize([3]int{10, 10, 10})
	if cam.Distance > cam.MaxDistance {
		t.Errorf("distance %f not clamped after shrinking domain", cam.Distance)
	}

	cam.Orbit(1, 1)
	cam.Pan(50, 50)
	cam.Reset()
	if !cam.Target.ApproxEqual(mgl32.Vec3{5, 5, 5}) {
		t.Errorf("expected reset target (5,5,5), got %v", cam.Target)
	}
	if cam.Yaw != math.Pi/4 {
		t.Errorf("expected reset yaw, got %f", cam.Yaw)
	}
}
