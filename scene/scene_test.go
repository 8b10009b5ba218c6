package scene

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/mpmfluid/config"
	"github.com/pthm-cable/mpmfluid/mpm"
)

type spawnCall struct {
	shape    mpm.Shape
	count    int
	material string
}

type fakeSpawner struct {
	calls []spawnCall
	err   error
}

func (f *fakeSpawner) Spawn(shape mpm.Shape, count int, material string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, spawnCall{shape, count, material})
	return count, nil
}

func TestNewFromConfig(t *testing.T) {
	s, err := New([]config.EmitterConfig{
		{Shape: "sphere", Count: 100, AtStep: 0},
		{Shape: "cube", Count: 27, AtStep: 10, Material: "syrup"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Pending())

	_, err = New([]config.EmitterConfig{{Shape: "torus"}})
	assert.Error(t, err)
}

func TestUpdateFiresOnceAtStep(t *testing.T) {
	s, err := New([]config.EmitterConfig{{Shape: "cube", Count: 27, AtStep: 5, Material: "syrup"}})
	require.NoError(t, err)
	sp := &fakeSpawner{}

	for step := uint64(0); step < 5; step++ {
		n, err := s.Update(step, sp)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	n, err := s.Update(5, sp)
	require.NoError(t, err)
	assert.Equal(t, 27, n)
	assert.Equal(t, []spawnCall{{mpm.ShapeCube, 27, "syrup"}}, sp.calls)
	assert.Zero(t, s.Pending())

	n, err = s.Update(6, sp)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, sp.calls, 1)
}

func TestUpdateRepeats(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	s.Add(Emitter{Shape: mpm.ShapeSphere, Count: 10}, Trigger{AtStep: 2, Every: 3, Remaining: 2})
	sp := &fakeSpawner{}

	var fired []uint64
	for step := uint64(0); step < 20; step++ {
		n, err := s.Update(step, sp)
		require.NoError(t, err)
		if n > 0 {
			fired = append(fired, step)
		}
	}
	assert.Equal(t, []uint64{2, 5, 8}, fired)
	assert.Zero(t, s.Pending())
}

func TestRepeatWithoutIntervalFiresOnce(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	s.Add(Emitter{Shape: mpm.ShapeSphere, Count: 1}, Trigger{AtStep: 0, Remaining: 5})
	sp := &fakeSpawner{}

	for step := uint64(0); step < 5; step++ {
		_, err := s.Update(step, sp)
		require.NoError(t, err)
	}
	assert.Len(t, sp.calls, 1)
}

func TestUpdateLateStepCatchesUp(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	s.Add(Emitter{Shape: mpm.ShapeSphere, Count: 4}, Trigger{AtStep: 3})
	s.Add(Emitter{Shape: mpm.ShapeCube, Count: 8}, Trigger{AtStep: 7})

	n, err := s.Update(50, &fakeSpawner{})
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Zero(t, s.Pending())
}

func TestUpdateSpawnError(t *testing.T) {
	s, err := New(nil)
	require.NoError(t, err)
	s.Add(Emitter{Shape: mpm.ShapeSphere, Count: 4}, Trigger{})

	boom := errors.New("boom")
	_, err = s.Update(0, &fakeSpawner{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Pending(), "a failed one-shot emitter is still consumed")
}
