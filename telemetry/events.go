// Package telemetry provides step timing, windowed particle statistics and CSV output.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/mpmfluid/mpm"
)

// EventType identifies control and lifecycle events.
type EventType string

const (
	EventSpawn          EventType = "spawn"
	EventEmitter        EventType = "emitter"
	EventReset          EventType = "reset"
	EventResize         EventType = "resize"
	EventMaterialUpdate EventType = "material_update"
	EventDivergence     EventType = "divergence"
)

// Event represents a single control or lifecycle event.
type Event struct {
	Type     EventType `csv:"type"`
	Step     uint64    `csv:"step"`
	Count    int       `csv:"count"` // particles added or affected
	Material string    `csv:"material"`
	Detail   string    `csv:"detail"`
}

// NewSpawnEvent creates an interactive spawn event.
func NewSpawnEvent(step uint64, shape mpm.Shape, added int, material string) Event {
	return Event{Type: EventSpawn, Step: step, Count: added, Material: material, Detail: shape.String()}
}

// NewEmitterEvent creates an event for particles added by scripted emitters.
func NewEmitterEvent(step uint64, added int) Event {
	return Event{Type: EventEmitter, Step: step, Count: added}
}

// NewResetEvent creates a reset event. dropped is the number of particles removed.
func NewResetEvent(step uint64, dropped int) Event {
	return Event{Type: EventReset, Step: step, Count: dropped}
}

// NewResizeEvent creates a grid resize event.
func NewResizeEvent(step uint64, dims [3]int, particles int) Event {
	return Event{Type: EventResize, Step: step, Count: particles, Detail: fmt.Sprintf("%dx%dx%d", dims[0], dims[1], dims[2])}
}

// NewMaterialUpdateEvent creates a material parameter change event.
func NewMaterialUpdateEvent(step uint64, material string, affected int) Event {
	return Event{Type: EventMaterialUpdate, Step: step, Count: affected, Material: material}
}

// NewDivergenceEvent creates an event for a diverged step.
func NewDivergenceEvent(err *mpm.DivergenceError) Event {
	return Event{Type: EventDivergence, Step: err.Step, Count: 1, Detail: err.Error()}
}

// LogEvent logs the event using slog.
func (e Event) LogEvent() {
	level := slog.LevelInfo
	if e.Type == EventDivergence {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "event",
		"type", string(e.Type),
		"step", e.Step,
		"count", e.Count,
		"material", e.Material,
		"detail", e.Detail,
	)
}
