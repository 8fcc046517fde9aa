package engine

import (
	"github.com/spaghettifunk/vortex/engine/renderer"
)

// Game is the application the engine drives. The engine owns the frame
// protocol; the game records commands against the active frame slot.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func(e *Engine) error
type Update func(deltaTime float64) error
type Render func(frame *renderer.FrameSlot, deltaTime float64) ([]renderer.CommandBuffer, error)
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
