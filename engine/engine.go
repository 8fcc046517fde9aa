package engine

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/vortex/engine/config"
	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/platform"
	"github.com/spaghettifunk/vortex/engine/renderer"
	"github.com/spaghettifunk/vortex/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	cfg          *config.Config

	isRunning   bool
	isSuspended bool

	platform  *platform.Platform
	backend   *vulkan.Backend
	swapchain *vulkan.Swapchain
	context   *renderer.RenderContext

	clock    *core.Clock
	metrics  *core.FrameMetrics
	lastTime float64

	width  uint32
	height uint32
}

func New(g *Game, cfg *config.Config) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("engine requires a game instance")
	}

	var p *platform.Platform
	if !cfg.Renderer.Headless {
		var err error
		p, err = platform.New()
		if err != nil {
			core.LogError(err.Error())
			return nil, err
		}
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		cfg:          cfg,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		platform:     p,
		isRunning:    true,
		isSuspended:  false,
		width:        cfg.Application.Width,
		height:       cfg.Application.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.SetLogLevel(e.cfg.Logging.Level); err != nil {
		return err
	}

	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onQuit)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if e.platform != nil {
		if err := e.platform.Startup(e.cfg.Application.Name, e.width, e.height); err != nil {
			return err
		}
	}

	e.backend = vulkan.New(e.platform, e.cfg.Renderer.ValidationLayers)
	if err := e.backend.Initialize(e.cfg.Application.Name); err != nil {
		return err
	}

	var swapchain renderer.Swapchain
	if e.platform != nil {
		sc, err := e.backend.CreateSwapchain(e.width, e.height)
		if err != nil {
			return err
		}
		e.swapchain = sc
		swapchain = sc
	}

	e.context = renderer.NewRenderContext(e.backend.Device(), swapchain)
	if err := e.context.Prepare(e.cfg.Renderer.ThreadCount, renderer.NewRenderTarget); err != nil {
		return err
	}
	e.context.SetBufferBlockSize(e.cfg.Renderer.BufferBlockSize)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.ElapsedSeconds()

	for e.isRunning {
		if e.platform != nil {
			e.platform.PumpMessages()
			if e.platform.ShouldClose() {
				e.isRunning = false
				break
			}
		}

		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.ElapsedSeconds()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %v", err)
				e.isRunning = false
				break
			}
		}

		if err := e.drawFrame(delta); err != nil {
			core.LogError("frame draw failed, shutting down: %v", err)
			e.isRunning = false
			break
		}

		e.clock.Update()
		e.metrics.Update(e.clock.ElapsedSeconds() - currentTime)
		e.lastTime = currentTime
	}

	return nil
}

func (e *Engine) drawFrame(delta float64) error {
	_, err := e.context.Begin()
	if err != nil {
		if errors.Is(err, core.ErrFrameSkipped) {
			// Stale or zero-sized surface; try again next tick.
			return nil
		}
		return err
	}

	var commands []renderer.CommandBuffer
	if e.gameInstance.FnRender != nil {
		commands, err = e.gameInstance.FnRender(e.context.ActiveFrame(), delta)
		if err != nil {
			return err
		}
	}

	return e.context.Submit(commands)
}

// RenderContext exposes the frame pacing context to the game.
func (e *Engine) RenderContext() *renderer.RenderContext {
	return e.context
}

func (e *Engine) Backend() *vulkan.Backend {
	return e.backend
}

// Swapchain returns the presentation swapchain, nil in headless mode.
func (e *Engine) Swapchain() *vulkan.Swapchain {
	return e.swapchain
}

func (e *Engine) Metrics() *core.FrameMetrics {
	return e.metrics
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}

	if e.context != nil {
		e.context.Destroy()
		e.context = nil
	}
	if e.swapchain != nil {
		e.swapchain.Destroy()
		e.swapchain = nil
	}
	if e.backend != nil {
		if err := e.backend.Shutdown(); err != nil {
			return err
		}
		e.backend = nil
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			return err
		}
		e.platform = nil
	}
	return core.EventSystemShutdown()
}

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onQuit(context core.EventContext) {
	core.LogInfo("application quit requested")
	e.isRunning = false
}

func (e *Engine) onResized(context core.EventContext) {
	event, ok := context.Data.(*core.SystemEvent)
	if !ok {
		return
	}

	e.width = event.WindowWidth
	e.height = event.WindowHeight

	// Minimized windows report a zero extent; suspend until restored.
	if e.width == 0 || e.height == 0 {
		core.LogInfo("window minimized, suspending")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming")
		e.isSuspended = false
	}

	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			core.LogError(err.Error())
		}
	}
}
