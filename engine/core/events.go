package core

import "sync"

// System event codes. Applications should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	EVENT_CODE_RESIZED SystemEventCode = 0x02

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// EventContext carries the payload of a fired event.
type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// SystemEvent is the payload for window-level events such as resizes.
type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type FnOnEvent func(context EventContext)

type eventSystemState struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]FnOnEvent
}

var onceEvent sync.Once
var eventState *eventSystemState

func EventSystemInitialize() bool {
	onceEvent.Do(func() {
		eventState = &eventSystemState{
			registered: make(map[SystemEventCode][]FnOnEvent),
		}
	})
	return true
}

func EventSystemShutdown() error {
	if eventState != nil {
		eventState.mu.Lock()
		eventState.registered = make(map[SystemEventCode][]FnOnEvent)
		eventState.mu.Unlock()
	}
	return nil
}

// EventRegister subscribes a callback to the given code.
func EventRegister(code SystemEventCode, onEvent FnOnEvent) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	eventState.registered[code] = append(eventState.registered[code], onEvent)
	return true
}

// EventFire delivers the event to every listener of its code, in
// registration order, on the calling goroutine.
func EventFire(context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.RLock()
	listeners := eventState.registered[context.Type]
	eventState.mu.RUnlock()
	if len(listeners) == 0 {
		return false
	}
	for _, fn := range listeners {
		fn(context)
	}
	return true
}
