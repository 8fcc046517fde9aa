package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a unique identifier for debug-naming GPU objects
// (render targets, frame slots).
func NewID() string {
	return uuid.NewString()
}

// NewNamedID prefixes the identifier with a human readable tag so log
// lines stay greppable.
func NewNamedID(tag string) string {
	return fmt.Sprintf("%s-%s", tag, uuid.NewString()[:8])
}
