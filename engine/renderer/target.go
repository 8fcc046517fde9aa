package renderer

import (
	"github.com/spaghettifunk/vortex/engine/core"
)

// RenderTarget couples an output image with the metadata recording needs.
// The frame core treats it as an opaque destination; backends and
// applications agree on its contents through the TargetFactory.
type RenderTarget struct {
	ID     string
	Image  Image
	Extent Extent2D
}

func NewRenderTarget(image Image, extent Extent2D) *RenderTarget {
	return &RenderTarget{
		ID:     core.NewNamedID("target"),
		Image:  image,
		Extent: extent,
	}
}
