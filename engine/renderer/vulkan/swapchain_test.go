package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestDesiredImageCount(t *testing.T) {
	tests := []struct {
		name      string
		requested uint32
		min       uint32
		max       uint32
		want      uint32
	}{
		{"default is min plus one", 0, 2, 8, 3},
		{"request wins over default", 4, 2, 8, 4},
		{"request clamped to max", 16, 2, 8, 8},
		{"request clamped to min", 1, 2, 8, 2},
		{"zero max means unbounded", 16, 2, 0, 16},
		{"default respects max", 0, 3, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capabilities := vk.SurfaceCapabilities{
				MinImageCount: tt.min,
				MaxImageCount: tt.max,
			}
			got := desiredImageCount(tt.requested, capabilities)
			if got != tt.want {
				t.Fatalf("desiredImageCount(%d, min=%d, max=%d) = %d, want %d",
					tt.requested, tt.min, tt.max, got, tt.want)
			}
		})
	}
}
