package renderer

import (
	"testing"
	"time"
)

func TestFencePoolRecycling(t *testing.T) {
	device := newFakeDevice()
	pool := NewFencePool(device)

	const n = 3
	first := make([]Fence, 0, n)
	for i := 0; i < n; i++ {
		f, err := pool.Request()
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		first = append(first, f)
	}

	// Pretend the GPU signaled everything, then recycle.
	for _, f := range first {
		f.(*fakeFence).signaled = true
	}
	if status := pool.Wait(time.Second); status != WaitSuccess {
		t.Fatalf("wait: got status %d", status)
	}
	if err := pool.Reset(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		f, err := pool.Request()
		if err != nil {
			t.Fatalf("request %d after reset: %v", i, err)
		}
		if f != first[i] {
			t.Errorf("request %d: got %s, want %s", i, fenceID(f), fenceID(first[i]))
		}
	}
	if device.createdFences != n {
		t.Errorf("expected %d fences created, got %d", n, device.createdFences)
	}
}

func TestFencePoolWaitWithNoActiveFences(t *testing.T) {
	pool := NewFencePool(newFakeDevice())
	if status := pool.Wait(time.Millisecond); status != WaitSuccess {
		t.Errorf("wait on empty pool: got status %d, want success", status)
	}
}

func TestFencePoolWaitTimeout(t *testing.T) {
	pool := NewFencePool(newFakeDevice())
	if _, err := pool.Request(); err != nil {
		t.Fatal(err)
	}
	// The fence never signals.
	if status := pool.Wait(time.Millisecond); status != WaitTimeout {
		t.Errorf("got status %d, want timeout", status)
	}
}

func TestFencePoolResetUnsignalsActiveFences(t *testing.T) {
	device := newFakeDevice()
	pool := NewFencePool(device)

	f, err := pool.Request()
	if err != nil {
		t.Fatal(err)
	}
	f.(*fakeFence).signaled = true

	if err := pool.Reset(); err != nil {
		t.Fatal(err)
	}
	if f.(*fakeFence).signaled {
		t.Error("fence still signaled after reset")
	}
	if pool.ActiveCount() != 0 {
		t.Errorf("active count = %d after reset", pool.ActiveCount())
	}
}

func TestFencePoolDestroy(t *testing.T) {
	device := newFakeDevice()
	pool := NewFencePool(device)
	for i := 0; i < 2; i++ {
		if _, err := pool.Request(); err != nil {
			t.Fatal(err)
		}
	}
	pool.Destroy()
	if device.destroyedFences != 2 {
		t.Errorf("expected 2 fences destroyed, got %d", device.destroyedFences)
	}
}
