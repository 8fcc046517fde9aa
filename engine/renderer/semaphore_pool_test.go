package renderer

import (
	"testing"
)

func TestSemaphorePoolRecycling(t *testing.T) {
	device := newFakeDevice()
	pool := NewSemaphorePool(device)

	const n = 4
	first := make([]Semaphore, 0, n)
	for i := 0; i < n; i++ {
		s, err := pool.Request()
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		first = append(first, s)
	}

	pool.Reset()

	for i := 0; i < n; i++ {
		s, err := pool.Request()
		if err != nil {
			t.Fatalf("request %d after reset: %v", i, err)
		}
		if s != first[i] {
			t.Errorf("request %d: got %s, want %s", i, semaphoreID(s), semaphoreID(first[i]))
		}
	}

	if device.createdSems != n {
		t.Errorf("expected %d semaphores created, got %d", n, device.createdSems)
	}
}

func TestSemaphorePoolNeverHandsOutDuplicates(t *testing.T) {
	pool := NewSemaphorePool(newFakeDevice())

	seen := make(map[Semaphore]bool)
	for i := 0; i < 8; i++ {
		s, err := pool.Request()
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if seen[s] {
			t.Fatalf("request %d returned an already-active semaphore %s", i, semaphoreID(s))
		}
		seen[s] = true
	}
}

func TestSemaphorePoolOwnedTakesFreeSemaphore(t *testing.T) {
	device := newFakeDevice()
	pool := NewSemaphorePool(device)

	s, err := pool.Request()
	if err != nil {
		t.Fatal(err)
	}
	pool.Reset()

	owned, err := pool.RequestOwned()
	if err != nil {
		t.Fatal(err)
	}
	if owned != s {
		t.Errorf("expected the free semaphore %s, got %s", semaphoreID(s), semaphoreID(owned))
	}
	if device.createdSems != 1 {
		t.Errorf("expected no new semaphore, got %d created", device.createdSems)
	}

	// While owned, the semaphore must not be requestable.
	other, err := pool.Request()
	if err != nil {
		t.Fatal(err)
	}
	if other == owned {
		t.Error("pool handed out a semaphore that is owned by the caller")
	}
}

func TestSemaphorePoolReleaseRequiresReset(t *testing.T) {
	device := newFakeDevice()
	pool := NewSemaphorePool(device)

	owned, err := pool.RequestOwned()
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(owned)

	// Not reusable until the next Reset.
	s, err := pool.Request()
	if err != nil {
		t.Fatal(err)
	}
	if s == owned {
		t.Error("released semaphore reused before Reset")
	}

	pool.Reset()
	recycled := make(map[Semaphore]bool)
	for i := 0; i < 2; i++ {
		s, err := pool.Request()
		if err != nil {
			t.Fatal(err)
		}
		recycled[s] = true
	}
	if !recycled[owned] {
		t.Error("released semaphore did not return to the pool after Reset")
	}
	if device.createdSems != 2 {
		t.Errorf("expected 2 semaphores total, got %d", device.createdSems)
	}
}

func TestSemaphorePoolCreateFailure(t *testing.T) {
	device := newFakeDevice()
	device.failCreateSemaphore = true
	pool := NewSemaphorePool(device)

	if _, err := pool.Request(); err == nil {
		t.Error("expected device allocation error")
	}
	if _, err := pool.RequestOwned(); err == nil {
		t.Error("expected device allocation error")
	}
}

func TestSemaphorePoolDestroy(t *testing.T) {
	device := newFakeDevice()
	pool := NewSemaphorePool(device)

	for i := 0; i < 3; i++ {
		if _, err := pool.Request(); err != nil {
			t.Fatal(err)
		}
	}
	owned, err := pool.RequestOwned()
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(owned)

	pool.Destroy()
	if device.destroyedSems != 4 {
		t.Errorf("expected 4 semaphores destroyed, got %d", device.destroyedSems)
	}
	if pool.ActiveCount() != 0 {
		t.Errorf("expected empty pool after destroy, active=%d", pool.ActiveCount())
	}
}
