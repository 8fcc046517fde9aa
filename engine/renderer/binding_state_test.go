package renderer

import (
	"testing"
)

func TestBindBufferMarksDirtyAtEveryLevel(t *testing.T) {
	r := NewResourceBindings()
	buf := &fakeBuffer{id: 1}

	r.BindBuffer(buf, 0, 256, 1, 2, 0)

	if !r.Dirty() {
		t.Error("tracker not dirty after bind")
	}
	set := r.Set(1)
	if set == nil || !set.Dirty() {
		t.Fatal("set 1 not dirty after bind")
	}
	rb := set.Binding(BindingPoint{Binding: 2, ArrayElement: 0})
	if rb == nil || !rb.Dirty() {
		t.Fatal("binding (1,2,0) not dirty after bind")
	}
	if rb.Buffer() != buf || rb.Offset() != 0 || rb.Range() != 256 {
		t.Error("bound values not recorded")
	}
}

func TestBindImageReplacesBufferVariant(t *testing.T) {
	r := NewResourceBindings()
	buf := &fakeBuffer{id: 1}
	img := &fakeImage{id: 2}

	r.BindBuffer(buf, 0, 64, 0, 0, 0)
	r.BindImage(img, nil, 0, 0, 0)

	rb := r.Set(0).Binding(BindingPoint{})
	if rb.Image() != img {
		t.Error("image not recorded")
	}
	if rb.Buffer() != nil {
		t.Error("stale buffer left behind after rebinding as image")
	}
}

func TestClearDirtyKeepsValues(t *testing.T) {
	r := NewResourceBindings()
	buf := &fakeBuffer{id: 1}
	r.BindBuffer(buf, 128, 64, 0, 3, 1)

	r.ClearDirty()

	if r.Dirty() {
		t.Error("tracker still dirty after ClearDirty")
	}
	rb := r.Set(0).Binding(BindingPoint{Binding: 3, ArrayElement: 1})
	if rb.Dirty() {
		t.Error("binding still dirty after ClearDirty")
	}
	if rb.Buffer() != buf || rb.Offset() != 128 {
		t.Error("ClearDirty altered bound values")
	}
}

func TestClearSetDirtyIsScoped(t *testing.T) {
	r := NewResourceBindings()
	r.BindBuffer(&fakeBuffer{id: 1}, 0, 64, 0, 0, 0)
	r.BindBuffer(&fakeBuffer{id: 2}, 0, 64, 1, 0, 0)

	r.ClearSetDirty(0)

	if r.Set(0).Dirty() {
		t.Error("set 0 still dirty")
	}
	if !r.Set(1).Dirty() {
		t.Error("set 1 lost its dirty flag")
	}
}

func TestClearBindingDirtyIsScoped(t *testing.T) {
	r := NewResourceBindings()
	r.BindBuffer(&fakeBuffer{id: 1}, 0, 64, 0, 0, 0)
	r.BindBuffer(&fakeBuffer{id: 2}, 0, 64, 0, 1, 0)

	r.ClearBindingDirty(0, 0, 0)

	if r.Set(0).Binding(BindingPoint{Binding: 0}).Dirty() {
		t.Error("cleared binding still dirty")
	}
	if !r.Set(0).Binding(BindingPoint{Binding: 1}).Dirty() {
		t.Error("sibling binding lost its dirty flag")
	}
}

func TestResetDiscardsBindings(t *testing.T) {
	r := NewResourceBindings()
	r.BindBuffer(&fakeBuffer{id: 1}, 0, 64, 0, 0, 0)
	r.BindInput(&fakeImage{id: 2}, 2, 0, 0)

	r.Reset()

	if r.Dirty() {
		t.Error("tracker dirty after reset")
	}
	if len(r.SetIndices()) != 0 {
		t.Errorf("expected no sets after reset, got %v", r.SetIndices())
	}
}

func TestRebindAfterClearDirtiesAgain(t *testing.T) {
	r := NewResourceBindings()
	buf := &fakeBuffer{id: 1}
	r.BindBuffer(buf, 0, 64, 0, 0, 0)
	r.ClearDirty()

	// Rebinding always dirties, even with identical values: descriptor
	// writes are keyed off the flag, not off a value diff.
	r.BindBuffer(buf, 0, 64, 0, 0, 0)
	if !r.Dirty() || !r.Set(0).Dirty() {
		t.Error("rebind did not mark dirty")
	}
}
