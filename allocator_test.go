package vdbview

import (
	"testing"
)

func TestAlignUp(t *testing.T) {
	if alignUp(12, 4) != 12 {
		t.Fail()
	}
	if alignUp(10, 4) != 12 {
		t.Fail()
	}
	if alignUp(0, 16) != 0 {
		t.Fail()
	}
	if alignUp(17, 1) != 17 {
		t.Fail()
	}
}

func TestLinearAllocator(t *testing.T) {
	a := LinearAllocator{Size: 1024}

	ra := a.Allocate(2048, 1)
	if ra != nil {
		t.Error("oversized allocation should fail")
	}

	ra = a.Allocate(512, 1)
	first := ra
	if ra == nil {
		t.Error("failed 2nd allocation")
	}

	ra = a.Allocate(768, 1)
	if ra != nil {
		t.Error("3rd allocation should not fit")
	}

	ra = a.Allocate(500, 1)
	mid := ra
	if ra == nil {
		t.Error("failed 4th allocation")
	}

	ra = a.Allocate(50, 1)
	if ra != nil {
		t.Error("5th allocation should not fit")
	}

	ra = a.Allocate(5, 1)
	if ra == nil {
		t.Error("failed 6th allocation")
	}

	ra = a.Allocate(20, 1)
	if ra != nil {
		t.Error("7th allocation should not fit")
	}

	a.Free(mid)
	ra = a.Allocate(500, 1)
	if ra == nil {
		t.Error("failed reallocation into freed span")
	}

	a.Free(first)
	ra = a.Allocate(20, 1)
	if ra == nil {
		t.Error("failed 9th allocation")
	}
	if ra.Offset != 0 {
		t.Errorf("expected gap fill at offset 0, got %d", ra.Offset)
	}

	ra = a.Allocate(40, 1)
	if ra == nil {
		t.Error("failed 10th allocation")
	}

	ra = a.Allocate(12, 1)
	if ra == nil {
		t.Error("failed 11th allocation")
	}
	ra = a.Allocate(500, 1)
	if ra != nil {
		t.Error("12th allocation should not fit")
	}
	ra = a.Allocate(5, 1)
	if ra == nil {
		t.Error("failed 13th allocation")
	}
}

func TestLinearAllocatorAlignment(t *testing.T) {
	a := LinearAllocator{Size: 256}

	low := a.Allocate(10, 1)
	if low == nil || low.Offset != 0 {
		t.Fatalf("expected allocation at 0, got %v", low)
	}

	aligned := a.Allocate(16, 16)
	if aligned == nil {
		t.Fatal("aligned allocation failed")
	}
	if aligned.Offset%16 != 0 {
		t.Errorf("offset %d not 16 aligned", aligned.Offset)
	}
	if aligned.Offset < low.Offset+low.Size {
		t.Errorf("aligned span overlaps previous span")
	}

	if a.InUse() != 2 {
		t.Errorf("expected 2 live spans, got %d", a.InUse())
	}
	a.Free(aligned)
	a.Free(low)
	if a.InUse() != 0 {
		t.Errorf("expected empty allocator, got %d spans", a.InUse())
	}

	ra := a.Allocate(256, 256)
	if ra == nil || ra.Offset != 0 {
		t.Errorf("full-size aligned allocation should succeed at 0, got %v", ra)
	}
}

func TestLinearAllocatorZeroSize(t *testing.T) {
	a := LinearAllocator{Size: 64}
	if a.Allocate(0, 1) != nil {
		t.Error("zero-size allocation should fail")
	}
}
