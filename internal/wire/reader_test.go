// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import "testing"

func TestReadPrimitives(t *testing.T) {
	r := NewReader([]byte{0x12, 0x34, 0x56, 0x00, 0x00, 0x00, 0x78, 0xAB})
	b, ok := r.ReadU8()
	if !ok || b != 0x12 {
		t.Fatalf("ReadU8 = %x, %v", b, ok)
	}
	u16, ok := r.ReadU16()
	if !ok || u16 != 0x3456 {
		t.Fatalf("ReadU16 = %x, %v", u16, ok)
	}
	u32, ok := r.ReadU32()
	if !ok || u32 != 0x00000078 {
		t.Fatalf("ReadU32 = %x, %v", u32, ok)
	}
	if r.Remaining() != 1 {
		t.Fatalf("Remaining = %d, want 1", r.Remaining())
	}
}

func TestShortReadSticksError(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, ok := r.ReadU16(); ok {
		t.Fatal("expected short read to fail")
	}
	if !r.IsErrored() {
		t.Fatal("expected sticky error")
	}
	if _, ok := r.ReadU8(); ok {
		t.Fatal("expected all further reads to fail once errored")
	}
}

func TestSubreaderIndependence(t *testing.T) {
	r := NewReader([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	sub, ok := r.Subreader(2)
	if !ok {
		t.Fatal("subreader failed")
	}
	if r.Pos() != 0 {
		t.Fatalf("parent should not advance until Skip is called, pos=%d", r.Pos())
	}
	b, _ := sub.ReadU8()
	if b != 0xAA {
		t.Fatalf("sub byte = %x", b)
	}
	if !r.Skip(2) {
		t.Fatal("skip failed")
	}
	next, _ := r.ReadU8()
	if next != 0xCC {
		t.Fatalf("parent next byte = %x, want 0xCC", next)
	}
}

func TestSubreaderSharesRootForPointers(t *testing.T) {
	msg := []byte{0, 1, 2, 3, 4, 5}
	r := NewReader(msg)
	r.Skip(2)
	sub, _ := r.Subreader(2)
	if sub.AbsPos() != 2 {
		t.Fatalf("AbsPos = %d, want 2", sub.AbsPos())
	}
	if len(sub.Root()) != len(msg) {
		t.Fatalf("Root() length = %d, want %d", len(sub.Root()), len(msg))
	}
}
