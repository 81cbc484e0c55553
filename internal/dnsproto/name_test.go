// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"testing"

	"github.com/arkime/sessiond/internal/wire"
)

func encodeName(labels ...string) []byte {
	var out []byte
	for _, l := range labels {
		out = append(out, byte(len(l)))
		out = append(out, []byte(l)...)
	}
	out = append(out, 0)
	return out
}

func TestDecodeNameSimple(t *testing.T) {
	msg := encodeName("www", "example", "com")
	r := wire.NewReader(msg)
	name, ok := DecodeName(r)
	if !ok {
		t.Fatal("decode failed")
	}
	if name != "www.example.com" {
		t.Fatalf("name = %q", name)
	}
	if r.Pos() != len(msg) {
		t.Fatalf("reader left at %d, want %d", r.Pos(), len(msg))
	}
}

func TestDecodeNameRoot(t *testing.T) {
	r := wire.NewReader([]byte{0x00})
	name, ok := DecodeName(r)
	if !ok || name != rootName {
		t.Fatalf("name = %q, ok = %v", name, ok)
	}
}

func TestDecodeNameCompression(t *testing.T) {
	// message: [0]="www"."example"."com".\0  then a second name that
	// points back at offset 4 (the start of "example.com").
	base := encodeName("www", "example", "com")
	exampleComOffset := 4 // length byte of "example"
	msg := append([]byte{}, base...)
	msg = append(msg, byte(0xC0|(exampleComOffset>>8)), byte(exampleComOffset&0xFF))

	r := wire.NewReader(msg)
	r.Skip(len(base))
	name, ok := DecodeName(r)
	if !ok {
		t.Fatal("decode failed")
	}
	if name != "example.com" {
		t.Fatalf("name = %q", name)
	}
	if r.Pos() != len(base)+2 {
		t.Fatalf("reader left at %d, want %d", r.Pos(), len(base)+2)
	}
}

func TestDecodeNamePointerLoopRefused(t *testing.T) {
	// A pointer at offset 0 that points to itself.
	msg := []byte{0xC0, 0x00}
	r := wire.NewReader(msg)
	_, ok := DecodeName(r)
	if ok {
		t.Fatal("expected pointer self-loop to be refused")
	}
}

func TestDecodeNamePointerChainBeyondLimit(t *testing.T) {
	// Build a chain of 8 two-byte pointers, each referring to the next,
	// ending in a zero-length root. 8 > maxPointerHops(6), so this must fail.
	const hops = 8
	msg := make([]byte, hops*2+1)
	for i := 0; i < hops; i++ {
		target := (i + 1) * 2
		msg[i*2] = 0xC0 | byte(target>>8)
		msg[i*2+1] = byte(target & 0xFF)
	}
	msg[hops*2] = 0x00

	r := wire.NewReader(msg)
	_, ok := DecodeName(r)
	if ok {
		t.Fatal("expected pointer chain past the hop limit to be refused")
	}
}

func TestSanitizeNonPrintable(t *testing.T) {
	// 0x01 is a control byte: ^ + (0x01^0x40) = ^A.
	// 0xFF is non-ASCII: M- + sanitize(0xFF&0x7F=0x7F), and 0x7F is itself
	// non-printable: ^ + (0x7F^0x40) = ^?. So 0xFF -> "M-^?".
	msg := encodeName(string([]byte{0x01, 0xFF}))
	r := wire.NewReader(msg)
	name, ok := DecodeName(r)
	if !ok {
		t.Fatal("decode failed")
	}
	want := "^AM-^?"
	if name != want {
		t.Fatalf("name = %q, want %q", name, want)
	}
}
