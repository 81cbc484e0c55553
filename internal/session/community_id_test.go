// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package session

import (
	"net"
	"testing"
)

func TestCommunityIDSymmetric(t *testing.T) {
	a := NewBasicSession(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 1234, 80, "tcp")
	b := NewBasicSession(net.ParseIP("10.0.0.2"), net.ParseIP("10.0.0.1"), 80, 1234, "tcp")

	idA, okA := CommunityID(a)
	idB, okB := CommunityID(b)
	if !okA || !okB {
		t.Fatalf("expected both directions to compute, got okA=%v okB=%v", okA, okB)
	}
	if idA != idB {
		t.Fatalf("community id should be direction-independent: %s != %s", idA, idB)
	}
}

func TestCommunityIDUndefinedForICMP(t *testing.T) {
	s := NewBasicSession(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 0, 0, "icmp")
	_, ok := CommunityID(s)
	if ok {
		t.Fatal("expected community id to be undefined for ICMP")
	}
}
