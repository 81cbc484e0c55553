// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package session

import "testing"

type fingerprinted struct {
	key string
	val int
}

func TestObjectStoreDedupesByEquality(t *testing.T) {
	store := NewObjectStore(
		func(f fingerprinted) uint64 { return uint64(len(f.key)) },
		func(a, b fingerprinted) bool { return a.key == b.key },
	)

	owner, admitted := store.Add(fingerprinted{key: "a", val: 1})
	if !admitted || owner.val != 1 {
		t.Fatalf("first insert should be admitted, got %+v admitted=%v", owner, admitted)
	}

	owner2, admitted2 := store.Add(fingerprinted{key: "a", val: 2})
	if admitted2 {
		t.Fatal("duplicate insert should not be admitted")
	}
	if owner2.val != 1 {
		t.Fatalf("duplicate insert should return the original owner, got %+v", owner2)
	}
	if store.Len() != 1 {
		t.Fatalf("store length = %d, want 1", store.Len())
	}

	_, admitted3 := store.Add(fingerprinted{key: "b", val: 3})
	if !admitted3 {
		t.Fatal("distinct key should be admitted")
	}
	if store.Len() != 2 {
		t.Fatalf("store length = %d, want 2", store.Len())
	}
}

func TestObjectStoreHashCollisionStillDisambiguates(t *testing.T) {
	// Both keys hash to the same bucket but are not equal, so both must
	// be retained.
	store := NewObjectStore(
		func(f fingerprinted) uint64 { return 0 },
		func(a, b fingerprinted) bool { return a.key == b.key },
	)
	store.Add(fingerprinted{key: "x"})
	store.Add(fingerprinted{key: "y"})
	if store.Len() != 2 {
		t.Fatalf("store length = %d, want 2", store.Len())
	}
}
