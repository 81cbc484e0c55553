// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"net"
	"testing"
)

func mustIPv4(t *testing.T, s string) []byte {
	t.Helper()
	ip := net.ParseIP(s).To4()
	if ip == nil {
		t.Fatalf("bad IPv4 literal %q", s)
	}
	return ip
}

func TestPatriciaTrieIPRangeMatch(t *testing.T) {
	trie := newPatriciaTrie(32)
	rule := &Rule{Name: "ten-slash-eight"}
	trie.insert(mustIPv4(t, "10.0.0.0"), 8, rule)

	if got := trie.searchBest(mustIPv4(t, "10.1.2.3")); len(got) != 1 || got[0] != rule {
		t.Fatalf("expected match within 10.0.0.0/8, got %v", got)
	}
	if got := trie.searchBest(mustIPv4(t, "192.168.0.1")); len(got) != 0 {
		t.Fatalf("expected no match outside prefix, got %v", got)
	}
}

func TestPatriciaTrieSearchAllVisitsOverlappingPrefixes(t *testing.T) {
	trie := newPatriciaTrie(32)
	broad := &Rule{Name: "broad"}
	narrow := &Rule{Name: "narrow"}
	trie.insert(mustIPv4(t, "10.0.0.0"), 8, broad)
	trie.insert(mustIPv4(t, "10.1.0.0"), 16, narrow)

	got := trie.searchAll(mustIPv4(t, "10.1.2.3"))
	if len(got) != 2 {
		t.Fatalf("expected both overlapping prefixes to match, got %v", got)
	}
	if got[0] != broad || got[1] != narrow {
		t.Fatalf("expected shortest-prefix-first order, got %v", got)
	}
}
