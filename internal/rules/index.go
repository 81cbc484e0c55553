// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"sync"

	"github.com/arkime/sessiond/internal/session"
)

// fieldTables is the per-field-position slice of the compiled index:
// one table per matcher kind a rule can register against that field.
type fieldTables struct {
	hashInt    map[int64][]*Rule
	hashFloat  map[uint32][]*Rule
	hashString map[string][]*Rule
	affix      map[AffixPattern][]*Rule
	ranges     map[uint64][]*Rule
	tree4      *patriciaTrie
	tree6      *patriciaTrie
}

func newFieldTables() *fieldTables {
	return &fieldTables{
		hashInt:    make(map[int64][]*Rule),
		hashFloat:  make(map[uint32][]*Rule),
		hashString: make(map[string][]*Rule),
		affix:      make(map[AffixPattern][]*Rule),
		ranges:     make(map[uint64][]*Rule),
		tree4:      newPatriciaTrie(32),
		tree6:      newPatriciaTrie(128),
	}
}

func packRange(r IntRange) uint64 {
	return uint64(uint32(r.Min))<<32 | uint64(uint32(r.Max))
}

func unpackRange(key uint64) IntRange {
	return IntRange{Min: int64(uint32(key >> 32)), Max: int64(uint32(key))}
}

// generation is one complete, immutable compiled rule set: the fields
// table plus the per-trigger rule lists evaluation dispatches against.
// A RuleIndex holds one as current; replaced ones wait in its
// retirement queue (up to 8) until DrainRetired discards them.
type generation struct {
	fields    map[session.FieldPos]*fieldTables
	byTrigger map[Trigger][]*Rule
	rules     []*Rule
}

func newGeneration() *generation {
	return &generation{
		fields:    make(map[session.FieldPos]*fieldTables),
		byTrigger: make(map[Trigger][]*Rule),
	}
}

func (g *generation) tablesFor(pos session.FieldPos) *fieldTables {
	t, ok := g.fields[pos]
	if !ok {
		t = newFieldTables()
		g.fields[pos] = t
	}
	return t
}

// BuildGeneration compiles rules into a fresh generation, marking every
// field any rule references as rule-enabled.
func BuildGeneration(rules []*Rule, registry session.FieldsRegistry) *generation {
	gen := newGeneration()
	gen.rules = rules
	for _, r := range rules {
		gen.byTrigger[r.Trigger] = append(gen.byTrigger[r.Trigger], r)
		for _, f := range r.Fields {
			registry.SetRuleEnabled(f.Pos)
			t := gen.tablesFor(f.Pos)
			for _, v := range f.Ints {
				t.hashInt[v] = append(t.hashInt[v], r)
			}
			for _, v := range f.Floats {
				t.hashFloat[v] = append(t.hashFloat[v], r)
			}
			for _, v := range f.Strings {
				t.hashString[v] = append(t.hashString[v], r)
			}
			for _, a := range f.Affixes {
				t.affix[a] = append(t.affix[a], r)
			}
			for _, rg := range f.Ranges {
				key := packRange(rg)
				t.ranges[key] = append(t.ranges[key], r)
			}
			for _, c := range f.CIDRs {
				if c.IsIPv6 {
					t.tree6.insert(c.Prefix, c.Bits, r)
				} else {
					t.tree4.insert(c.Prefix, c.Bits, r)
				}
			}
		}
	}
	return gen
}

func (g *generation) candidatesInt(pos session.FieldPos, v int64) []*Rule {
	t, ok := g.fields[pos]
	if !ok {
		return nil
	}
	out := append([]*Rule(nil), t.hashInt[v]...)
	for key, rs := range t.ranges {
		if unpackRange(key).Contains(v) {
			out = append(out, rs...)
		}
	}
	return out
}

func (g *generation) candidatesFloat(pos session.FieldPos, bits uint32) []*Rule {
	t, ok := g.fields[pos]
	if !ok {
		return nil
	}
	return t.hashFloat[bits]
}

func (g *generation) candidatesString(pos session.FieldPos, s string) []*Rule {
	t, ok := g.fields[pos]
	if !ok {
		return nil
	}
	out := append([]*Rule(nil), t.hashString[s]...)
	for pattern, rs := range t.affix {
		if pattern.Matches(s) {
			out = append(out, rs...)
		}
	}
	return out
}

func (g *generation) candidatesIP(pos session.FieldPos, addr []byte, isIPv6 bool) []*Rule {
	t, ok := g.fields[pos]
	if !ok {
		return nil
	}
	if isIPv6 {
		return t.tree6.searchAll(addr)
	}
	return t.tree4.searchAll(addr)
}

// RuleIndex holds the current compiled generation behind a
// reader-writer lock: a writer swaps in a fresh generation under the
// write lock; readers take the read lock only long enough to capture
// the pointer, then evaluate against it lock-free. Replaced generations
// are queued for deferred release rather than freed synchronously, even
// though the Go runtime's GC (not this queue) does the actual
// reclamation.
type RuleIndex struct {
	mu      sync.RWMutex
	gen     *generation
	retired chan *generation
}

// NewRuleIndex returns an index with an empty generation installed.
func NewRuleIndex() *RuleIndex {
	return &RuleIndex{
		gen:     newGeneration(),
		retired: make(chan *generation, 8),
	}
}

// Current captures the live generation under a read lock.
func (idx *RuleIndex) Current() *generation {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.gen
}

// Rules returns the rule set backing the live generation, for callers
// that only need to enumerate rules (e.g. syncing match-count metrics)
// rather than evaluate against the index.
func (idx *RuleIndex) Rules() []*Rule {
	return idx.Current().rules
}

// Reload compiles rules into a new generation and atomically swaps it
// in. The previous generation is enqueued for deferred release.
func (idx *RuleIndex) Reload(rules []*Rule, registry session.FieldsRegistry) {
	next := BuildGeneration(rules, registry)
	idx.mu.Lock()
	old := idx.gen
	idx.gen = next
	idx.mu.Unlock()
	select {
	case idx.retired <- old:
	default:
		// Deferred-free queue full: drop the reference here: the
		// Go runtime reclaims it once the last in-flight reader's
		// captured pointer goes out of scope.
	}
}

// DrainRetired discards every generation queued for deferred release and
// returns how many it discarded. Nothing in this module calls it on a
// timer; once the queue is full, Reload drops each replaced generation
// instead of queueing it.
func (idx *RuleIndex) DrainRetired() int {
	n := 0
	for {
		select {
		case <-idx.retired:
			n++
		default:
			return n
		}
	}
}
