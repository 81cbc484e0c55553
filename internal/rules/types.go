// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rules implements the declarative session rule engine: loading
// YAML rule documents into a typed intermediate form, compiling them
// into a multi-dimensional per-field index, dispatching evaluation at
// four session lifecycle points, and applying a matched rule's field
// mutations.
package rules

import (
	"sync/atomic"

	"github.com/arkime/sessiond/internal/session"
)

// Trigger identifies which lifecycle point a rule is evaluated at.
type Trigger int

const (
	TriggerEveryPacket Trigger = iota
	TriggerSessionSetup
	TriggerAfterClassify
	TriggerFieldSet
	TriggerBeforeSave
)

func (t Trigger) String() string {
	switch t {
	case TriggerEveryPacket:
		return "everyPacket"
	case TriggerSessionSetup:
		return "sessionSetup"
	case TriggerAfterClassify:
		return "afterClassify"
	case TriggerFieldSet:
		return "fieldSet"
	case TriggerBeforeSave:
		return "beforeSave"
	default:
		return "unknown"
	}
}

// Save-point flags for a TriggerBeforeSave rule: middle=01, final=10,
// both=11, matched against on_before_save's final bit via 1<<final.
const (
	SaveMiddle = 1 << 0
	SaveFinal  = 1 << 1
	SaveBoth   = SaveMiddle | SaveFinal
)

// AffixKind identifies a string matcher's comparison mode.
type AffixKind int

const (
	AffixHead AffixKind = iota
	AffixTail
	AffixContains
)

// AffixPattern is one head/tail/contains match entry for a string field.
type AffixPattern struct {
	Kind  AffixKind
	Value string
}

// Matches reports whether s satisfies this affix pattern.
func (p AffixPattern) Matches(s string) bool {
	switch p.Kind {
	case AffixHead:
		return len(s) >= len(p.Value) && s[:len(p.Value)] == p.Value
	case AffixTail:
		return len(s) >= len(p.Value) && s[len(s)-len(p.Value):] == p.Value
	case AffixContains:
		return stringContains(s, p.Value)
	default:
		return false
	}
}

func stringContains(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// IntRange is an inclusive [Min, Max] integer range matcher.
type IntRange struct {
	Min, Max int64
}

// Contains reports whether v falls within the range.
func (r IntRange) Contains(v int64) bool {
	return v >= r.Min && v <= r.Max
}

// rangeExpansionWidth is the narrowest range the loader leaves as a range
// rather than expanding into individual exact-value entries.
const rangeExpansionWidth = 20

// FieldMatch is one rule's matcher for a single field position: the
// union of every matcher kind the loader may populate, keyed by the
// field's registered FieldKind.
type FieldMatch struct {
	Pos  session.FieldPos
	Kind session.FieldKind

	Ints    []int64  // exact int matches, and count-of-field matches
	Floats  []uint32 // exact float matches, compared by IEEE-754 bit pattern
	Strings []string // exact string matches

	Affixes []AffixPattern
	Ranges  []IntRange
	CIDRs   []CIDRMatch
}

// CIDRMatch is a parsed IPv4/IPv6 prefix matcher.
type CIDRMatch struct {
	Prefix []byte // 4 or 16 bytes, network address
	Bits   int    // prefix length
	IsIPv6 bool
}

// Op is one field-mutation step in a rule's ordered operation list: the
// runner copies Value into the session field at Pos according to the
// field's registered kind (scalar overwrite, array append, set insert,
// map insert).
type Op struct {
	Pos   session.FieldPos
	Kind  session.FieldKind
	Value any
}

// Rule is a fully loaded, field-resolved rule ready for indexing and
// evaluation.
type Rule struct {
	Name       string
	SourceName string // originating file, for diagnostics
	Trigger    Trigger
	SaveFlags  int // valid only when Trigger == TriggerBeforeSave

	BPF *BPFProgram // valid only for EveryPacket/SessionSetup rules with a bpf clause

	Fields []FieldMatch
	Ops    []Op

	LogMatches bool

	matchedCount atomic.Uint64
}

// MatchedCount returns the number of times this rule has fired.
func (r *Rule) MatchedCount() uint64 { return r.matchedCount.Load() }

// incrementMatched atomically bumps the match counter.
func (r *Rule) incrementMatched() { r.matchedCount.Add(1) }

// fieldByPos returns the rule's matcher for pos, if any.
func (r *Rule) fieldByPos(pos session.FieldPos) (FieldMatch, bool) {
	for _, f := range r.Fields {
		if f.Pos == pos {
			return f, true
		}
	}
	return FieldMatch{}, false
}
