// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package session defines the contract this module consumes from the
// (external, out of scope) capture pipeline: an opaque session handle
// with typed fields indexed by a small integer position, and the fields
// registry that assigns those positions. It also implements the one
// piece of session-adjacent machinery that belongs to this module: the
// content-fingerprint object store used to dedupe DNS transactions
// within a session.
package session

import (
	"net"
	"time"
)

// Direction distinguishes the two endpoints of a session for per-direction
// counters.
type Direction int

const (
	DirClientToServer Direction = iota
	DirServerToClient
)

// TCPFlag identifies one of the flag counters the session tracks
// per-direction (SYN, SYN-ACK, FIN, RST, PSH, ACK, URG).
type TCPFlag int

const (
	FlagSYN TCPFlag = iota
	FlagSYNACK
	FlagFIN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
)

// FieldPos is the small integer position the fields registry assigns to a
// field expression; it is the unit of indexing used throughout the rule
// engine.
type FieldPos int

// CountOfBase is the first pseudo field_pos reserved for "count of field"
// lookups (cardinality of an array/set/map-valued field). Positions below
// this are ordinary fields; positions at or above it encode
// CountOfBase + underlying field_pos.
const CountOfBase FieldPos = 1 << 20

// FieldKind classifies how a field's values participate in rule matching:
// which table in the rule index can hold it, and how equality/affix/range
// matching apply.
type FieldKind int

const (
	KindInt FieldKind = iota
	KindFloat
	KindString
	KindIPv4
	KindIPv6
	KindArray
	KindSet
	KindMap
	KindObject
)

// FieldDescriptor is what the fields registry returns for a resolved field
// expression.
type FieldDescriptor struct {
	Pos         FieldPos
	Name        string
	Kind        FieldKind
	Description string
}

// FieldsRegistry is the external fields registry contract: names,
// types, and arity are owned by the capture pipeline and exposed here only
// through lookup and definition calls.
type FieldsRegistry interface {
	// Resolve looks up a field expression (e.g. "dns.host", "srcIp") and
	// returns its descriptor, or ok=false if no such field exists.
	Resolve(expr string) (FieldDescriptor, bool)

	// RegisterObject registers a field backed by a caller-managed object
	// collection (used by dnsproto to register the DNS transaction
	// field). hash/equal drive the session-local dedup store.
	RegisterObject(name, description string, hash func(any) uint64, equal func(a, b any) bool) FieldPos

	// Define registers a sub-field exposed to downstream consumers
	// (search/UI). flags carries bits like "FAKE" for synthesized names;
	// kind is a free-form string ("integer", "uptermfield", "termfield", ...)
	// matching the registry's own vocabulary rather than FieldKind, since
	// downstream consumers think in search-index types, not matcher types.
	Define(group, kind, name, description, expression string, flags int) FieldPos

	// SetRuleEnabled marks pos as observed by at least one loaded rule; the
	// evaluator gates its field-set work on this bit so that fields no
	// rule cares about never pay for evaluation.
	SetRuleEnabled(pos FieldPos)
	RuleEnabled(pos FieldPos) bool
}

// Endpoint flag bits used by Define's "flags" argument, matching the
// capture pipeline's own FAKE-field convention for synthesized names.
const (
	FlagFake = 1 << iota
)

// Session is the opaque per-flow handle the capture pipeline owns. All
// methods are called only from the single worker goroutine that owns this
// session -- no internal locking is required or performed.
type Session interface {
	SrcIP() net.IP
	DstIP() net.IP
	SrcPort() int
	DstPort() int
	Protocol() string // "tcp", "udp", "icmp"

	PacketCount(dir Direction) uint64
	ByteCount(dir Direction) uint64
	TCPFlagCount(dir Direction, flag TCPFlag) uint64
	LastPacketTime() time.Time
	SetLastPacketTime(t time.Time)

	AddProtocol(label string)
	AddTag(tag string)
	HasProtocol(label string) bool

	// Field reads the current value of a scalar/array/set/map field. The
	// zero value (nil) means unset.
	Field(pos FieldPos) any

	// SetField stores value as the field's current value; for
	// array/set/map fields the caller passes the whole updated
	// collection (the rule engine's op runner builds it). Setting a
	// field that has rule_enabled set must trigger the rule evaluator's
	// on_field_set hook; that wiring lives in the engine package, not
	// here, to keep this interface free of a dependency on the rule
	// engine.
	SetField(pos FieldPos, value any)

	// AddObject inserts obj into the field-object collection at pos,
	// deduping via the hash/equal pair registered for pos and budgeting
	// estimatedSize against whatever admission policy the session
	// enforces (this module never enforces one itself). It returns
	// the object that ends up owning that identity: obj itself if newly
	// admitted, the pre-existing one on a duplicate, or nil if refused
	// for budget/policy reasons with no preexisting duplicate -- in that
	// last case the caller must discard obj.
	AddObject(pos FieldPos, obj any, estimatedSize int) (owner any, admitted bool)

	// Objects returns every object currently held at pos, in insertion
	// order.
	Objects(pos FieldPos) []any
}
