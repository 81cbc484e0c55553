// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package session

import (
	"net"
	"time"
)

// BasicSession is a minimal, concrete Session implementation used by this
// module's own tests and by the cmd/sessiond demo wiring. A real
// deployment's capture pipeline supplies its own Session implementation
// with its own session table, hashing, and eviction; this one exists so
// the DNS parser and rule engine have something real to run against end
// to end.
type BasicSession struct {
	srcIP, dstIP     net.IP
	srcPort, dstPort int
	proto            string

	packets  [2]uint64
	bytes    [2]uint64
	tcpFlags [2][7]uint64

	lastPacket time.Time

	protocols map[string]bool
	tags      map[string]bool

	fields  map[FieldPos]any
	objects map[FieldPos]*ObjectStore[any]
	// objectHashEqual holds the hash/equal pair registered for each
	// object-backed field, so AddObject can lazily create its store.
	objectHashEqual map[FieldPos]hashEqualPair
}

type hashEqualPair struct {
	hash  func(any) uint64
	equal func(a, b any) bool
}

// NewBasicSession constructs a session handle for the given 4-tuple.
func NewBasicSession(srcIP, dstIP net.IP, srcPort, dstPort int, proto string) *BasicSession {
	return &BasicSession{
		srcIP:           srcIP,
		dstIP:           dstIP,
		srcPort:         srcPort,
		dstPort:         dstPort,
		proto:           proto,
		protocols:       make(map[string]bool),
		tags:            make(map[string]bool),
		fields:          make(map[FieldPos]any),
		objects:         make(map[FieldPos]*ObjectStore[any]),
		objectHashEqual: make(map[FieldPos]hashEqualPair),
	}
}

// RegisterObjectField associates a hash/equal pair with pos so future
// AddObject calls at that position can dedupe. Called once at startup by
// whichever package owns pos (e.g. dnsproto for the DNS transaction
// field), mirroring field_register_object's role in wiring a caller's
// hash/equals into the session layer.
func (s *BasicSession) RegisterObjectField(pos FieldPos, hash func(any) uint64, equal func(a, b any) bool) {
	s.objectHashEqual[pos] = hashEqualPair{hash: hash, equal: equal}
}

func (s *BasicSession) SrcIP() net.IP    { return s.srcIP }
func (s *BasicSession) DstIP() net.IP    { return s.dstIP }
func (s *BasicSession) SrcPort() int     { return s.srcPort }
func (s *BasicSession) DstPort() int     { return s.dstPort }
func (s *BasicSession) Protocol() string { return s.proto }

func (s *BasicSession) PacketCount(dir Direction) uint64 { return s.packets[dir] }
func (s *BasicSession) ByteCount(dir Direction) uint64   { return s.bytes[dir] }
func (s *BasicSession) TCPFlagCount(dir Direction, flag TCPFlag) uint64 {
	return s.tcpFlags[dir][flag]
}

// RecordPacket is a test/demo helper; a real pipeline updates these
// counters itself before delegating to this module.
func (s *BasicSession) RecordPacket(dir Direction, byteLen int, flags ...TCPFlag) {
	s.packets[dir]++
	s.bytes[dir] += uint64(byteLen)
	for _, f := range flags {
		s.tcpFlags[dir][f]++
	}
}

func (s *BasicSession) LastPacketTime() time.Time        { return s.lastPacket }
func (s *BasicSession) SetLastPacketTime(t time.Time)    { s.lastPacket = t }
func (s *BasicSession) AddProtocol(label string)         { s.protocols[label] = true }
func (s *BasicSession) AddTag(tag string)                { s.tags[tag] = true }
func (s *BasicSession) HasProtocol(label string) bool    { return s.protocols[label] }
func (s *BasicSession) HasTag(tag string) bool           { return s.tags[tag] }

func (s *BasicSession) Field(pos FieldPos) any {
	return s.fields[pos]
}

func (s *BasicSession) SetField(pos FieldPos, value any) {
	s.fields[pos] = value
}

// AddObject never refuses for budget reasons (this reference session
// enforces no admission policy); it always returns a non-nil owner.
func (s *BasicSession) AddObject(pos FieldPos, obj any, estimatedSize int) (any, bool) {
	_ = estimatedSize // no eviction/budget policy in this reference session
	store, ok := s.objects[pos]
	if !ok {
		pair, registered := s.objectHashEqual[pos]
		if !registered {
			// No hash/equal registered: treat every insert as distinct.
			pair = hashEqualPair{
				hash:  func(any) uint64 { return 0 },
				equal: func(a, b any) bool { return false },
			}
		}
		store = NewObjectStore(pair.hash, pair.equal)
		s.objects[pos] = store
	}
	return store.Add(obj)
}

func (s *BasicSession) Objects(pos FieldPos) []any {
	store, ok := s.objects[pos]
	if !ok {
		return nil
	}
	return store.All()
}
