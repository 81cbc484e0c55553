// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dnsproto reconstructs DNS/LLMNR/mDNS messages from UDP
// datagrams and TCP byte streams, correlates queries with their later
// responses within a session, and emits OCSF-shaped records.
//
// The wire decoders here are hand-rolled rather than delegated to an
// off-the-shelf DNS library: the byte-for-byte quirks this package must
// reproduce (little-endian A-record storage, a single-length-byte TXT
// reader, bounded compression-pointer chains) are deliberate, testable
// properties of the target format, not incidental implementation detail
// a general-purpose parser would hide. Where only a human-readable label
// is needed (opcode/class/type/rcode names), this package borrows the
// lookup tables from github.com/miekg/dns instead of re-deriving them.
package dnsproto

import (
	"strconv"

	"github.com/miekg/dns"
)

// ActivityID mirrors the OCSF DNS Activity enum used to describe whether a
// Txn has seen a query, a response, or both.
type ActivityID int

const (
	ActivityQueryOnly        ActivityID = 1
	ActivityResponseOnly     ActivityID = 2
	ActivityQueryAndResponse ActivityID = 6
)

// AnswerSection identifies which section of a response an Answer came from.
type AnswerSection int

const (
	SectionAnswer AnswerSection = iota
	SectionAuthoritative
	SectionAdditional
)

func (s AnswerSection) String() string {
	switch s {
	case SectionAnswer:
		return "Answer"
	case SectionAuthoritative:
		return "Authoritative"
	case SectionAdditional:
		return "Additional"
	default:
		return "Unknown"
	}
}

// HeaderFlag is one bit of the response header carried onto every Answer
// decoded from that response.
type HeaderFlag int

const (
	FlagAA HeaderFlag = iota
	FlagTC
	FlagRD
	FlagRA
	FlagAD
	FlagCD
)

func (f HeaderFlag) String() string {
	switch f {
	case FlagAA:
		return "AA"
	case FlagTC:
		return "TC"
	case FlagRD:
		return "RD"
	case FlagRA:
		return "RA"
	case FlagAD:
		return "AD"
	case FlagCD:
		return "CD"
	default:
		return "?"
	}
}

// RDataKind tags the active member of RData. A tagged struct (rather than
// an interface-per-type) keeps decoding allocation-free for the common RR
// types and mirrors the source format's C union+selector layout without
// needing Go-side type assertions on a hot path.
type RDataKind int

const (
	RDataA RDataKind = iota
	RDataAAAA
	RDataNS
	RDataCNAME
	RDataMX
	RDataTXT
	RDataCAA
)

// RData is the decoded resource-record payload. Only the fields matching
// Kind are meaningful.
type RData struct {
	Kind RDataKind

	// A holds the 4 wire bytes of an A record packed into a uint32 using
	// the bytes' on-the-wire order, not network byte order: byte[0] is the
	// low-order byte of the stored uint32. This matches a little-endian
	// host loading the 4 bytes as a native int, which is how the upstream
	// implementation this behavior is modeled on stores it; re-emitting it
	// byte-by-byte (A0, A1, A2, A3 below) reconstructs the correct dotted
	// quad regardless of host endianness.
	A   uint32
	A0  byte
	A1  byte
	A2  byte
	A3  byte

	AAAA [16]byte

	Name string // NS, CNAME

	MXPreference uint16
	MXExchange   string

	TXT []byte

	CAAFlags byte
	CAATag   string
	CAAValue []byte
}

// Answer is a single decoded resource record from a DNS response.
type Answer struct {
	RRName  string
	RRType  AnswerSection
	Class   uint16
	Type    uint16
	TypeID  uint16
	TTL     uint32
	PacketUID uint16
	Flags   []HeaderFlag
	RData   RData
	Country string // ISO country code, set by GeoEnricher.EnrichAnswers; empty if unset
}

// ClassName returns the textual class name (e.g. "IN"), borrowed from
// miekg/dns's lookup table.
func ClassName(class uint16) string {
	if name, ok := dns.ClassToString[class]; ok {
		return name
	}
	return "CLASS" + strconv.Itoa(int(class))
}

// TypeName returns the textual RR type name (e.g. "A", "CAA").
func TypeName(t uint16) string {
	if name, ok := dns.TypeToString[t]; ok {
		return name
	}
	return "TYPE" + strconv.Itoa(int(t))
}

// OpcodeName returns the textual opcode name (e.g. "QUERY").
func OpcodeName(op uint8) string {
	if name, ok := dns.OpcodeToString[int(op)]; ok {
		return name
	}
	return "OPCODE" + strconv.Itoa(int(op))
}

// RcodeName returns the textual response code name (e.g. "NOERROR").
func RcodeName(rcode int8) string {
	if rcode < 0 {
		return ""
	}
	if name, ok := dns.RcodeToString[int(rcode)]; ok {
		return name
	}
	return "RCODE" + strconv.Itoa(int(rcode))
}
