// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"time"

	"github.com/arkime/sessiond/internal/session"
	"github.com/arkime/sessiond/internal/wire"
)

// header is the decoded 12-byte DNS message header.
type header struct {
	id                     uint16
	qr                     bool
	opcode                 uint8
	aa, tc, rd, ra, ad, cd bool
	rcode                  uint8
	qdCount                uint16
	anCount                uint16
	nsCount                uint16
	arCount                uint16
}

func parseHeader(r *wire.Reader) (header, bool) {
	var h header
	id, ok := r.ReadU16()
	if !ok {
		return h, false
	}
	b1, ok := r.ReadU8()
	if !ok {
		return h, false
	}
	b2, ok := r.ReadU8()
	if !ok {
		return h, false
	}
	qd, ok := r.ReadU16()
	if !ok {
		return h, false
	}
	an, ok := r.ReadU16()
	if !ok {
		return h, false
	}
	ns, ok := r.ReadU16()
	if !ok {
		return h, false
	}
	ar, ok := r.ReadU16()
	if !ok {
		return h, false
	}

	h.id = id
	h.qr = b1&0x80 != 0
	h.opcode = (b1 >> 3) & 0x0F
	h.aa = b1&0x04 != 0
	h.tc = b1&0x02 != 0
	h.rd = b1&0x01 != 0
	h.ra = b2&0x80 != 0
	h.ad = b2&0x20 != 0
	h.cd = b2&0x10 != 0
	h.rcode = b2 & 0x0F
	h.qdCount = qd
	h.anCount = an
	h.nsCount = ns
	h.arCount = ar
	return h, true
}

func (h header) headerFlags() []HeaderFlag {
	var flags []HeaderFlag
	if h.aa {
		flags = append(flags, FlagAA)
	}
	if h.tc {
		flags = append(flags, FlagTC)
	}
	if h.rd {
		flags = append(flags, FlagRD)
	}
	if h.ra {
		flags = append(flags, FlagRA)
	}
	if h.ad {
		flags = append(flags, FlagAD)
	}
	if h.cd {
		flags = append(flags, FlagCD)
	}
	return flags
}

func (h header) declaredRRCount() int {
	return int(h.anCount) + int(h.nsCount) + int(h.arCount)
}

// ParseResult reports what ParseMessage did with one decoded message.
type ParseResult struct {
	Txn        *Txn
	Merged     bool // true if Txn already existed; a response updates it in place, a repeated query leaves it unchanged
	Dropped    bool
	DropReason string
	PolicyTag  string // non-empty when the session should be tagged
	Refused    bool   // true if a brand-new Txn was discarded by admission
}

// estimateTxnSize approximates the session object store admission cost:
// 720 bytes of fixed overhead for the static fields and the question,
// 180 per declared resource record (the header's an/ns/ar counts, not
// the number that actually decode cleanly), plus extraTextBytes for the
// variable-length text carried by TXT and CAA records, which the fixed
// per-RR allowance doesn't cover.
func estimateTxnSize(declaredRRCount int, extraTextBytes int) int {
	return 720 + 180*declaredRRCount + extraTextBytes
}

// extraTextBytes sums the variable-length text payload of TXT and CAA
// answers, mirroring the original parser's extraLen accumulation.
func extraTextBytes(answers []Answer) int {
	n := 0
	for _, a := range answers {
		switch a.RData.Kind {
		case RDataTXT:
			n += len(a.RData.TXT)
		case RDataCAA:
			n += len(a.RData.CAATag) + len(a.RData.CAAValue)
		}
	}
	return n
}

// ParseMessage decodes one complete DNS message (one UDP datagram, or one
// length-framed TCP body), correlates it against sess's dns.txn object
// collection at txnFieldPos, and reports the outcome. now is the packet
// timestamp supplied by the capture layer; DNS parsing has no timers of
// its own.
func ParseMessage(msg []byte, sess session.Session, txnFieldPos session.FieldPos, now time.Time) ParseResult {
	r := wire.NewReader(msg)
	h, ok := parseHeader(r)
	if !ok {
		return ParseResult{Dropped: true, DropReason: "short header"}
	}

	if h.opcode > 5 {
		return ParseResult{Dropped: true, DropReason: "opcode>5"}
	}

	if h.qdCount != 1 {
		return ParseResult{Dropped: true, DropReason: "qd!=1", PolicyTag: "dns-qdcount-not-1"}
	}

	hostname, ok := DecodeName(r)
	if !ok {
		return ParseResult{Dropped: true, DropReason: "malformed question name"}
	}
	qtype, ok := r.ReadU16()
	if !ok {
		return ParseResult{Dropped: true, DropReason: "short question"}
	}
	qclass, ok := r.ReadU16()
	if !ok {
		return ParseResult{Dropped: true, DropReason: "short question"}
	}

	q := Query{
		PacketUID:  h.id,
		OpcodeID:   h.opcode,
		OpcodeName: OpcodeName(h.opcode),
		ClassID:    qclass,
		ClassName:  ClassName(qclass),
		TypeID:     qtype,
		TypeName:   TypeName(qtype),
		Hostname:   hostname,
	}

	if !h.qr {
		return parseQuery(q, sess, txnFieldPos, now)
	}
	return parseResponse(q, h, r, sess, txnFieldPos, now)
}

// admit offers candidate to the session's dns.txn collection. Three
// outcomes are possible: candidate is newly admitted (admitted=true);
// an identical-identity Txn was already present, which is returned in
// its place (admitted=false, txn non-nil); or admission was refused for
// budget/policy reasons with no preexisting duplicate (admitted=false,
// txn=nil) -- a brand-new Txn refused this way is discarded.
func admit(candidate *Txn, sess session.Session, pos session.FieldPos, estimatedSize int) (txn *Txn, admitted bool) {
	owner, admitted := sess.AddObject(pos, candidate, estimatedSize)
	if owner == nil {
		return nil, admitted
	}
	return owner.(*Txn), admitted
}

func parseQuery(q Query, sess session.Session, pos session.FieldPos, now time.Time) ParseResult {
	candidate := NewQueryTxn(q, now)
	size := estimateTxnSize(0, 0)
	txn, admitted := admit(candidate, sess, pos, size)
	if txn == nil {
		return ParseResult{Dropped: true, DropReason: "admission refused", Refused: true}
	}
	if !admitted {
		// A query with the same identity already exists (e.g. a
		// retransmit); leave the existing Txn untouched.
		return ParseResult{Txn: txn, Merged: true}
	}
	return ParseResult{Txn: txn}
}

func parseResponse(q Query, h header, r *wire.Reader, sess session.Session, pos session.FieldPos, now time.Time) ParseResult {
	flags := h.headerFlags()
	sections := []struct {
		count int
		kind  AnswerSection
	}{
		{int(h.anCount), SectionAnswer},
		{int(h.nsCount), SectionAuthoritative},
		{int(h.arCount), SectionAdditional},
	}

	var answers []Answer
	for _, sec := range sections {
		for i := 0; i < sec.count; i++ {
			if r.IsErrored() {
				break
			}
			a, ok := decodeRR(r, sec.kind, flags, h.id)
			if !ok {
				if r.IsErrored() {
					break
				}
				continue
			}
			answers = append(answers, a)
		}
	}

	// Admission is decided only now that the record loop has run, so the
	// size estimate can account for TXT/CAA text bytes actually seen,
	// mirroring the upstream parser's single end-of-record admission call.
	candidate := NewResponseOnlyTxn(q)
	size := estimateTxnSize(h.declaredRRCount(), extraTextBytes(answers))
	txn, admitted := admit(candidate, sess, pos, size)
	if txn == nil {
		return ParseResult{Dropped: true, DropReason: "admission refused", Refused: true}
	}
	merged := !admitted

	txn.MergeResponse(int8(h.rcode), now)
	txn.AppendAnswers(answers)

	return ParseResult{Txn: txn, Merged: merged}
}
