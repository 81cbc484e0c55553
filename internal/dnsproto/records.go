// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"github.com/arkime/sessiond/internal/wire"
)

const classIN = 1

// decodeRR decodes a single resource record (name, type, class, ttl,
// rdlength, rdata) from r. It returns ok=false when the record should be
// skipped (non-IN class, unknown type rdata, or a malformed record) but
// the reader was still advanced past it so the outer section loop can
// continue with the next record. A hard reader error is reported via
// r.IsErrored() and must stop the loop entirely.
func decodeRR(r *wire.Reader, section AnswerSection, flags []HeaderFlag, packetUID uint16) (Answer, bool) {
	name, ok := DecodeName(r)
	if !ok {
		return Answer{}, false
	}
	typ, ok := r.ReadU16()
	if !ok {
		return Answer{}, false
	}
	class, ok := r.ReadU16()
	if !ok {
		return Answer{}, false
	}
	ttl, ok := r.ReadU32()
	if !ok {
		return Answer{}, false
	}
	rdlength, ok := r.ReadU16()
	if !ok {
		return Answer{}, false
	}

	sub, ok := r.Subreader(int(rdlength))
	if !ok {
		return Answer{}, false
	}
	// Advance past rdata regardless of whether we can make sense of it; a
	// malformed or unknown-type record must not desynchronize the section
	// loop from the bytes that follow it.
	if !r.Skip(int(rdlength)) {
		return Answer{}, false
	}

	if class != classIN {
		return Answer{}, false
	}

	rdata, ok := decodeRData(typ, sub, rdlength)
	if !ok {
		return Answer{}, false
	}

	return Answer{
		RRName:    name,
		RRType:    section,
		Class:     class,
		Type:      typ,
		TypeID:    typ,
		TTL:       ttl,
		PacketUID: packetUID,
		Flags:     flags,
		RData:     rdata,
	}, true
}

// RR type numbers this decoder understands.
const (
	typeA     = 1
	typeNS    = 2
	typeCNAME = 5
	typeMX    = 15
	typeTXT   = 16
	typeAAAA  = 28
	typeCAA   = 257
)

func decodeRData(typ uint16, sub *wire.Reader, rdlength uint16) (RData, bool) {
	switch typ {
	case typeA:
		return decodeA(sub, rdlength)
	case typeAAAA:
		return decodeAAAA(sub, rdlength)
	case typeNS:
		return decodeNameRData(sub, RDataNS)
	case typeCNAME:
		return decodeNameRData(sub, RDataCNAME)
	case typeMX:
		return decodeMX(sub)
	case typeTXT:
		return decodeTXT(sub)
	case typeCAA:
		return decodeCAA(sub, rdlength)
	default:
		// Unknown type: rdata already skipped on the parent reader.
		return RData{}, false
	}
}

func decodeA(sub *wire.Reader, rdlength uint16) (RData, bool) {
	if rdlength != 4 {
		return RData{}, false
	}
	b, ok := sub.ReadBytes(4)
	if !ok {
		return RData{}, false
	}
	// Stored little-endian per the wire bytes as loaded on a
	// little-endian host: b[0] is the low-order byte.
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return RData{Kind: RDataA, A: v, A0: b[0], A1: b[1], A2: b[2], A3: b[3]}, true
}

func decodeAAAA(sub *wire.Reader, rdlength uint16) (RData, bool) {
	if rdlength != 16 {
		return RData{}, false
	}
	b, ok := sub.ReadBytes(16)
	if !ok {
		return RData{}, false
	}
	var out RData
	out.Kind = RDataAAAA
	copy(out.AAAA[:], b)
	return out, true
}

func decodeNameRData(sub *wire.Reader, kind RDataKind) (RData, bool) {
	name, ok := DecodeName(sub)
	if !ok {
		return RData{}, false
	}
	return RData{Kind: kind, Name: name}, true
}

func decodeMX(sub *wire.Reader) (RData, bool) {
	pref, ok := sub.ReadU16()
	if !ok {
		return RData{}, false
	}
	name, ok := DecodeName(sub)
	if !ok {
		return RData{}, false
	}
	return RData{Kind: RDataMX, MXPreference: pref, MXExchange: name}, true
}

// decodeTXT reads a single leading length byte followed by that many bytes
// of text. This intentionally does not concatenate every <len,data>
// character-string within rdlength the way a multi-string TXT record
// wire format allows: only the first string is kept.
func decodeTXT(sub *wire.Reader) (RData, bool) {
	length, ok := sub.ReadU8()
	if !ok {
		return RData{}, false
	}
	text, ok := sub.ReadBytes(int(length))
	if !ok {
		return RData{}, false
	}
	return RData{Kind: RDataTXT, TXT: text}, true
}

func decodeCAA(sub *wire.Reader, rdlength uint16) (RData, bool) {
	if rdlength < 3 {
		return RData{}, false
	}
	flags, ok := sub.ReadU8()
	if !ok {
		return RData{}, false
	}
	tagLen, ok := sub.ReadU8()
	if !ok {
		return RData{}, false
	}
	tag, ok := sub.ReadBytes(int(tagLen))
	if !ok {
		return RData{}, false
	}
	valueLen := int(rdlength) - 2 - int(tagLen)
	if valueLen < 0 {
		return RData{}, false
	}
	value, ok := sub.ReadBytes(valueLen)
	if !ok {
		return RData{}, false
	}
	return RData{Kind: RDataCAA, CAAFlags: flags, CAATag: string(tag), CAAValue: value}, true
}
