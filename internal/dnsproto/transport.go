// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"time"

	"github.com/arkime/sessiond/internal/session"
)

// Well-known ports this package recognizes as a DNS dialect.
const (
	PortDNS   = 53
	PortLLMNR = 5355
	PortMDNS  = 5353
)

// DialectLabel maps a well-known DNS-family port to the protocol tag the
// transport adapter attaches to the session, or ok=false for any other
// port.
func DialectLabel(port int) (label string, ok bool) {
	switch port {
	case PortDNS:
		return "dns", true
	case PortLLMNR:
		return "llmnr", true
	case PortMDNS:
		return "mdns", true
	default:
		return "", false
	}
}

// HandleUDP dispatches one UDP datagram straight to ParseMessage: in this
// transport a datagram is always exactly one DNS message. port is the
// session's DNS-family port (whichever of src/dst the capture layer
// identifies as the server side) and is used only to tag the dialect.
func HandleUDP(payload []byte, port int, sess session.Session, txnFieldPos session.FieldPos, now time.Time) ParseResult {
	if label, ok := DialectLabel(port); ok {
		sess.AddProtocol(label)
	}
	return ParseMessage(payload, sess, txnFieldPos, now)
}

// minTCPMessageLength is the smallest length prefix the reassembler
// accepts: the 12-byte header plus 6 bytes of question (a 2-byte name,
// 2-byte qtype and 2-byte qclass). A frame declaring a shorter body
// stops parsing on that direction; this includes a 17-byte message whose
// question has the 1-byte root name.
const minTCPMessageLength = 18

// tcpDirState tracks one direction's reassembly progress: either no
// message is in progress (wantLen == 0, pending empty) or a partial body
// of wantLen bytes is being accumulated in pending.
type tcpDirState struct {
	refused bool
	pending []byte
	wantLen int
}

// TCPReassembler implements length-prefixed TCP framing: a 2-byte
// big-endian length prefix precedes every DNS message, and a message
// may be split across an arbitrary number of TCP segments. One
// reassembler instance is owned by a single session and holds one buffer
// per direction.
type TCPReassembler struct {
	dirs [2]tcpDirState
	port int
}

// NewTCPReassembler constructs a reassembler for a session whose DNS-family
// server port is port (used only for dialect tagging, as with HandleUDP).
func NewTCPReassembler(port int) *TCPReassembler {
	return &TCPReassembler{port: port}
}

// Feed hands one TCP segment (in byte-stream order, with no gaps) from
// direction dir to the reassembler. It returns one ParseResult per
// complete DNS message the segment completes, in order; a segment may
// complete zero, one, or several messages back to back.
func (t *TCPReassembler) Feed(dir session.Direction, segment []byte, sess session.Session, txnFieldPos session.FieldPos, now time.Time) []ParseResult {
	st := &t.dirs[dir]
	var results []ParseResult

	if label, ok := DialectLabel(t.port); ok {
		sess.AddProtocol(label)
	}

	data := segment
	for {
		if st.refused {
			return results
		}

		if st.wantLen == 0 {
			// No message in progress: this segment must begin with a
			// fresh 2-byte length prefix.
			if len(data) < 2 {
				st.refused = true
				return results
			}
			length := int(data[0])<<8 | int(data[1])
			if length < minTCPMessageLength {
				st.refused = true
				return results
			}
			rest := data[2:]
			if length <= len(rest) {
				results = append(results, ParseMessage(rest[:length], sess, txnFieldPos, now))
				data = rest[length:]
				continue
			}
			st.pending = append(make([]byte, 0, max(1024, length)), rest...)
			st.wantLen = length
			return results
		}

		// A message is in progress: every byte of this segment is raw
		// body continuation, not a fresh length prefix.
		need := st.wantLen - len(st.pending)
		if len(data) >= need {
			st.pending = append(st.pending, data[:need]...)
			results = append(results, ParseMessage(st.pending, sess, txnFieldPos, now))
			data = data[need:]
			st.pending = nil
			st.wantLen = 0
			continue
		}
		st.pending = append(st.pending, data...)
		return results
	}
}
