// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"encoding/hex"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/arkime/sessiond/internal/session"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

func newDNSSession(t *testing.T) (*session.BasicSession, session.FieldPos) {
	t.Helper()
	registry := session.NewFieldObjectRegistry()
	pos := RegisterFields(registry)
	sess := session.NewBasicSession(net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), 5353, 53, "udp")
	WireSession(sess, pos)
	return sess, pos
}

func TestParseMessageMinimalAQueryThenResponse(t *testing.T) {
	sess, pos := newDNSSession(t)

	query := mustHex(t, "1234 0100 0001 0000 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001")
	now := time.Unix(1700000000, 0)

	qResult := ParseMessage(query, sess, pos, now)
	if qResult.Dropped {
		t.Fatalf("query dropped: %s", qResult.DropReason)
	}
	if qResult.Merged {
		t.Fatal("first query should not be a merge")
	}
	if qResult.Txn.Query.PacketUID != 0x1234 {
		t.Fatalf("packet_uid = %#x, want 0x1234", qResult.Txn.Query.PacketUID)
	}
	if qResult.Txn.Query.OpcodeID != 0 || qResult.Txn.Query.OpcodeName != "QUERY" {
		t.Fatalf("opcode = %d/%s, want 0/QUERY", qResult.Txn.Query.OpcodeID, qResult.Txn.Query.OpcodeName)
	}
	if qResult.Txn.Query.Hostname != "www.example.com" {
		t.Fatalf("hostname = %q, want www.example.com", qResult.Txn.Query.Hostname)
	}
	if qResult.Txn.Query.ClassName != "IN" || qResult.Txn.Query.TypeName != "A" {
		t.Fatalf("class/type = %s/%s, want IN/A", qResult.Txn.Query.ClassName, qResult.Txn.Query.TypeName)
	}
	if qResult.Txn.ActivityID != ActivityQueryOnly {
		t.Fatalf("activity = %d, want ActivityQueryOnly", qResult.Txn.ActivityID)
	}

	response := mustHex(t, "1234 8180 0001 0001 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001 c00c 0001 0001 00000e10 0004 5db8d822")

	rResult := ParseMessage(response, sess, pos, now.Add(time.Millisecond))
	if rResult.Dropped {
		t.Fatalf("response dropped: %s", rResult.DropReason)
	}
	if !rResult.Merged {
		t.Fatal("response should merge into the existing query Txn")
	}
	txn := rResult.Txn
	if txn != qResult.Txn {
		t.Fatal("response should merge into the same Txn object as the query")
	}
	if txn.RcodeID != 0 || txn.RcodeName != "NOERROR" {
		t.Fatalf("rcode = %d/%s, want 0/NOERROR", txn.RcodeID, txn.RcodeName)
	}
	if txn.ActivityID != ActivityQueryAndResponse {
		t.Fatalf("activity = %d, want ActivityQueryAndResponse", txn.ActivityID)
	}
	if len(txn.Answers) != 1 {
		t.Fatalf("answersCnt = %d, want 1", len(txn.Answers))
	}
	ans := txn.Answers[0]
	if ans.TTL != 3600 {
		t.Fatalf("ttl = %d, want 3600", ans.TTL)
	}
	if ans.RData.Kind != RDataA {
		t.Fatalf("rdata kind = %v, want RDataA", ans.RData.Kind)
	}
	gotIP := net.IPv4(ans.RData.A0, ans.RData.A1, ans.RData.A2, ans.RData.A3).String()
	if gotIP != "93.184.216.34" {
		t.Fatalf("rdata = %s, want 93.184.216.34", gotIP)
	}
}

func TestParseMessageDropsOpcodeAboveFive(t *testing.T) {
	sess, pos := newDNSSession(t)
	msg := mustHex(t, "1234 3800 0001 0000 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001")
	result := ParseMessage(msg, sess, pos, time.Unix(0, 0))
	if !result.Dropped || result.DropReason != "opcode>5" {
		t.Fatalf("expected opcode>5 drop, got %+v", result)
	}
}

func TestParseMessageDropsQDCountNotOne(t *testing.T) {
	sess, pos := newDNSSession(t)
	msg := mustHex(t, "1234 0100 0000 0000 0000 0000")
	result := ParseMessage(msg, sess, pos, time.Unix(0, 0))
	if !result.Dropped || result.PolicyTag != "dns-qdcount-not-1" {
		t.Fatalf("expected qd!=1 drop with policy tag, got %+v", result)
	}
}

func TestParseMessageCompressionPointerLoopRefused(t *testing.T) {
	sess, pos := newDNSSession(t)
	// A question name made entirely of a self-referencing pointer at
	// offset 12 (right where the question starts).
	msg := mustHex(t, "1234 0100 0001 0000 0000 0000 c00c 0001 0001")
	result := ParseMessage(msg, sess, pos, time.Unix(0, 0))
	if !result.Dropped {
		t.Fatalf("expected pointer loop to be refused, got %+v", result)
	}
}

func TestParseMessageRetransmitQueryMerges(t *testing.T) {
	sess, pos := newDNSSession(t)
	query := mustHex(t, "1234 0100 0001 0000 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001")
	now := time.Unix(1700000000, 0)

	first := ParseMessage(query, sess, pos, now)
	second := ParseMessage(query, sess, pos, now.Add(time.Second))
	if !second.Merged {
		t.Fatal("identical retransmitted query should merge")
	}
	if second.Txn != first.Txn {
		t.Fatal("retransmit should resolve to the same Txn")
	}
}
