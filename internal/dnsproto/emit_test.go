// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEmitRecordPlainShapeMatchesQueryAndResponse(t *testing.T) {
	sess, pos := newDNSSession(t)
	now := time.Unix(1700000000, 0)

	query := mustHex(t, "1234 0100 0001 0000 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001")
	qResult := ParseMessage(query, sess, pos, now)
	if qResult.Dropped {
		t.Fatalf("query dropped: %s", qResult.DropReason)
	}

	response := mustHex(t, "1234 8180 0001 0001 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001 c00c 0001 0001 00000e10 0004 5db8d822")
	rResult := ParseMessage(response, sess, pos, now.Add(time.Millisecond))
	if rResult.Dropped {
		t.Fatalf("response dropped: %s", rResult.DropReason)
	}

	out, err := EmitRecord(rResult.Txn, sess, false, false)
	if err != nil {
		t.Fatalf("EmitRecord: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("emitted record is not valid JSON: %v\n%s", err, out)
	}

	query_, ok := got["query"].(map[string]any)
	if !ok {
		t.Fatalf("missing query object, got %#v", got["query"])
	}
	if query_["opcode_id"].(float64) != 0 {
		t.Fatalf("opcode_id = %v, want 0", query_["opcode_id"])
	}
	if query_["packet_uid"].(float64) != 0x1234 {
		t.Fatalf("packet_uid = %v, want %d", query_["packet_uid"], 0x1234)
	}
	if query_["hostname"] != "www.example.com" {
		t.Fatalf("hostname = %v, want www.example.com", query_["hostname"])
	}
	if query_["class"] != "IN" || query_["type"] != "A" {
		t.Fatalf("class/type = %v/%v, want IN/A", query_["class"], query_["type"])
	}

	if got["rcode_id"].(float64) != 0 {
		t.Fatalf("rcode_id = %v, want 0", got["rcode_id"])
	}
	if got["rcode"] != "NOERROR" {
		t.Fatalf("rcode = %v, want NOERROR", got["rcode"])
	}
	if got["answersCnt"].(float64) != 1 {
		t.Fatalf("answersCnt = %v, want 1", got["answersCnt"])
	}

	answers, ok := got["answers"].([]any)
	if !ok || len(answers) != 1 {
		t.Fatalf("answers = %#v, want a single-element array", got["answers"])
	}
	ans := answers[0].(map[string]any)
	if ans["rdata"] != "93.184.216.34" {
		t.Fatalf("rdata = %v, want 93.184.216.34", ans["rdata"])
	}
	if ans["ttl"].(float64) != 3600 {
		t.Fatalf("ttl = %v, want 3600", ans["ttl"])
	}
	if ans["class"] != "IN" || ans["type"] != "A" {
		t.Fatalf("answer class/type = %v/%v, want IN/A", ans["class"], ans["type"])
	}
	if ans["rr_name"] != "www.example.com" {
		t.Fatalf("rr_name = %v, want www.example.com", ans["rr_name"])
	}
	if ans["rr_type"] != "Answer" {
		t.Fatalf("rr_type = %v, want Answer", ans["rr_type"])
	}

	if _, present := got["category_uid"]; present {
		t.Fatal("plain mode must not include OCSF envelope fields")
	}
}

func TestEmitRecordStrictModeAddsOCSFEnvelopeAndSuppressesRRFields(t *testing.T) {
	sess, pos := newDNSSession(t)
	now := time.Unix(1700000000, 0)

	query := mustHex(t, "1234 0100 0001 0000 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001")
	ParseMessage(query, sess, pos, now)

	response := mustHex(t, "1234 8180 0001 0001 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001 c00c 0001 0001 00000e10 0004 5db8d822")
	rResult := ParseMessage(response, sess, pos, now.Add(time.Millisecond))
	if rResult.Dropped {
		t.Fatalf("response dropped: %s", rResult.DropReason)
	}

	out, err := EmitRecord(rResult.Txn, sess, true, false)
	if err != nil {
		t.Fatalf("EmitRecord: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("emitted record is not valid JSON: %v\n%s", err, out)
	}

	if got["category_uid"].(float64) != 4 {
		t.Fatalf("category_uid = %v, want 4", got["category_uid"])
	}
	if got["class_uid"].(float64) != 4003 {
		t.Fatalf("class_uid = %v, want 4003", got["class_uid"])
	}
	if got["type_uid"].(float64) != 400306 {
		t.Fatalf("type_uid = %v, want 400306", got["type_uid"])
	}
	if got["severity_id"].(float64) != 1 {
		t.Fatalf("severity_id = %v, want 1", got["severity_id"])
	}
	metadata, ok := got["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("missing metadata object, got %#v", got["metadata"])
	}
	product, ok := metadata["product"].(map[string]any)
	if !ok || product["vendor_name"] != "arkime" {
		t.Fatalf("metadata.product.vendor_name = %#v, want arkime", metadata["product"])
	}
	if metadata["version"] != "1.1.0" {
		t.Fatalf("metadata.version = %v, want 1.1.0", metadata["version"])
	}
	if _, present := got["src_endpoint"]; !present {
		t.Fatal("strict mode must include src_endpoint")
	}
	if _, present := got["dst_endpoint"]; !present {
		t.Fatal("strict mode must include dst_endpoint")
	}

	answers := got["answers"].([]any)
	ans := answers[0].(map[string]any)
	if _, present := ans["rr_name"]; present {
		t.Fatal("strict mode must suppress per-answer rr_name")
	}
	if _, present := ans["rr_type"]; present {
		t.Fatal("strict mode must suppress per-answer rr_type")
	}
	if ans["rdata"] != "93.184.216.34" {
		t.Fatalf("rdata = %v, want 93.184.216.34", ans["rdata"])
	}
}

func TestEmitRecordQueryOnlyOmitsRcodeAndAnswers(t *testing.T) {
	sess, pos := newDNSSession(t)
	now := time.Unix(1700000000, 0)

	query := mustHex(t, "1234 0100 0001 0000 0000 0000 03 77 77 77 07 65 78 61 6d 70 6c 65 03 63 6f 6d 00 0001 0001")
	qResult := ParseMessage(query, sess, pos, now)
	if qResult.Dropped {
		t.Fatalf("query dropped: %s", qResult.DropReason)
	}

	out, err := EmitRecord(qResult.Txn, sess, false, false)
	if err != nil {
		t.Fatalf("EmitRecord: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("emitted record is not valid JSON: %v\n%s", err, out)
	}
	if _, present := got["rcode_id"]; present {
		t.Fatal("a query with no response seen yet must not emit rcode_id")
	}
	if _, present := got["answers"]; present {
		t.Fatal("a query with no response seen yet must not emit answers")
	}
}

func TestRenderRDataPerType(t *testing.T) {
	cases := []struct {
		name string
		r    RData
		want string
	}{
		{"A", RData{Kind: RDataA, A0: 93, A1: 184, A2: 216, A3: 34}, "93.184.216.34"},
		{"MX", RData{Kind: RDataMX, MXPreference: 10, MXExchange: "mail.example.com"}, "(10)mail.example.com"},
		{"CAA", RData{Kind: RDataCAA, CAAFlags: 0, CAATag: "issue", CAAValue: []byte("letsencrypt.org")}, "CAA 0 issue letsencrypt.org"},
		{"TXT", RData{Kind: RDataTXT, TXT: []byte("v=spf1 -all")}, "v=spf1 -all"},
		{"NS", RData{Kind: RDataNS, Name: "ns1.example.com"}, "ns1.example.com"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := renderRData(c.r)
			if got != c.want {
				t.Fatalf("renderRData(%s) = %q, want %q", c.name, got, c.want)
			}
		})
	}
}
