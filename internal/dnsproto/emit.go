// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/arkime/sessiond/internal/session"
)

// OCSF constants for the DNS Activity event class, fixed regardless of
// which activity (query-only, response-only, query-and-response) a
// given Txn carries.
const (
	ocsfCategoryUID = 4
	ocsfClassUID    = 4003
	ocsfTypeUID     = 400306
	ocsfSeverityID  = 1
	ocsfVendorName  = "arkime"
	ocsfVersion     = "1.1.0"
)

// orderedJSON builds a JSON object preserving caller-chosen key order
// (encoding/json.Marshal on a map would re-sort keys alphabetically,
// which the shape below doesn't require for correctness but which makes
// the emitted record harder to eyeball during rule/dashboard debugging).
type orderedJSON struct {
	keys   []string
	values []any
}

func (o *orderedJSON) set(key string, value any) {
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
}

func (o orderedJSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EmitRecord renders t as the JSON record this module's consumers expect:
// a query block, and when a response has been seen, rcode/answersCnt/
// answers. In strict mode the record is additionally wrapped in the OCSF
// DNS Activity envelope (category_uid/class_uid/type_uid/severity_id/
// metadata/activity_uid/time/query_time/response_time/src_endpoint/
// dst_endpoint) and per-answer rr_name/rr_type are suppressed, matching
// OCSF's own DNS answer schema. includeGeo adds a "geo" sub-object to
// each answer carrying the country GeoEnricher.EnrichAnswers resolved;
// it is forced off in strict mode since OCSF's schema is fixed.
func EmitRecord(t *Txn, sess session.Session, strict bool, includeGeo bool) ([]byte, error) {
	rec := &orderedJSON{}

	if strict {
		rec.set("category_uid", ocsfCategoryUID)
		rec.set("class_uid", ocsfClassUID)
		rec.set("type_uid", ocsfTypeUID)
		rec.set("severity_id", ocsfSeverityID)
		rec.set("metadata", map[string]any{
			"product": map[string]any{"vendor_name": ocsfVendorName},
			"version": ocsfVersion,
		})
		rec.set("activity_uid", int(t.ActivityID))
		rec.set("time", epochMillis(time.Now()))
		rec.set("query_time", epochMillis(t.QueryTS))
		rec.set("response_time", epochMillis(t.ResponseTS))
	}

	rec.set("txn_uid", t.UID.String())

	rec.set("query", map[string]any{
		"opcode_id":  t.Query.OpcodeID,
		"opcode":     t.Query.OpcodeName,
		"packet_uid": t.Query.PacketUID,
		"hostname":   t.Query.Hostname,
		"class":      t.Query.ClassName,
		"type":       t.Query.TypeName,
	})

	if strict && sess != nil {
		rec.set("dst_endpoint", map[string]any{"ip": sess.DstIP().String(), "port": sess.DstPort()})
		rec.set("src_endpoint", map[string]any{"ip": sess.SrcIP().String(), "port": sess.SrcPort()})
	}

	if t.RcodeID != -1 {
		rec.set("rcode_id", t.RcodeID)
		rec.set("rcode", t.RcodeName)
		rec.set("answersCnt", len(t.Answers))
		if len(t.Answers) > 0 {
			answers := make([]any, len(t.Answers))
			for i, a := range t.Answers {
				answers[i] = emitAnswer(a, strict, includeGeo && !strict)
			}
			rec.set("answers", answers)
		}
	}

	return json.Marshal(rec)
}

func emitAnswer(a Answer, strict bool, includeGeo bool) *orderedJSON {
	out := &orderedJSON{}
	out.set("rdata", renderRData(a.RData))
	out.set("class", ClassName(a.Class))
	out.set("type", TypeName(a.Type))
	out.set("packet_uid", a.PacketUID)
	out.set("ttl", a.TTL)

	if len(a.Flags) > 0 {
		flagNames := make([]string, len(a.Flags))
		for i, f := range a.Flags {
			flagNames[i] = f.String()
		}
		out.set("flags", flagNames)
	}

	if !strict {
		out.set("rr_name", a.RRName)
		out.set("rr_type", a.RRType.String())
	}

	if includeGeo && a.Country != "" {
		out.set("geo", map[string]any{"country": a.Country})
	}

	return out
}

// renderRData formats an answer's rdata the way this format's consumers
// expect per RR type: A/AAAA as dotted-quad or IPv6 text (net.IP.String
// already renders a v4-mapped 16-byte address in dotted-quad form), MX as
// "(preference)exchange", CAA as "CAA flags tag value", everything else
// as its decoded name/text.
func renderRData(r RData) string {
	switch r.Kind {
	case RDataA:
		return net.IPv4(r.A0, r.A1, r.A2, r.A3).String()
	case RDataAAAA:
		return net.IP(r.AAAA[:]).String()
	case RDataNS, RDataCNAME:
		return r.Name
	case RDataMX:
		return fmt.Sprintf("(%d)%s", r.MXPreference, r.MXExchange)
	case RDataTXT:
		return string(r.TXT)
	case RDataCAA:
		return fmt.Sprintf("CAA %d %s %s", r.CAAFlags, r.CAATag, string(r.CAAValue))
	default:
		return ""
	}
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
