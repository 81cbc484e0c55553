// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"net"
	"testing"

	"github.com/arkime/sessiond/internal/session"
)

func TestEvaluatorHostnameSuffixRuleFires(t *testing.T) {
	reg := newTestRegistry()
	hostPos, _ := reg.Resolve("dns.host")

	doc := []byte(`
version: 1
rules:
  - name: ads
    when: fieldSet
    fields:
      "dns.host,tail": ".ads.example"
    ops:
      tags: ad
`)
	parsed, err := LoadDocument(doc, "ads.yaml", reg)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	idx := NewRuleIndex()
	idx.Reload(parsed, reg)
	eval := NewEvaluator(idx, reg)

	sess := session.NewBasicSession(net.ParseIP("10.1.2.3"), net.ParseIP("10.1.2.4"), 5000, 53, "udp")
	sess.SetField(hostPos.Pos, "trk.ads.example")
	eval.OnFieldSet(sess, hostPos.Pos, "trk.ads.example")

	r := idx.Current().rules[0]
	if r.MatchedCount() != 1 {
		t.Fatalf("expected matched_count 1, got %d", r.MatchedCount())
	}
	tagsPos, _ := reg.Resolve("tags")
	tags, _ := sess.Field(tagsPos.Pos).(map[any]bool)
	if !tags["ad"] {
		t.Fatalf("expected tags field to contain ad, got %+v", tags)
	}
}

func TestEvaluatorHostnameSuffixRuleDoesNotFireOnNonMatch(t *testing.T) {
	reg := newTestRegistry()
	hostPos, _ := reg.Resolve("dns.host")

	doc := []byte(`
version: 1
rules:
  - name: ads
    when: fieldSet
    fields:
      "dns.host,tail": ".ads.example"
    ops:
      tags: ad
`)
	parsed, err := LoadDocument(doc, "ads.yaml", reg)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	idx := NewRuleIndex()
	idx.Reload(parsed, reg)
	eval := NewEvaluator(idx, reg)

	sess := session.NewBasicSession(net.ParseIP("10.1.2.3"), net.ParseIP("10.1.2.4"), 5000, 53, "udp")
	sess.SetField(hostPos.Pos, "example.com")
	eval.OnFieldSet(sess, hostPos.Pos, "example.com")

	if idx.Current().rules[0].MatchedCount() != 0 {
		t.Fatalf("expected rule not to fire for non-matching hostname")
	}
}

func TestEvaluatorIPRangeRuleMatchesAndExcludes(t *testing.T) {
	reg := newTestRegistry()

	doc := []byte(`
version: 1
rules:
  - name: internalRange
    when: afterClassify
    fields:
      srcIp: "10.0.0.0/8"
      dstPort: "1024-65535"
`)
	parsed, err := LoadDocument(doc, "range.yaml", reg)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	idx := NewRuleIndex()
	idx.Reload(parsed, reg)
	eval := NewEvaluator(idx, reg)

	matching := session.NewBasicSession(net.ParseIP("10.1.2.3"), net.ParseIP("10.1.2.4"), 1, 5555, "udp")
	eval.OnAfterClassify(matching)
	if idx.Current().rules[0].MatchedCount() != 1 {
		t.Fatalf("expected matching session to fire rule once, got %d", idx.Current().rules[0].MatchedCount())
	}

	nonMatching := session.NewBasicSession(net.ParseIP("192.168.0.1"), net.ParseIP("10.1.2.4"), 1, 5555, "udp")
	eval.OnAfterClassify(nonMatching)
	if idx.Current().rules[0].MatchedCount() != 1 {
		t.Fatalf("expected non-matching source to leave matched_count unchanged, got %d", idx.Current().rules[0].MatchedCount())
	}
}

func TestReloadAtomicityRejectsBadGenerationWithoutDisturbingCurrent(t *testing.T) {
	reg := newTestRegistry()

	good := []byte(`
version: 1
rules:
  - name: internalRange
    when: afterClassify
    fields:
      srcIp: "10.0.0.0/8"
`)
	goodRules, err := LoadDocument(good, "good.yaml", reg)
	if err != nil {
		t.Fatalf("LoadDocument(good): %v", err)
	}

	idx := NewRuleIndex()
	idx.Reload(goodRules, reg)
	eval := NewEvaluator(idx, reg)

	bad := []byte(`
version: 1
rules:
  - name: broken
    when: afterClassify
    fields:
      "totally.unknown.field": "x"
`)
	if _, err := LoadDocument(bad, "bad.yaml", reg); err == nil {
		t.Fatal("expected bad document to fail validation")
	}
	// A failed load must never reach Reload: idx.Current() still holds
	// the original generation and keeps firing at its prior rate.
	sess := session.NewBasicSession(net.ParseIP("10.5.5.5"), net.ParseIP("1.2.3.4"), 1, 2, "udp")
	eval.OnAfterClassify(sess)
	if len(idx.Current().rules) != 1 || idx.Current().rules[0].Name != "internalRange" {
		t.Fatalf("expected original generation to survive a failed reload, got %+v", idx.Current().rules)
	}
	if idx.Current().rules[0].MatchedCount() != 1 {
		t.Fatalf("expected original rule to keep firing after failed reload, got %d", idx.Current().rules[0].MatchedCount())
	}
}
