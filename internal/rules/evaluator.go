// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"net"

	"github.com/arkime/sessiond/internal/logging"
	"github.com/arkime/sessiond/internal/session"
)

// maxReentryDepth bounds the recursion ops-triggered field-set
// reevaluation can reach. A session's own rule graph would have to be
// pathologically self-referential to approach this before converging.
const maxReentryDepth = 8

// Evaluator dispatches rule evaluation at the four lifecycle points
// against whatever generation idx currently holds.
type Evaluator struct {
	idx      *RuleIndex
	registry session.FieldsRegistry
}

// NewEvaluator builds an evaluator bound to idx and registry.
func NewEvaluator(idx *RuleIndex, registry session.FieldsRegistry) *Evaluator {
	return &Evaluator{idx: idx, registry: registry}
}

// OnSessionSetup runs every SessionSetup rule: BPF rules are matched
// against the raw packet bytes, field rules via check_rule_fields.
func (e *Evaluator) OnSessionSetup(sess session.Session, packet []byte) {
	gen := e.idx.Current()
	for _, r := range gen.byTrigger[TriggerSessionSetup] {
		if r.BPF != nil {
			if r.BPF.Matches(packet) {
				e.fire(sess, r)
			}
			continue
		}
		if e.checkRuleFields(sess, r, 0) {
			e.fire(sess, r)
		}
	}
}

// OnAfterClassify runs every AfterClassify rule's field matchers.
func (e *Evaluator) OnAfterClassify(sess session.Session) {
	gen := e.idx.Current()
	for _, r := range gen.byTrigger[TriggerAfterClassify] {
		if e.checkRuleFields(sess, r, 0) {
			e.fire(sess, r)
		}
	}
}

// OnBeforeSave runs every BeforeSave rule whose save_flags mask covers
// this save point (middle=01, final=10).
func (e *Evaluator) OnBeforeSave(sess session.Session, final bool) {
	gen := e.idx.Current()
	var bit int
	if final {
		bit = SaveFinal
	} else {
		bit = SaveMiddle
	}
	for _, r := range gen.byTrigger[TriggerBeforeSave] {
		if r.SaveFlags&bit == 0 {
			continue
		}
		if e.checkRuleFields(sess, r, 0) {
			e.fire(sess, r)
		}
	}
}

// OnFieldSet is called whenever a session field pos is written. It
// consults the compiled index for rules that reference pos with this
// value, fires single-field rules immediately, and re-verifies
// multi-field rules' remaining fields before firing.
func (e *Evaluator) OnFieldSet(sess session.Session, pos session.FieldPos, value any) {
	e.onFieldSet(sess, pos, value, 0)
}

func (e *Evaluator) onFieldSet(sess session.Session, pos session.FieldPos, value any, depth int) {
	if depth >= maxReentryDepth {
		logging.Warn("rules: field-set reentry depth exceeded at field %d, stopping", pos)
		return
	}
	if !e.registry.RuleEnabled(pos) {
		return
	}

	gen := e.idx.Current()
	candidates := candidatesForValue(gen, pos, value)

	for _, r := range candidates {
		if len(r.Fields) == 1 {
			e.fireAtDepth(sess, r, depth)
			continue
		}
		if e.checkRuleFields(sess, r, pos) {
			e.fireAtDepth(sess, r, depth)
		}
	}
}

// candidatesForValue dispatches to the right table family for value's
// dynamic type.
func candidatesForValue(gen *generation, pos session.FieldPos, value any) []*Rule {
	switch v := value.(type) {
	case int64:
		return gen.candidatesInt(pos, v)
	case int:
		return gen.candidatesInt(pos, int64(v))
	case uint32:
		return gen.candidatesFloat(pos, v)
	case float32:
		return gen.candidatesFloat(pos, float32BitsOf(v))
	case string:
		return gen.candidatesString(pos, v)
	case net.IP:
		if v4 := v.To4(); v4 != nil {
			return gen.candidatesIP(pos, v4, false)
		}
		return gen.candidatesIP(pos, v.To16(), true)
	default:
		return nil
	}
}

// checkRuleFields short-circuits on the first unsatisfied field
// (AND-semantics), skipping skip (the field whose write just triggered
// this evaluation, already known to match by construction).
func (e *Evaluator) checkRuleFields(sess session.Session, r *Rule, skip session.FieldPos) bool {
	for _, f := range r.Fields {
		if f.Pos == skip {
			continue
		}
		v, ok := fetchFieldValue(sess, f.Pos)
		if !ok {
			return false
		}
		if !matchFieldValue(f, v) {
			return false
		}
	}
	return true
}

func (e *Evaluator) fire(sess session.Session, r *Rule) {
	e.fireAtDepth(sess, r, 0)
}

func (e *Evaluator) fireAtDepth(sess session.Session, r *Rule, depth int) {
	r.incrementMatched()
	if r.LogMatches {
		logMatch(sess, r)
	}
	written := applyOps(sess, r.Ops)
	for _, pos := range written {
		v, ok := fetchFieldValue(sess, pos)
		if !ok {
			continue
		}
		e.onFieldSet(sess, pos, v, depth+1)
	}
}

// logMatch emits a side-effect-free one-line summary of a matched
// rule. It never re-evaluates the rule's fields, so logging can never
// alter the match outcome.
func logMatch(sess session.Session, r *Rule) {
	logging.Info("rule %q fired (matched_count=%d)", r.Name, r.MatchedCount())
}
