// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import "github.com/arkime/sessiond/internal/session"

// applyOp copies op's value into sess's field according to the field's
// registered kind: scalar overwrite, array append, or set insert.
// Map-valued ops insert (or overwrite) one key of the map when Value is
// a MapEntry; any other value on a KindMap field is ignored. The loader
// builds map-field op values as plain strings, so ops loaded from a rule
// document leave map fields unchanged.
func applyOp(sess session.Session, op Op) {
	switch op.Kind {
	case session.KindArray:
		cur, _ := sess.Field(op.Pos).([]any)
		sess.SetField(op.Pos, append(cur, op.Value))
	case session.KindSet:
		cur, _ := sess.Field(op.Pos).(map[any]bool)
		if cur == nil {
			cur = make(map[any]bool)
		}
		cur[op.Value] = true
		sess.SetField(op.Pos, cur)
	case session.KindMap:
		entry, ok := op.Value.(MapEntry)
		if !ok {
			return
		}
		cur, _ := sess.Field(op.Pos).(map[any]any)
		if cur == nil {
			cur = make(map[any]any)
		}
		cur[entry.Key] = entry.Value
		sess.SetField(op.Pos, cur)
	default:
		sess.SetField(op.Pos, op.Value)
	}
}

// MapEntry is the Op.Value shape for operations targeting a
// map-valued field.
type MapEntry struct {
	Key, Value any
}

// applyOps runs every op in declaration order, then reports which field
// positions were written so the caller can re-enter the evaluator's
// field-set hook for each one: ops that write to a field watched by
// another rule can trigger that rule in turn.
func applyOps(sess session.Session, ops []Op) []session.FieldPos {
	written := make([]session.FieldPos, 0, len(ops))
	for _, op := range ops {
		applyOp(sess, op)
		written = append(written, op.Pos)
	}
	return written
}
