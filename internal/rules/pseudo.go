// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import "github.com/arkime/sessiond/internal/session"

// Session pseudo-fields: matchable values the session itself carries
// rather than a registry-defined field. These positions are
// reserved below 0 so they never collide with the fields registry's
// append-only, positive allocation.
const (
	PseudoSrcIP session.FieldPos = -(iota + 1)
	PseudoDstIP
	PseudoSrcPort
	PseudoDstPort
	PseudoCommunityID
)

var pseudoFieldNames = map[string]session.FieldDescriptor{
	"srcIp":       {Pos: PseudoSrcIP, Kind: session.KindIPv4, Name: "srcIp"},
	"dstIp":       {Pos: PseudoDstIP, Kind: session.KindIPv4, Name: "dstIp"},
	"srcPort":     {Pos: PseudoSrcPort, Kind: session.KindInt, Name: "srcPort"},
	"dstPort":     {Pos: PseudoDstPort, Kind: session.KindInt, Name: "dstPort"},
	"communityId": {Pos: PseudoCommunityID, Kind: session.KindString, Name: "communityId"},
}

// resolveFieldExpr resolves a field expression against the built-in
// session pseudo-fields first, falling back to the fields registry for
// everything else.
func resolveFieldExpr(expr string, registry session.FieldsRegistry) (session.FieldDescriptor, bool) {
	if d, ok := pseudoFieldNames[expr]; ok {
		return d, true
	}
	return registry.Resolve(expr)
}

// fetchFieldValue reads the current value of pos from sess, resolving
// session pseudo-fields directly and everything else via sess.Field.
func fetchFieldValue(sess session.Session, pos session.FieldPos) (any, bool) {
	switch pos {
	case PseudoSrcIP:
		return sess.SrcIP(), true
	case PseudoDstIP:
		return sess.DstIP(), true
	case PseudoSrcPort:
		return int64(sess.SrcPort()), true
	case PseudoDstPort:
		return int64(sess.DstPort()), true
	case PseudoCommunityID:
		return session.CommunityID(sess)
	default:
		if pos >= session.CountOfBase {
			underlying := pos - session.CountOfBase
			v := sess.Field(underlying)
			if v == nil {
				return nil, false
			}
			return int64(cardinality(v)), true
		}
		v := sess.Field(pos)
		if v == nil {
			return nil, false
		}
		return v, true
	}
}

// cardinality returns the number of elements held by an array/set/map
// valued field, for count-of-field pseudo-field matching.
func cardinality(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case map[any]bool:
		return len(t)
	case map[any]any:
		return len(t)
	default:
		return 0
	}
}
