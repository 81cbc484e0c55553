// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import "github.com/arkime/sessiond/internal/session"

// TxnFieldName is the field expression ParseMessage's Txn objects are
// stored under. It mirrors the dotted "<protocol>.<name>" convention the
// fields registry uses for every other field this module is silent about
// (host names, query types, ...), which belong to the capture pipeline's
// own field table, not this package.
const TxnFieldName = "dns.txn"

// hashQuery and equalQuery are the dedup pair every session's DNS
// transaction object collection is keyed by: same packet_uid, opcode,
// hostname, class and type identify the same transaction, whichever of
// query or response arrived first.
func hashQuery(v any) uint64 {
	t, ok := v.(*Txn)
	if !ok {
		return 0
	}
	return t.Query.Fingerprint()
}

func equalQuery(a, b any) bool {
	ta, aok := a.(*Txn)
	tb, bok := b.(*Txn)
	if !aok || !bok {
		return false
	}
	return ta.Query.Equal(tb.Query)
}

// RegisterFields wires the DNS transaction object field into a fields
// registry and returns its assigned position. Callers must also pass the
// same hash/equal pair to every concrete Session implementation that will
// hold dns.txn objects; WireSession does this for BasicSession.
func RegisterFields(registry session.FieldsRegistry) session.FieldPos {
	return registry.RegisterObject(TxnFieldName, "Correlated DNS query/response transaction", hashQuery, equalQuery)
}

// WireSession registers the dns.txn hash/equal pair on a concrete
// BasicSession so AddObject can dedupe transactions for that session. Call
// once per session, after RegisterFields has assigned pos.
func WireSession(sess *session.BasicSession, pos session.FieldPos) {
	sess.RegisterObjectField(pos, hashQuery, equalQuery)
}
