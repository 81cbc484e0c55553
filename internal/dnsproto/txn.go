// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsproto

import (
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// Query is the decoded question side of a DNS transaction.
type Query struct {
	PacketUID  uint16
	OpcodeID   uint8
	OpcodeName string
	ClassID    uint16
	ClassName  string
	TypeID     uint16
	TypeName   string
	Hostname   string // "<root>" sentinel when empty
}

// Txn correlates one query with its zero-or-more matching responses
// observed later on the same session.
type Txn struct {
	UID        uuid.UUID // assigned once, at first observation, for log correlation
	Query      Query
	Answers    []Answer
	RcodeID    int8 // -1 = no response seen yet
	RcodeName  string
	ActivityID ActivityID
	QueryTS    time.Time
	ResponseTS time.Time
	hasQueryTS bool
	hasRespTS  bool
}

// HasQueryTS reports whether QueryTS was ever set.
func (t *Txn) HasQueryTS() bool { return t.hasQueryTS }

// HasResponseTS reports whether ResponseTS was ever set.
func (t *Txn) HasResponseTS() bool { return t.hasRespTS }

func (t *Txn) setQueryTS(ts time.Time) {
	t.QueryTS = ts
	t.hasQueryTS = true
}

func (t *Txn) setResponseTS(ts time.Time) {
	t.ResponseTS = ts
	t.hasRespTS = true
}

// NewQueryTxn builds a fresh Txn from a just-seen query (QR=0).
func NewQueryTxn(q Query, now time.Time) *Txn {
	t := &Txn{
		UID:        uuid.New(),
		Query:      q,
		RcodeID:    -1,
		ActivityID: ActivityQueryOnly,
	}
	t.setQueryTS(now)
	return t
}

// NewResponseOnlyTxn builds a fresh Txn for a response with no matching
// prior query observed in this session.
func NewResponseOnlyTxn(q Query) *Txn {
	return &Txn{
		UID:        uuid.New(),
		Query:      q,
		RcodeID:    -1,
		ActivityID: ActivityResponseOnly,
	}
}

// MergeResponse records the response's rcode and timestamp and promotes
// a QueryOnly t to QueryAndResponse. A ResponseOnly t is promoted only
// if it carries a query timestamp, so one created from a response keeps
// ResponseOnly across later responses. Callers append answers
// separately via AppendAnswers.
func (t *Txn) MergeResponse(rcodeID int8, now time.Time) {
	t.RcodeID = rcodeID
	t.RcodeName = RcodeName(rcodeID)
	t.setResponseTS(now)
	if t.ActivityID == ActivityQueryOnly {
		t.ActivityID = ActivityQueryAndResponse
	} else if t.ActivityID == ActivityResponseOnly && t.hasQueryTS {
		t.ActivityID = ActivityQueryAndResponse
	}
}

// AppendAnswers appends newly decoded answers, deduping by
// (type_id, rr_name, rdata, ttl) against answers already present so that
// feeding an identical response twice does not grow the answer set.
func (t *Txn) AppendAnswers(answers []Answer) {
	for _, a := range answers {
		if t.hasAnswer(a) {
			continue
		}
		t.Answers = append(t.Answers, a)
	}
}

func (t *Txn) hasAnswer(a Answer) bool {
	for _, existing := range t.Answers {
		if existing.TypeID == a.TypeID && existing.RRName == a.RRName &&
			existing.TTL == a.TTL && rdataEqual(existing.RData, a.RData) {
			return true
		}
	}
	return false
}

func rdataEqual(a, b RData) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case RDataA:
		return a.A == b.A
	case RDataAAAA:
		return a.AAAA == b.AAAA
	case RDataNS, RDataCNAME:
		return a.Name == b.Name
	case RDataMX:
		return a.MXPreference == b.MXPreference && a.MXExchange == b.MXExchange
	case RDataTXT:
		return string(a.TXT) == string(b.TXT)
	case RDataCAA:
		return a.CAAFlags == b.CAAFlags && a.CAATag == b.CAATag && string(a.CAAValue) == string(b.CAAValue)
	default:
		return false
	}
}

// Fingerprint returns the content-derived hash used to key this Txn's
// query within the session's object store, per the equality pair
// (packet_uid, opcode_id, hostname, class, type).
func (q Query) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte(q.Hostname))
	sum := h.Sum64()
	sum ^= (uint64(q.OpcodeID) << 24) | uint64(q.PacketUID)<<8
	sum ^= (uint64(q.TypeID) << 16) | uint64(q.ClassID)
	return sum
}

// Equal implements the Txn identity comparison: packet_uid, opcode_id,
// hostname (byte-exact), class, and type must all match.
func (q Query) Equal(other Query) bool {
	return q.PacketUID == other.PacketUID &&
		q.OpcodeID == other.OpcodeID &&
		q.Hostname == other.Hostname &&
		q.ClassID == other.ClassID &&
		q.TypeID == other.TypeID
}
