// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus counters for the DNS parser and
// rule engine: messages parsed per dialect, records discarded per
// error kind, and rule match counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arkime/sessiond/internal/rules"
)

// Collector gathers session-pipeline counters and exposes them to a
// Prometheus registry.
type Collector struct {
	MessagesParsed   *prometheus.CounterVec
	RecordsDiscarded *prometheus.CounterVec
	RuleMatches      *prometheus.GaugeVec
	ReassemblyBytes  *prometheus.GaugeVec
}

// NewCollector registers this package's metrics against reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		MessagesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "dns",
			Name:      "messages_parsed_total",
			Help:      "DNS/LLMNR/mDNS messages successfully parsed, by dialect.",
		}, []string{"dialect"}),
		RecordsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Subsystem: "dns",
			Name:      "records_discarded_total",
			Help:      "DNS records or messages discarded, by error kind.",
		}, []string{"kind"}),
		RuleMatches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sessiond",
			Subsystem: "rules",
			Name:      "matched_count",
			Help:      "Cumulative match count per rule.",
		}, []string{"rule"}),
		ReassemblyBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sessiond",
			Subsystem: "dns",
			Name:      "tcp_reassembly_buffered_bytes",
			Help:      "Bytes currently buffered in the TCP reassembler, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(c.MessagesParsed, c.RecordsDiscarded, c.RuleMatches, c.ReassemblyBytes)
	return c
}

// ObserveDialect increments the parsed-message counter for a dialect
// label ("dns", "llmnr", "mdns").
func (c *Collector) ObserveDialect(dialect string) {
	c.MessagesParsed.WithLabelValues(dialect).Inc()
}

// ObserveDiscard increments the discard counter for an error kind.
func (c *Collector) ObserveDiscard(kind string) {
	c.RecordsDiscarded.WithLabelValues(kind).Inc()
}

// SyncRuleMatches copies every rule's current matched_count into the
// gauge vector. Called periodically rather than on every match so
// the hot evaluation path never touches Prometheus directly.
func (c *Collector) SyncRuleMatches(loaded []*rules.Rule) {
	for _, r := range loaded {
		c.RuleMatches.WithLabelValues(r.Name).Set(float64(r.MatchedCount()))
	}
}
