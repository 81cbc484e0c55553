// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkime/sessiond/internal/rules"
)

func TestObserveDialectIncrementsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveDialect("dns")
	c.ObserveDialect("dns")
	c.ObserveDialect("mdns")

	metric := &dto.Metric{}
	require.NoError(t, c.MessagesParsed.WithLabelValues("dns").Write(metric))
	assert.Equal(t, float64(2), metric.Counter.GetValue())
}

func TestSyncRuleMatchesReflectsRuleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	r := &rules.Rule{Name: "ad-domain"}
	c.SyncRuleMatches([]*rules.Rule{r})

	metric := &dto.Metric{}
	require.NoError(t, c.RuleMatches.WithLabelValues("ad-domain").Write(metric))
	assert.Equal(t, float64(0), metric.Gauge.GetValue())
}
