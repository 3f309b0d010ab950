package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestListingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewListingMetrics(reg)

	m.AddExpired(3)
	m.AddExpired(0)
	m.AddPremiumLapsed(2)
	m.IncReveal(RevealOutcomeRevealed)
	m.IncReveal(RevealOutcomeRevealed)
	m.IncReveal(RevealOutcomeRateLimited)

	require.Equal(t, 3.0, testutil.ToFloat64(m.expired))
	require.Equal(t, 2.0, testutil.ToFloat64(m.premiumLapsed))
	require.Equal(t, 2.0, testutil.ToFloat64(m.reveals.WithLabelValues(RevealOutcomeRevealed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reveals.WithLabelValues(RevealOutcomeRateLimited)))
	require.Equal(t, 2, testutil.CollectAndCount(m.reveals))
}

func TestListingMetricsNilSafe(t *testing.T) {
	var m *ListingMetrics
	m.AddExpired(1)
	m.IncReveal(RevealOutcomeError)

	unregistered := NewListingMetrics(nil)
	unregistered.AddExpired(1)
	unregistered.IncReveal(RevealOutcomeError)
}
