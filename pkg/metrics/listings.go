package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reveal outcomes recorded on phone_reveals_total.
const (
	RevealOutcomeRevealed    = "revealed"
	RevealOutcomeRateLimited = "rate_limited"
	RevealOutcomeForbidden   = "forbidden"
	RevealOutcomeNotFound    = "not_found"
	RevealOutcomeHidden      = "hidden"
	RevealOutcomeNoPhone     = "no_phone"
	RevealOutcomeError       = "error"
)

// ListingMetrics tracks lifecycle sweeps and contact reveals.
type ListingMetrics struct {
	expired       prometheus.Counter
	premiumLapsed prometheus.Counter
	reveals       *prometheus.CounterVec
}

// NewListingMetrics registers the listing metrics on the provided registerer.
func NewListingMetrics(reg prometheus.Registerer) *ListingMetrics {
	if reg == nil {
		return &ListingMetrics{}
	}
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listings_expired_total",
		Help: "Listings deactivated by the expiration sweep.",
	})
	premiumLapsed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listings_premium_lapsed_total",
		Help: "Listings whose premium flag was cleared after premium_until passed.",
	})
	reveals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "phone_reveals_total",
		Help: "Contact reveal attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(expired, premiumLapsed, reveals)
	return &ListingMetrics{
		expired:       expired,
		premiumLapsed: premiumLapsed,
		reveals:       reveals,
	}
}

// AddExpired increments the expired counter by n.
func (m *ListingMetrics) AddExpired(n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

// AddPremiumLapsed increments the lapsed premium counter by n.
func (m *ListingMetrics) AddPremiumLapsed(n int) {
	if m == nil || m.premiumLapsed == nil || n <= 0 {
		return
	}
	m.premiumLapsed.Add(float64(n))
}

// IncReveal records a reveal attempt with the given outcome.
func (m *ListingMetrics) IncReveal(outcome string) {
	if m == nil || m.reveals == nil {
		return
	}
	m.reveals.WithLabelValues(normalizeLabel(outcome)).Inc()
}
