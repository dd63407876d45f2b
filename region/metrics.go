package region

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skovalik/cognograph/metric"
)

// storeMetrics tracks region counts and membership table size. A nil
// receiver means metrics are disabled and every method is a no-op.
type storeMetrics struct {
	regions    prometheus.Gauge
	membership prometheus.Gauge
}

func newStoreMetrics(registry *metric.MetricsRegistry) *storeMetrics {
	if registry == nil {
		return nil
	}

	m := &storeMetrics{
		regions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cognograph_regions_total",
			Help: "Current number of regions in the store",
		}),
		membership: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cognograph_region_membership_entries",
			Help: "Current number of node-in-region membership entries",
		}),
	}

	if err := registry.RegisterGauge("region-store", "regions_total", m.regions); err != nil {
		m.regions = nil
	}
	if err := registry.RegisterGauge("region-store", "membership_entries", m.membership); err != nil {
		m.membership = nil
	}

	return m
}

func (m *storeMetrics) updateCounts(regions, membershipEntries int) {
	if m == nil {
		return
	}
	if m.regions != nil {
		m.regions.Set(float64(regions))
	}
	if m.membership != nil {
		m.membership.Set(float64(membershipEntries))
	}
}
