package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// AttendanceRecordsTotal counts bulk attendance records by outcome (upserted, rejected).
	AttendanceRecordsTotal *prometheus.CounterVec
	// BillsGeneratedTotal counts bill upserts by outcome (created, updated).
	BillsGeneratedTotal *prometheus.CounterVec
	// BillGenerationDuration records the wall time of a generation run in milliseconds.
	BillGenerationDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises the attendance and billing collectors. Until it
// runs the package-level collectors stay nil and callers skip recording.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		AttendanceRecordsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_records_total",
			Help:      "Bulk attendance records processed, by outcome.",
		}, []string{"result"}))
		BillsGeneratedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_generated_total",
			Help:      "Bills written by generation runs, by outcome.",
		}, []string{"result"}))
		BillGenerationDuration = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bill_generation_duration_ms",
			Help:      "Duration of bill generation runs in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}))
	})
}
