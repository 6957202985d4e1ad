package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	PaymentsTotal        *prometheus.CounterVec
	AccrualChargesTotal  prometheus.Counter
	AccrualRunsTotal     *prometheus.CounterVec
	LoansCreatedTotal    prometheus.Counter
	OverpaymentsReported prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lending_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_engine_payments_total",
				Help: "Total number of payment attempts by outcome.",
			},
			[]string{"status"},
		),
		AccrualChargesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lending_engine_accrual_charges_total",
				Help: "Total number of interest charges appended by accrual.",
			},
		),
		AccrualRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_engine_accrual_runs_total",
				Help: "Total number of accrual job runs by outcome.",
			},
			[]string{"status"},
		),
		LoansCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lending_engine_loans_created_total",
				Help: "Total number of loans successfully created.",
			},
		),
		OverpaymentsReported: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lending_engine_overpayments_total",
				Help: "Total number of payments that exceeded the amount owed.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordPayment(status string) {
	Business.PaymentsTotal.WithLabelValues(status).Inc()
}

func RecordAccrualCharges(n int) {
	Business.AccrualChargesTotal.Add(float64(n))
}

func RecordAccrualRun(status string) {
	Business.AccrualRunsTotal.WithLabelValues(status).Inc()
}

func RecordLoanCreated() {
	Business.LoansCreatedTotal.Inc()
}

func RecordOverpayment() {
	Business.OverpaymentsReported.Inc()
}
