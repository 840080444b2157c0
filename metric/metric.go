package metric

import (
	"time"

	"github.com/hermeznetwork/forge-node/log"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// Metric represents the metric type
	Metric string
)

const (
	namespaceError  = "error"
	namespaceEngine = "engine"
	namespaceAPI    = "api"

	// StatusOK labels an accepted operation
	StatusOK = "ok"
	// StatusRejected labels an operation that returned an error
	StatusRejected = "rejected"
)

var (
	// Errors errors count metric.
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceError,
			Name:      "errors",
			Help:      "",
		}, []string{"error"})

	// Operations executed operations count, by instruction and status
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceEngine,
			Name:      "operations_total",
			Help:      "",
		}, []string{"instruction", "status"})

	// OperationDuration duration of the execution of an operation
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceEngine,
			Name:      "operation_duration",
			Help:      "",
		}, []string{"instruction"})

	// SmeltOutcomes smelt attempts count, by outcome
	SmeltOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceEngine,
			Name:      "smelt_outcomes_total",
			Help:      "",
		}, []string{"outcome"})

	// IngotSupply total ingots minted by market
	IngotSupply = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespaceEngine,
			Name:      "ingot_supply",
			Help:      "",
		}, []string{"market"})

	// LastCheckpoint last StateDB checkpoint made
	LastCheckpoint = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceEngine,
			Name:      "last_checkpoint",
			Help:      "",
		})
)

func init() {
	if err := registerCollectors(); err != nil {
		log.Error(err)
	}
}
func registerCollectors() error {
	if err := registerCollector(Errors); err != nil {
		return err
	}
	if err := registerCollector(Operations); err != nil {
		return err
	}
	if err := registerCollector(OperationDuration); err != nil {
		return err
	}
	if err := registerCollector(SmeltOutcomes); err != nil {
		return err
	}
	if err := registerCollector(IngotSupply); err != nil {
		return err
	}
	return registerCollector(LastCheckpoint)
}

func registerCollector(collector prometheus.Collector) error {
	err := prometheus.Register(collector)
	if err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}

// MeasureDuration measure the method execution duration
// and save it into a histogram metric
func MeasureDuration(histogram *prometheus.HistogramVec, start time.Time, lvs ...string) {
	duration := time.Since(start)
	histogram.WithLabelValues(lvs...).Observe(float64(duration.Milliseconds()))
}

// CollectError collect the error message and increment
// the error count
func CollectError(err error) {
	Errors.With(map[string]string{"error": err.Error()}).Inc()
}
