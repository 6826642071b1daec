// Package metrics exposes sealcfg activity as Prometheus counters.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cipher outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	loadsTotal    *prometheus.CounterVec
	flushesTotal  *prometheus.CounterVec
	keypairsTotal *prometheus.CounterVec
	cipherTotal   *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers every counter with the default registry. Calling it
// more than once is safe.
func InitMetrics() {
	metricsOnce.Do(func() {
		loadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealcfg_loads_total",
				Help: "Configuration values loaded into the cache",
			},
			[]string{"class", "outcome"},
		)

		flushesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealcfg_flushes_total",
				Help: "Configuration values written to disk",
			},
			[]string{"class", "outcome"},
		)

		keypairsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealcfg_keypair_resolutions_total",
				Help: "Namespace keypairs loaded from or generated into the secret manager",
			},
			[]string{"outcome"},
		)

		cipherTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sealcfg_cipher_operations_total",
				Help: "Encrypt and decrypt operations on secret values",
			},
			[]string{"op", "outcome"},
		)

		metricsRegistered = true
	})
}

// Recorder implements the sealcfg, keys and persist recorder interfaces on
// top of the registered counters.
type Recorder struct{}

// NewRecorder registers the counters if needed and returns a Recorder.
func NewRecorder() *Recorder {
	InitMetrics()
	return &Recorder{}
}

// RecordLoad counts a cache load.
func (r *Recorder) RecordLoad(class, outcome string) {
	if !metricsRegistered {
		return
	}
	loadsTotal.WithLabelValues(class, outcome).Inc()
}

// RecordFlush counts a write of a cached value.
func (r *Recorder) RecordFlush(class, outcome string) {
	if !metricsRegistered {
		return
	}
	flushesTotal.WithLabelValues(class, outcome).Inc()
}

// RecordKeypair counts a keypair resolution.
func (r *Recorder) RecordKeypair(outcome string) {
	if !metricsRegistered {
		return
	}
	keypairsTotal.WithLabelValues(outcome).Inc()
}

// RecordCipher counts an encrypt or decrypt operation.
func (r *Recorder) RecordCipher(op string, err error) {
	if !metricsRegistered {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	cipherTotal.WithLabelValues(op, outcome).Inc()
}

// LoadsTotal returns the load counter for testing.
func LoadsTotal() *prometheus.CounterVec {
	return loadsTotal
}

// FlushesTotal returns the flush counter for testing.
func FlushesTotal() *prometheus.CounterVec {
	return flushesTotal
}

// KeypairsTotal returns the keypair counter for testing.
func KeypairsTotal() *prometheus.CounterVec {
	return keypairsTotal
}

// CipherTotal returns the cipher counter for testing.
func CipherTotal() *prometheus.CounterVec {
	return cipherTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}

// Sample is one counter value with its labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Snapshot gathers every sealcfg counter from the default registry.
func Snapshot() ([]Sample, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, family := range families {
		switch family.GetName() {
		case "sealcfg_loads_total", "sealcfg_flushes_total",
			"sealcfg_keypair_resolutions_total", "sealcfg_cipher_operations_total":
		default:
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			samples = append(samples, Sample{
				Name:   family.GetName(),
				Labels: labels,
				Value:  m.GetCounter().GetValue(),
			})
		}
	}
	return samples, nil
}
