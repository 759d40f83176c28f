package algod

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	beaker "github.com/branched-services/go-beaker"
)

const metricsNamespace = "beaker"

// MeteredCompiler records the count, outcome and latency of compiles.
type MeteredCompiler struct {
	next     beaker.Compiler
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

var _ beaker.Compiler = (*MeteredCompiler)(nil)

// NewMeteredCompiler wraps next and registers its metrics with reg.
// Metrics already registered by an earlier wrapper are shared.
func NewMeteredCompiler(next beaker.Compiler, reg prometheus.Registerer) (*MeteredCompiler, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "compile_requests_total",
		Help:      "Number of TEAL compile requests by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "compile_duration_seconds",
		Help:      "Latency of TEAL compile requests.",
		Buckets:   prometheus.DefBuckets,
	})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &MeteredCompiler{next: next, requests: requests, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Compile forwards to the wrapped compiler.
func (m *MeteredCompiler) Compile(ctx context.Context, source string) (*beaker.CompileResult, error) {
	start := time.Now()
	res, err := m.next.Compile(ctx, source)
	m.duration.Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(result).Inc()
	return res, err
}
