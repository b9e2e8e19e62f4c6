package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	registerErr  error
	shared       *Social
)

// Social agrupa las métricas del núcleo de identidades sociales.
type Social struct {
	callbacksTotal *prometheus.CounterVec
	unlinksTotal   *prometheus.CounterVec
	writesTotal    *prometheus.CounterVec
}

// Register inicializa y registra las métricas una sola vez.
// Con registry nil usa el registerer default de prometheus.
func Register(registry prometheus.Registerer) (*Social, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	registerOnce.Do(func() {
		s := &Social{
			callbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "social_callbacks_total",
				Help: "Callbacks OAuth procesados, por provider, flujo y resultado",
			}, []string{"provider", "flow", "outcome"}),

			unlinksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "social_unlinks_total",
				Help: "Identidades desvinculadas, por provider",
			}, []string{"provider"}),

			writesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "social_identity_writes_total",
				Help: "Escrituras al store de identidades, por operación",
			}, []string{"op"}),
		}

		for _, c := range []prometheus.Collector{s.callbacksTotal, s.unlinksTotal, s.writesTotal} {
			if err := registry.Register(c); err != nil {
				registerErr = err
				return
			}
		}
		shared = s
	})

	return shared, registerErr
}

// Callback registra el resultado de un callback.
func (s *Social) Callback(provider, flow, outcome string) {
	if s == nil {
		return
	}
	s.callbacksTotal.WithLabelValues(provider, flow, outcome).Inc()
}

// Unlink registra una desvinculación efectiva.
func (s *Social) Unlink(provider string) {
	if s == nil {
		return
	}
	s.unlinksTotal.WithLabelValues(provider).Inc()
}

// Write registra una escritura al store ("create" | "update" | "delete").
func (s *Social) Write(op string) {
	if s == nil {
		return
	}
	s.writesTotal.WithLabelValues(op).Inc()
}
