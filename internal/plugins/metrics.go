package plugins

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registrations    *prometheus.CounterVec
	toolsUnavailable *prometheus.CounterVec
}

// newMetrics creates the host's counters and registers them with reg
// when it is non-nil. Registering twice on the same registry reuses the
// existing collectors.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "text2llm_plugin_registrations_total",
				Help: "Plugin registration outcomes by final state",
			},
			[]string{"state"},
		),
		toolsUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "text2llm_plugin_tools_unavailable_total",
				Help: "Tool provisions that yielded no tool, by reason",
			},
			[]string{"reason"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.registrations, err = register(reg, m.registrations); err != nil {
		return nil, err
	}
	if m.toolsUnavailable, err = register(reg, m.toolsUnavailable); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
