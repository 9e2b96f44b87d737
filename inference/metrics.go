package inference

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/firefoxdp/firefoxdp"
)

// Outcomes of a privileged command, as recorded in the commands metric.
const (
	outcomeSuccess       = "success"
	outcomeCommandError  = "command_error"
	outcomeProtocolError = "protocol_error"
	outcomeError         = "error"
)

// metrics are the collectors of a Client registered with WithMetrics.
type metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// WithMetrics registers the Client's command metrics with reg:
// firefox_ml_commands_total, by command and outcome, and
// firefox_ml_command_duration_seconds, by command.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firefox_ml",
			Name:      "commands_total",
			Help:      "Privileged commands run in Firefox, by outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "firefox_ml",
			Name:      "command_duration_seconds",
			Help:      "Time spent running privileged commands in Firefox.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		}, []string{"command"}),
	}
	var err error
	if m.commands, err = register(reg, m.commands); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers col, reusing the collector already registered by
// another Client.
func register[C prometheus.Collector](reg prometheus.Registerer, col C) (C, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

func outcome(err error) string {
	var cerr *firefoxdp.CommandError
	var perr *firefoxdp.ProtocolError
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.As(err, &cerr):
		return outcomeCommandError
	case errors.As(err, &perr):
		return outcomeProtocolError
	}
	return outcomeError
}

// privileged is firefoxdp.Privileged, recorded in the Client's metrics.
func (c *Client) privileged(command string, res interface{}, args ...interface{}) firefoxdp.Action {
	a := firefoxdp.Privileged(command, res, args...)
	if c.metrics == nil {
		return a
	}
	return firefoxdp.ActionFunc(func(ctx context.Context) error {
		start := time.Now()
		err := a.Do(ctx)
		c.metrics.duration.WithLabelValues(command).Observe(time.Since(start).Seconds())
		c.metrics.commands.WithLabelValues(command, outcome(err)).Inc()
		return err
	})
}
