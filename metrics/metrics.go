// Package metrics exposes the runtime's Prometheus instrumentation: tool
// server health/retry counters for the supervisor, and tool-use counters for
// inference strategies. Every method is safe to call on a nil receiver so
// callers can wire metrics optionally without littering nil checks.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Supervisor holds the tool-server-facing metrics.
type Supervisor struct {
	connectAttempts  *prometheus.CounterVec
	reconnectTotal   *prometheus.CounterVec
	callAttempts     *prometheus.CounterVec
	callRetries      *prometheus.CounterVec
	serverHealthy    *prometheus.GaugeVec
}

// NewSupervisor registers the supervisor's metrics on reg and returns the
// handle. Pass nil to get an unregistered handle usable only in tests.
func NewSupervisor(reg prometheus.Registerer) *Supervisor {
	s := &Supervisor{
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_toolserver_connect_attempts_total",
			Help: "Connection attempts per tool server, labeled by outcome.",
		}, []string{"server", "outcome"}),
		reconnectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_toolserver_reconnects_total",
			Help: "Reconnection attempts made by the reconciliation loop.",
		}, []string{"server"}),
		callAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_toolserver_call_attempts_total",
			Help: "Tool call attempts, labeled by outcome.",
		}, []string{"server", "tool", "outcome"}),
		callRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_toolserver_call_retries_total",
			Help: "Tool call retries beyond the first attempt.",
		}, []string{"server", "tool"}),
		serverHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "conductor_toolserver_healthy",
			Help: "1 if the server's last heartbeat is within the healthy window, else 0.",
		}, []string{"server"}),
	}
	if reg != nil {
		reg.MustRegister(s.connectAttempts, s.reconnectTotal, s.callAttempts, s.callRetries, s.serverHealthy)
	}
	return s
}

func (s *Supervisor) ObserveConnect(server string, ok bool) {
	if s == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	s.connectAttempts.WithLabelValues(server, outcome).Inc()
}

func (s *Supervisor) ObserveReconnect(server string) {
	if s == nil {
		return
	}
	s.reconnectTotal.WithLabelValues(server).Inc()
}

func (s *Supervisor) ObserveCall(server, tool string, attempt int, ok bool) {
	if s == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	s.callAttempts.WithLabelValues(server, tool, outcome).Inc()
	if attempt > 1 {
		s.callRetries.WithLabelValues(server, tool).Inc()
	}
}

func (s *Supervisor) SetHealthy(server string, healthy bool) {
	if s == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1.0
	}
	s.serverHealthy.WithLabelValues(server).Set(v)
}

// Strategy holds the strategy-facing metrics.
type Strategy struct {
	toolUses *prometheus.CounterVec
}

// NewStrategy registers the strategy's metrics on reg and returns the
// handle. Pass nil to get an unregistered handle usable only in tests.
func NewStrategy(reg prometheus.Registerer) *Strategy {
	s := &Strategy{
		toolUses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conductor_strategy_tool_uses_total",
			Help: "Tool invocations made by inference strategies, labeled by tool.",
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(s.toolUses)
	}
	return s
}

func (s *Strategy) ObserveToolUse(tool string) {
	if s == nil {
		return
	}
	s.toolUses.WithLabelValues(tool).Inc()
}
