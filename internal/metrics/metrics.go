// Package metrics exposes Prometheus collectors for the vendor gateway,
// the quota counter and the polled home snapshot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

const namespace = "tadox"

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op sink.
type Metrics struct {
	registry        *prometheus.Registry
	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	quotaCalls      prometheus.Gauge
	quotaRemaining  prometheus.Gauge
	quotaLimit      prometheus.Gauge
	pollCycles      *prometheus.CounterVec
	staleSections   *prometheus.CounterVec
	pollInterval    prometheus.Gauge
	roomTemperature *prometheus.GaugeVec
	roomTarget      *prometheus.GaugeVec
	roomHumidity    *prometheus.GaugeVec
	roomHeating     *prometheus.GaugeVec
	deviceBattery   *prometheus.GaugeVec
	deviceConnected *prometheus.GaugeVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Vendor API requests by operation and status.",
		}, []string{"operation", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Vendor API request durations by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		quotaCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_calls_today",
			Help:      "Requests counted in the current quota window.",
		}),
		quotaRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Requests remaining in the current quota window.",
		}),
		quotaLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_limit",
			Help:      "Daily request quota.",
		}),
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		staleSections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_stale_sections_total",
			Help:      "Optional snapshot sections that kept their previous value.",
		}, []string{"section"}),
		pollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_interval_seconds",
			Help:      "Effective poll interval.",
		}),
		roomTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_temperature_celsius",
			Help:      "Measured room temperature.",
		}, []string{"room"}),
		roomTarget: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_target_temperature_celsius",
			Help:      "Room setpoint.",
		}, []string{"room"}),
		roomHumidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_humidity_percent",
			Help:      "Measured room humidity.",
		}, []string{"room"}),
		roomHeating: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_heating_power_percent",
			Help:      "Room heating power.",
		}, []string{"room"}),
		deviceBattery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_battery_low",
			Help:      "1 when the device reports a low battery.",
		}, []string{"serial", "type"}),
		deviceConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connected",
			Help:      "1 when the device is connected.",
		}, []string{"serial", "type"}),
	}

	m.registry.MustRegister(
		m.apiRequests,
		m.apiDuration,
		m.quotaCalls,
		m.quotaRemaining,
		m.quotaLimit,
		m.pollCycles,
		m.staleSections,
		m.pollInterval,
		m.roomTemperature,
		m.roomTarget,
		m.roomHumidity,
		m.roomHeating,
		m.deviceBattery,
		m.deviceConnected,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAPICall records one vendor request. A zero status means the request
// never received a response.
func (m *Metrics) ObserveAPICall(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.apiRequests.WithLabelValues(operation, label).Inc()
	m.apiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetQuota publishes the quota counters.
func (m *Metrics) SetQuota(state models.QuotaState, limit, remaining int) {
	if m == nil {
		return
	}
	m.quotaCalls.Set(float64(state.CallsToday))
	m.quotaLimit.Set(float64(limit))
	m.quotaRemaining.Set(float64(remaining))
}

// ObserveCycle counts a completed or failed poll cycle.
func (m *Metrics) ObserveCycle(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.pollCycles.WithLabelValues(result).Inc()
}

// SetPollInterval publishes the effective poll interval.
func (m *Metrics) SetPollInterval(d time.Duration) {
	if m == nil {
		return
	}
	m.pollInterval.Set(d.Seconds())
}

// ObserveSnapshot publishes the per-room and per-device gauges.
func (m *Metrics) ObserveSnapshot(s *models.Snapshot) {
	if m == nil || s == nil {
		return
	}

	for _, section := range s.Stale {
		m.staleSections.WithLabelValues(section).Inc()
	}

	m.roomTemperature.Reset()
	m.roomTarget.Reset()
	m.roomHumidity.Reset()
	m.roomHeating.Reset()
	for _, r := range s.Rooms {
		name := r.Name
		if name == "" {
			name = strconv.Itoa(r.ID)
		}
		if r.CurrentTemperature != nil {
			m.roomTemperature.WithLabelValues(name).Set(*r.CurrentTemperature)
		}
		if r.TargetTemperature != nil {
			m.roomTarget.WithLabelValues(name).Set(*r.TargetTemperature)
		}
		if r.Humidity != nil {
			m.roomHumidity.WithLabelValues(name).Set(*r.Humidity)
		}
		m.roomHeating.WithLabelValues(name).Set(float64(r.HeatingPowerPercent))
	}

	m.deviceBattery.Reset()
	m.deviceConnected.Reset()
	for _, d := range s.Devices {
		m.deviceBattery.WithLabelValues(d.SerialNumber, d.Type).Set(boolFloat(d.LowBattery()))
		m.deviceConnected.WithLabelValues(d.SerialNumber, d.Type).Set(boolFloat(d.Connected()))
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
