package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the domain counters of the print protocol. A nil *Metrics records nothing.
type Metrics struct {
	submitted  prometheus.Counter
	issued     prometheus.Counter
	verify     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	expired    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "documents_submitted_total",
			Help: "Documents accepted by intake.",
		}),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "One-time codes issued.",
		}),
		verify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_verify_total",
			Help: "Code verification attempts by result.",
		}, []string{"result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_deliveries_total",
			Help: "Content fetches through access grants by result.",
		}, []string{"result"}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "documents_expired_total",
			Help: "Documents expired by the sweeper by previous status.",
		}, []string{"from"}),
	}
	for _, c := range []prometheus.Collector{m.submitted, m.issued, m.verify, m.deliveries, m.expired} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) documentSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) codeIssued() {
	if m != nil {
		m.issued.Inc()
	}
}

func (m *Metrics) verifyResult(result string) {
	if m != nil {
		m.verify.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) delivery(result string) {
	if m != nil {
		m.deliveries.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) documentExpired(from string) {
	if m != nil {
		m.expired.WithLabelValues(from).Inc()
	}
}
