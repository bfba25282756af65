package codec

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	kindRow   = "row"
	kindArray = "array"
	kindMap   = "map"
)

var (
	specializationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novarow_specializations_total",
			Help: "Types compiled into codecs, by outcome",
		},
		[]string{"status"},
	)

	encodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novarow_encodes_total",
			Help: "Values encoded, by top-level layout and outcome",
		},
		[]string{"kind", "status"},
	)

	decodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novarow_decodes_total",
			Help: "Values decoded, by top-level layout and outcome",
		},
		[]string{"kind", "status"},
	)

	encodedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novarow_encoded_bytes_total",
			Help: "Bytes produced by encoders",
		},
		[]string{"kind"},
	)
)

func observe(c *prometheus.CounterVec, kind string, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	c.WithLabelValues(kind, status).Inc()
}
