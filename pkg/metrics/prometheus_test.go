package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordMessageSent("kafka", "AAPL")
	r.RecordMessageSent("kafka", "AAPL")
	r.RecordError("publish")
	r.RecordLastClose("AAPL", 187.25)
	r.RecordLatency("enrich", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka", "AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("publish")))
	assert.Equal(t, 187.25, testutil.ToFloat64(r.lastClose.WithLabelValues("AAPL")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
