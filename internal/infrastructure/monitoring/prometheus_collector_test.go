package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorObservesOperationLatency(t *testing.T) {
	c := newPrometheusCollector(prometheus.NewRegistry())

	c.OperationObserved("join_stream", 5*time.Millisecond)
	c.OperationObserved("join_stream", 8*time.Millisecond)
	c.OperationObserved("produce", time.Millisecond)

	// One histogram child per observed operation label.
	assert.Equal(t, 2, testutil.CollectAndCount(c.operationDuration, "streamcast_operation_duration_seconds"))
}

func TestCollectorGaugesTrackLifecycle(t *testing.T) {
	c := newPrometheusCollector(prometheus.NewRegistry())

	c.RoomOpened()
	c.RoomOpened()
	c.RoomClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.roomsActive))

	c.ViewerJoined()
	c.ViewerLeft()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.viewersConnected))

	c.SignalConnected()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.signalConnections))
}
