package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	Register(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestObserveState(t *testing.T) {
	ObserveState(3, 2, 1, 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(framesAvailable))
	assert.Equal(t, 2.0, testutil.ToFloat64(framesLeased))
	assert.Equal(t, 1.0, testutil.ToFloat64(framesCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(activeLeases))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(framesReclaimed)
	RecordReclaim(4)
	assert.Equal(t, before+4, testutil.ToFloat64(framesReclaimed))

	beforeNoWork := testutil.ToFloat64(noWorkResponses.WithLabelValues("request_task"))
	RecordNoWork("request_task")
	assert.Equal(t, beforeNoWork+1, testutil.ToFloat64(noWorkResponses.WithLabelValues("request_task")))

	beforeFailed := testutil.ToFloat64(framesSubmitted.WithLabelValues("persistence_failed"))
	RecordFrameSubmitted("persistence_failed")
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(framesSubmitted.WithLabelValues("persistence_failed")))
}

func TestObserveRequest(t *testing.T) {
	ObserveRequest("PUT", "/tasks", 200, 0)
	ObserveRequest("PUT", "/tasks", 200, 0)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(requestDuration), 1)
}
