package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterMetrics(reg) })
	assert.Panics(t, func() { RegisterMetrics(reg) }, "second registration must fail")
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(LifecycleOperations.WithLabelValues("init", OutcomeSuccess))

	RecordOperation("init", OutcomeSuccess, 5*time.Millisecond)

	after := testutil.ToFloat64(LifecycleOperations.WithLabelValues("init", OutcomeSuccess))
	assert.Equal(t, before+1, after)
}

func TestRecordUpload(t *testing.T) {
	before := testutil.ToFloat64(AssetUploadBytes.WithLabelValues("portrait"))

	RecordUpload("portrait", 2048)

	assert.Equal(t, before+2048, testutil.ToFloat64(AssetUploadBytes.WithLabelValues("portrait")))
}
