package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorWithRegistry(t *testing.T) {
	collector := NewCollectorWithRegistry(prometheus.NewRegistry())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.messagesReceived)
	assert.NotNil(t, collector.admissionsTotal)
	assert.NotNil(t, collector.rejectionsTotal)
	assert.NotNil(t, collector.generationsTotal)
	assert.NotNil(t, collector.generationDuration)
	assert.NotNil(t, collector.creditsDebited)
	assert.NotNil(t, collector.creditsGranted)
}

func TestCollectorCounters(t *testing.T) {
	collector := NewCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordMessage("text")
	collector.RecordMessage("text")
	collector.RecordMessage("voice")
	collector.RecordAdmission()
	collector.RecordRejection("busy")
	collector.RecordRejection("cooldown")
	collector.RecordGeneration("success", 1.5)
	collector.RecordGeneration("failure", 0.2)
	collector.RecordDebit(1)
	collector.RecordGrant("reward", 2)
	collector.RecordGrant("topup", 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.messagesReceived.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.messagesReceived.WithLabelValues("voice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.admissionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.rejectionsTotal.WithLabelValues("busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.rejectionsTotal.WithLabelValues("cooldown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.generationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.generationsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.creditsDebited))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.creditsGranted.WithLabelValues("reward")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.creditsGranted.WithLabelValues("topup")))
}

func TestCollectorRegistersOnCustomRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollectorWithRegistry(registry)
	collector.RecordAdmission()

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
