package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitializeIsSingleton(t *testing.T) {
	assert.Same(t, Initialize(), Get())
}

func TestJobCounters(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("test_job", "success"))
	m.JobRunsTotal.WithLabelValues("test_job", Status(nil)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues("test_job", "success")))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "success", Status(nil))
	assert.Equal(t, "error", Status(errors.New("x")))
}
