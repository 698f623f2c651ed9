package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordToolExecution(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordToolExecution("native", "echo", "success", 12*time.Millisecond)

	count := testutil.ToFloat64(m.ToolExecutionTotal.WithLabelValues("native", "echo", "success"))
	require.Equal(t, float64(1), count)
}

func TestRegimeSwitchOnlyCountsActualSwitch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRegimeSwitch("General", "General", time.Millisecond)
	m.RecordRegimeSwitch("General", "Medical", time.Millisecond)

	require.Equal(t, float64(0), testutil.ToFloat64(m.RegimeSwitchTotal.WithLabelValues("General", "General")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RegimeSwitchTotal.WithLabelValues("General", "Medical")))
}
