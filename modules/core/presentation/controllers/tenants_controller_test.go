package controllers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/modules/core/services"
)

func TestMetricsResponse_CarriesRollingMetricsCounters(t *testing.T) {
	m := services.RollingMetrics{
		Window:              time.Hour,
		Requests:            int64(1) << 40,
		Failures:            7,
		Blocked:             3,
		CrossTenantAttempts: 2,
		AverageDuration:     250 * time.Millisecond,
	}

	resp := metricsResponse{
		WindowSeconds:       m.Window.Seconds(),
		Requests:            m.Requests,
		Failures:            m.Failures,
		Blocked:             m.Blocked,
		CrossTenantAttempts: m.CrossTenantAttempts,
		AverageDurationMS:   float64(m.AverageDuration.Milliseconds()),
	}

	raw, err := json.Marshal(&resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, float64(m.Requests), decoded["requests"], "counters must survive serialization without truncation")
	require.Equal(t, float64(3600), decoded["window_seconds"])
	require.Equal(t, float64(250), decoded["average_duration_ms"])
}
