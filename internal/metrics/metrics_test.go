package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := New()

	m.CountCommand("reboot", "OK_REBOOT")
	m.CountCommand("reboot", "OK_REBOOT")
	m.CountCommand("dmx-config", "ERROR")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("reboot", "OK_REBOOT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("dmx-config", "ERROR")))

	m.SetOnline(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceOnline))
	m.SetOnline(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DeviceOnline))

	m.ObserveRequest("/sys-info", 20*time.Millisecond, nil)
	m.ObserveRequest("/sys-info", time.Second, errors.New("timeout"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestErrors.WithLabelValues("/sys-info")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CountCommand("reboot", "OK")
		m.SetOnline(true)
		m.ObserveRequest("/system", time.Millisecond, nil)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CountCommand("save-dmx", "OK")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `netpins_panel_commands_total{command="save-dmx",status="OK"} 1`)
	assert.Contains(t, string(body), "netpins_panel_device_online 0")
}
