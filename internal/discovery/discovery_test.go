package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeartbeat(t *testing.T) {
	hb, err := ParseHeartbeat([]byte(`{"uptime":125000,"firmwareVersion":"netpins-1.1.3","ip":"10.0.0.7","mac":"aa:bb:cc:dd:ee:ff"}`))
	require.NoError(t, err)
	assert.Equal(t, "netpins-1.1.3", hb.FirmwareVersion)
	assert.Equal(t, 125*time.Second, hb.Uptime.Duration())

	_, err = ParseHeartbeat([]byte(`{"uptime":1}`))
	assert.Error(t, err)
	_, err = ParseHeartbeat([]byte(`not json`))
	assert.Error(t, err)
}

func TestRegistryExpires(t *testing.T) {
	var count int
	r := NewRegistry(time.Minute, func(n int) { count = n })
	now := time.Now()

	r.Observe(Heartbeat{MAC: "bb", IP: "10.0.0.2"}, nil, now)
	r.Observe(Heartbeat{MAC: "aa"}, &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5824}, now.Add(30*time.Second))
	assert.Equal(t, 2, count)

	devs := r.Devices(now.Add(45 * time.Second))
	require.Len(t, devs, 2)
	assert.Equal(t, "AA", devs[0].MAC)
	assert.Equal(t, "10.0.0.1", devs[0].IP)

	devs = r.Devices(now.Add(75 * time.Second))
	require.Len(t, devs, 1)
	assert.Equal(t, "AA", devs[0].MAC)
	assert.Equal(t, 1, count)
}

func TestListenerReceivesHeartbeats(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	l, err := Listen("127.0.0.1:0", r, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`garbage`))
	require.NoError(t, err)
	_, err = conn.Write([]byte(`{"uptime":"5000","firmwareVersion":"netpins-1.1.3","ip":"","mac":"01:02:03:04:05:06"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(r.Devices(time.Now())) == 1 }, time.Second, 5*time.Millisecond)
	d := r.Devices(time.Now())[0]
	assert.Equal(t, "127.0.0.1", d.IP)
	assert.Equal(t, 5*time.Second, d.Uptime)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
