package listener

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightbridge/internal/device"
	"github.com/flightbridge/internal/mapper"
	"github.com/flightbridge/internal/metrics"
	"github.com/flightbridge/internal/telemetry"
)

const waitFor = 2 * time.Second

func createTestStore(t *testing.T) *telemetry.Store {
	t.Helper()
	s, err := telemetry.NewStore(telemetry.DefaultSchema())
	require.NoError(t, err)
	return s
}

func createTestListener(t *testing.T, store *telemetry.Store, table mapper.Table, out mapper.Output) (*Listener, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	l := New(Config{
		Store:          store,
		Table:          table,
		Output:         out,
		Metrics:        m,
		Host:           "127.0.0.1",
		ReceiveTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, l.Start(0))
	t.Cleanup(func() { l.Stop() })
	return l, m
}

func send(t *testing.T, l *Listener, payload string) {
	t.Helper()
	conn, err := net.Dial("udp4", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
}

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []Field
		wantErr bool
	}{
		{"single field", `{"G_FORCE": 1.5}`, []Field{{"G_FORCE", json.Number("1.5")}}, false},
		{"keeps order", `{"B": true, "A": 2}`, []Field{{"B", true}, {"A", json.Number("2")}}, false},
		{"empty object", `{}`, nil, false},
		{"nul padding", "{\"A\":1}\x00\x00\x00", []Field{{"A", json.Number("1")}}, false},
		{"surrounding whitespace", "\r\n {\"A\":1} \n", []Field{{"A", json.Number("1")}}, false},
		{"empty payload", "", nil, true},
		{"array", `[1, 2]`, nil, true},
		{"bare number", `42`, nil, true},
		{"truncated", `{"A": 1`, nil, true},
		{"trailing garbage", `{"A": 1} {"B": 2}`, nil, true},
		{"plain text", `hello`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePacket([]byte(tt.payload))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedPacket))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListenerDrivesAxis(t *testing.T) {
	store := createTestStore(t)
	driver := device.NewVirtualDriver()
	driver.AddDevice(1, device.AxisX, device.AxisY, device.AxisZ)
	session, err := device.Acquire(driver, 1, nil)
	require.NoError(t, err)

	table := mapper.Table{{Channel: "ACCELERATION_BODY_X", Axis: device.AxisX, Scale: 500, Offset: 16383}}
	l, m := createTestListener(t, store, table, session)
	assert.Equal(t, StateRunning, l.State())

	send(t, l, `{"ACCELERATION_BODY_X": 1.0}`)

	assert.Eventually(t, func() bool {
		x, _ := driver.AxisValue(1, device.AxisX)
		return x == 16883
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, 1.0, store.Float("ACCELERATION_BODY_X"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AxisWrites))
}

func TestListenerSurvivesMalformedPacket(t *testing.T) {
	store := createTestStore(t)
	l, m := createTestListener(t, store, nil, nil)

	send(t, l, `{"G_FORCE": 3`)
	send(t, l, `not json at all`)
	send(t, l, `{"G_FORCE": 2.5}`)

	assert.Eventually(t, func() bool { return store.Float("G_FORCE") == 2.5 }, waitFor, 10*time.Millisecond)
	assert.True(t, l.IsListening())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsMalformed))
	assert.Equal(t, uint64(3), l.Packets())
}

func TestListenerTypeMismatchKeepsSiblings(t *testing.T) {
	store := createTestStore(t)
	l, m := createTestListener(t, store, nil, nil)

	send(t, l, `{"SIM_ON_GROUND": "banana", "PLANE_ALTITUDE": 3500, "NOT_A_CHANNEL": 1}`)

	assert.Eventually(t, func() bool { return store.Float("PLANE_ALTITUDE") == 3500 }, waitFor, 10*time.Millisecond)
	onGround, err := store.Get("SIM_ON_GROUND")
	require.NoError(t, err)
	assert.False(t, onGround.Bool())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TypeMismatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownKeys))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValuesApplied))
}

func TestListenerWithoutDeviceUpdatesStore(t *testing.T) {
	store := createTestStore(t)

	// device busy: the bridge runs with no session at all
	driver := device.NewVirtualDriver()
	driver.AddDevice(1, device.AxisX)
	driver.SetStatus(1, device.StatusBusy)
	_, err := device.Acquire(driver, 1, nil)
	require.Error(t, err)

	table := mapper.Table{{Channel: "ACCELERATION_BODY_X", Axis: device.AxisX, Scale: 500, AutoCenter: true}}
	l, _ := createTestListener(t, store, table, nil)

	send(t, l, `{"ACCELERATION_BODY_X": -0.5}`)

	assert.Eventually(t, func() bool { return store.Float("ACCELERATION_BODY_X") == -0.5 }, waitFor, 10*time.Millisecond)
	assert.Empty(t, driver.Writes(1, device.AxisX))
}

func TestListenerStopsWritingAfterOwnershipLoss(t *testing.T) {
	store := createTestStore(t)
	driver := device.NewVirtualDriver()
	driver.AddDevice(1, device.AxisX)
	session, err := device.Acquire(driver, 1, nil)
	require.NoError(t, err)

	table := mapper.Table{{Channel: "G_FORCE", Axis: device.AxisX, Scale: 1000, Offset: 0}}
	l, m := createTestListener(t, store, table, session)

	send(t, l, `{"G_FORCE": 2}`)
	assert.Eventually(t, func() bool { return len(driver.Writes(1, device.AxisX)) == 1 }, waitFor, 10*time.Millisecond)

	// another feeder takes the device
	driver.SetStatus(1, device.StatusBusy)

	send(t, l, `{"G_FORCE": 3}`)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.AxisWriteFailures) == 1 }, waitFor, 10*time.Millisecond)

	send(t, l, `{"G_FORCE": 4}`)
	assert.Eventually(t, func() bool { return store.Float("G_FORCE") == 4 }, waitFor, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AxisWriteFailures))
	assert.Equal(t, []int32{2000}, driver.Writes(1, device.AxisX))
	assert.False(t, session.Owned())
}

func TestListenerStopIsIdempotent(t *testing.T) {
	l := New(Config{Store: createTestStore(t), Host: "127.0.0.1"})
	require.NoError(t, l.Start(0))

	start := time.Now()
	require.NoError(t, l.Stop())
	assert.Less(t, time.Since(start), DefaultReceiveTimeout+time.Second)
	assert.Equal(t, StateStopped, l.State())
	assert.Nil(t, l.Addr())

	require.NoError(t, l.Stop())
	assert.Equal(t, StateStopped, l.State())
}

func TestListenerStopBeforeStart(t *testing.T) {
	l := New(Config{Store: createTestStore(t)})
	assert.NoError(t, l.Stop())
	assert.Equal(t, StateStopped, l.State())
}

func TestListenerRestart(t *testing.T) {
	store := createTestStore(t)
	l := New(Config{Store: store, Host: "127.0.0.1", ReceiveTimeout: 50 * time.Millisecond})

	require.NoError(t, l.Start(0))
	require.NoError(t, l.Stop())
	require.NoError(t, l.Start(0))
	defer l.Stop()

	send(t, l, `{"VERTICAL_SPEED": 12}`)
	assert.Eventually(t, func() bool { return store.Float("VERTICAL_SPEED") == 12 }, waitFor, 10*time.Millisecond)
}

func TestListenerStartTwice(t *testing.T) {
	l, _ := createTestListener(t, createTestStore(t), nil, nil)
	assert.True(t, errors.Is(l.Start(0), ErrAlreadyRunning))
}

func TestListenerBindFailure(t *testing.T) {
	first, _ := createTestListener(t, createTestStore(t), nil, nil)
	port := first.Addr().(*net.UDPAddr).Port

	second := New(Config{Store: createTestStore(t), Host: "127.0.0.1"})
	err := second.Start(port)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBindFailed))
	assert.Equal(t, StateStopped, second.State())
	assert.False(t, second.IsListening())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "unknown", State(42).String())
}
