// Package listener receives telemetry datagrams and feeds them to the state store and the
// channel mapper.
package listener

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flightbridge/internal/device"
	"github.com/flightbridge/internal/logging"
	"github.com/flightbridge/internal/mapper"
	"github.com/flightbridge/internal/metrics"
	"github.com/flightbridge/internal/telemetry"
)

var (
	// ErrBindFailed is returned by Start when the socket cannot be bound
	ErrBindFailed = errors.New("bind failed")

	// ErrAlreadyRunning is returned by Start on a listener that is not stopped
	ErrAlreadyRunning = errors.New("listener already running")
)

// State is the listener lifecycle state
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Defaults used when Config leaves them zero
const (
	DefaultReceiveTimeout = 500 * time.Millisecond
	DefaultBufferBytes    = 64 * 1024
)

// Config wires a listener to its collaborators
type Config struct {
	Store   *telemetry.Store
	Table   mapper.Table
	Output  mapper.Output // nil runs ingestion only
	Metrics *metrics.Metrics
	Logger  *logging.Logger

	Host           string // bind address, empty for all interfaces
	ReceiveTimeout time.Duration
	BufferBytes    int
}

// Listener owns the telemetry socket and its receive goroutine.
// Packets are processed one at a time, in arrival order, on that goroutine.
type Listener struct {
	mu       sync.Mutex
	state    State
	conn     *net.UDPConn
	stopChan chan struct{}
	wg       sync.WaitGroup

	store   *telemetry.Store
	table   mapper.Table
	output  mapper.Output
	metrics *metrics.Metrics
	log     *logging.Logger

	host           string
	receiveTimeout time.Duration
	bufferBytes    int

	packets    atomic.Uint64
	outputLost bool // receive goroutine only
}

// New creates a stopped listener
func New(cfg Config) *Listener {
	l := &Listener{
		store:          cfg.Store,
		table:          cfg.Table,
		output:         cfg.Output,
		metrics:        cfg.Metrics,
		log:            cfg.Logger,
		host:           cfg.Host,
		receiveTimeout: cfg.ReceiveTimeout,
		bufferBytes:    cfg.BufferBytes,
	}
	if l.metrics == nil {
		l.metrics = metrics.New()
	}
	if l.log == nil {
		l.log = logging.Discard()
	}
	if l.receiveTimeout <= 0 {
		l.receiveTimeout = DefaultReceiveTimeout
	}
	if l.bufferBytes <= 0 {
		l.bufferBytes = DefaultBufferBytes
	}
	return l
}

// Start binds the UDP port and starts the receive goroutine. On bind failure the listener stays
// stopped and the error wraps ErrBindFailed.
func (l *Listener) Start(port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateStopped {
		return ErrAlreadyRunning
	}
	l.state = StateStarting

	addr := &net.UDPAddr{Port: port}
	if l.host != "" {
		addr.IP = net.ParseIP(l.host)
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		l.state = StateStopped
		l.log.Errorf("Failed to start UDP connection. Port: %d. %v", port, err)
		return fmt.Errorf("%w: port %d: %v", ErrBindFailed, port, err)
	}

	l.conn = conn
	l.stopChan = make(chan struct{})
	l.outputLost = false
	l.state = StateRunning
	metrics.SetBool(l.metrics.ListenerRunning, true)

	l.wg.Add(1)
	go l.receiveLoop(conn, l.stopChan)

	l.log.Infof("UDP connection started on %s", conn.LocalAddr())
	return nil
}

// Stop signals the receive goroutine, closes the socket to unblock a pending receive and waits
// for the goroutine to exit. Calling Stop on a listener that is not running does nothing.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return nil
	}
	l.state = StateStopping
	close(l.stopChan)
	conn := l.conn
	l.mu.Unlock()

	closeErr := conn.Close()
	l.wg.Wait()

	l.mu.Lock()
	l.conn = nil
	l.state = StateStopped
	l.mu.Unlock()

	l.log.Infof("UDP connection stopped")
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return closeErr
	}
	return nil
}

// State returns the current lifecycle state
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsListening reports whether the receive goroutine is running
func (l *Listener) IsListening() bool {
	return l.State() == StateRunning
}

// Addr returns the bound address while running, nil otherwise
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Packets returns the number of datagrams received since creation
func (l *Listener) Packets() uint64 {
	return l.packets.Load()
}

// receiveLoop runs until stop is closed. Timeouts re-loop; other socket errors are logged and the
// loop continues, except for a socket closed underneath it.
func (l *Listener) receiveLoop(conn *net.UDPConn, stop <-chan struct{}) {
	defer l.wg.Done()
	defer metrics.SetBool(l.metrics.ListenerRunning, false)

	buffer := make([]byte, l.bufferBytes)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(l.receiveTimeout)); err != nil && !errors.Is(err, net.ErrClosed) {
			l.log.Errorf("UDP Listener Error: set deadline: %v", err)
		}

		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			l.metrics.ReceiveErrors.Inc()
			if errors.Is(err, net.ErrClosed) {
				l.log.Errorf("UDP Listener Error: socket closed unexpectedly, listener exiting")
				l.markStopped(conn)
				return
			}
			l.log.Errorf("UDP Listener Error: %v", err)
			continue
		}

		l.handlePacket(buffer[:n])
	}
}

// markStopped records an exit that was not requested through Stop
func (l *Listener) markStopped(conn *net.UDPConn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == conn && l.state == StateRunning {
		l.conn = nil
		l.state = StateStopped
	}
}

// handlePacket decodes one datagram, applies its fields to the store and then runs the mapper once
func (l *Listener) handlePacket(payload []byte) {
	start := time.Now()
	l.packets.Add(1)
	l.metrics.PacketsReceived.Inc()

	fields, err := DecodePacket(payload)
	if err != nil {
		// noise and partial packets are common; counting them is enough
		l.metrics.PacketsMalformed.Inc()
		return
	}

	applied := 0
	for _, f := range fields {
		if !l.store.Known(f.Name) {
			l.metrics.UnknownKeys.Inc()
			continue
		}
		if err := l.store.Set(f.Name, f.Value); err != nil {
			l.metrics.TypeMismatches.Inc()
			l.log.Debugf("Skipping value: %v", err)
			continue
		}
		applied++
	}

	if applied > 0 {
		l.metrics.ValuesApplied.Add(float64(applied))
		l.metrics.LastUpdate.Set(float64(l.store.LastUpdate().UnixNano()) / 1e9)
	}

	l.applyMapper()
	l.metrics.PacketLatency.Observe(time.Since(start).Seconds())
}

func (l *Listener) applyMapper() {
	if l.output == nil || l.outputLost {
		return
	}

	res, err := l.table.Apply(l.store, l.output)
	l.metrics.AxisWrites.Add(float64(res.Written))
	if err == nil {
		return
	}

	l.metrics.AxisWriteFailures.Inc()
	if errors.Is(err, device.ErrNotOwned) {
		// no re-acquisition here: stop writing until the bridge is restarted
		l.outputLost = true
		metrics.SetBool(l.metrics.DeviceOwned, false)
		l.log.Warnf("Device output disabled: %v", err)
		return
	}
	l.log.Debugf("Axis write failed: %v", err)
}
