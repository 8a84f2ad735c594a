// Package bridge owns the telemetry store, the output device session, the ingestion listener and
// the host surface, and starts and stops them together.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flightbridge/internal/config"
	"github.com/flightbridge/internal/device"
	"github.com/flightbridge/internal/host"
	"github.com/flightbridge/internal/listener"
	"github.com/flightbridge/internal/logging"
	"github.com/flightbridge/internal/mapper"
	"github.com/flightbridge/internal/metrics"
	"github.com/flightbridge/internal/telemetry"
)

// Bridge is the lifecycle controller
type Bridge struct {
	mu      sync.Mutex
	running bool

	cfg     *config.Config
	version string
	log     *logging.Logger
	metrics *metrics.Metrics

	store *telemetry.Store
	table mapper.Table

	driver    device.Driver
	session   *device.Session
	deviceErr error

	listener *listener.Listener
	host     *host.Server
	httpAddr string
}

// Option customises a Bridge
type Option func(*Bridge)

// WithDriver uses d instead of the driver named in the configuration
func WithDriver(d device.Driver) Option {
	return func(b *Bridge) { b.driver = d }
}

// WithLogger replaces the logger built from the configuration
func WithLogger(l *logging.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithHTTPAddr overrides the host server listen address
func WithHTTPAddr(addr string) Option {
	return func(b *Bridge) { b.httpAddr = addr }
}

// New builds the store and the mapping table. Nothing is opened until Start.
func New(cfg *config.Config, version string, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:      cfg,
		version:  version,
		metrics:  metrics.New(),
		httpAddr: fmt.Sprintf(":%d", cfg.Network.HTTP.Port),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logging.New(cfg.Logging)
	}

	store, err := telemetry.NewStore(telemetry.DefaultSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry store: %w", err)
	}
	b.store = store

	table, err := mapper.BuildTable(cfg.Mappings, store.Known)
	if err != nil {
		return nil, fmt.Errorf("invalid mappings: %w", err)
	}
	b.table = table

	return b, nil
}

// Start acquires the device, then starts the listener and the host server.
//
// A device that cannot be acquired disables output and the bridge runs ingestion-only, unless
// device.required is set, in which case Start fails. A UDP port that cannot be bound is logged and
// leaves the listener stopped; the host surface still starts.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	if err := b.openDevice(); err != nil {
		return err
	}

	var output mapper.Output
	if b.session != nil {
		output = b.session
	}

	b.listener = listener.New(listener.Config{
		Store:          b.store,
		Table:          b.table,
		Output:         output,
		Metrics:        b.metrics,
		Logger:         b.log.WithPrefix("udp"),
		ReceiveTimeout: b.cfg.Network.UDP.ReceiveTimeout(),
		BufferBytes:    b.cfg.Network.UDP.BufferBytes,
	})
	if err := b.listener.Start(b.cfg.Network.UDP.Port); err != nil {
		b.log.Errorf("Telemetry listener not started: %v", err)
	}

	if b.cfg.Network.HTTP.Enabled {
		if err := b.startHost(); err != nil {
			b.log.Errorf("Host server not started: %v", err)
		}
	}

	b.running = true
	b.log.Infof("Bridge started (version %s)", b.version)
	return nil
}

// openDevice acquires the configured device and applies the availability policy
func (b *Bridge) openDevice() error {
	b.session, b.deviceErr = nil, nil
	id := b.cfg.Device.ID

	driver := b.driver
	if driver == nil {
		switch b.cfg.Device.Driver {
		case config.DriverNone:
			b.log.Infof("Device output disabled by configuration")
			metrics.SetBool(b.metrics.DeviceOwned, false)
			return nil
		case config.DriverVirtual:
			v := device.NewVirtualDriver()
			v.AddDevice(id, device.AllAxes()...)
			driver = v
		default:
			d, err := device.NewVJoyDriver()
			if err != nil {
				return b.deviceUnavailable(&device.StatusError{ID: id, Status: device.StatusMissing, Err: err})
			}
			driver = d
		}
	}

	session, err := device.Acquire(driver, id, b.log.WithPrefix("device"))
	if err != nil {
		return b.deviceUnavailable(err)
	}

	for _, e := range b.table {
		if !session.HasAxis(e.Axis) {
			b.log.Warnf("Axis %s is not enabled on device %d; %s will not be output", e.Axis, id, e.Channel)
		}
	}

	b.session = session
	metrics.SetBool(b.metrics.DeviceOwned, true)
	return nil
}

func (b *Bridge) deviceUnavailable(err error) error {
	metrics.SetBool(b.metrics.DeviceOwned, false)
	if b.cfg.Device.Required {
		return fmt.Errorf("device required: %w", err)
	}
	b.deviceErr = err
	b.log.Warnf("Output bridge disabled, running ingestion only: %v", err)
	return nil
}

func (b *Bridge) startHost() error {
	reg := host.NewRegistry()
	if err := host.RegisterBridgeProperties(reg, b.version, b.store, b.cfg.Freshness.MaxAge()); err != nil {
		return err
	}

	srv := host.NewServer(host.Config{
		Registry: reg,
		Status:   b,
		Device:   b,
		Metrics:  b.metrics.Handler(),
		Logger:   b.log.WithPrefix("http"),
	})
	if err := srv.Start(b.httpAddr); err != nil {
		return err
	}
	b.host = srv
	return nil
}

// Stop stops the listener, centres and releases the device, then closes the host server.
// The device is released only after the listener goroutine has exited. Safe to call more than once.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	l, session, srv := b.listener, b.session, b.host
	b.host = nil
	// in-flight host requests take b.mu, so it is not held while draining them
	b.mu.Unlock()

	var errs []error
	if err := l.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("listener: %w", err))
	}

	if session != nil {
		if err := session.CenterAll(); err != nil && !errors.Is(err, device.ErrNotOwned) {
			b.log.Warnf("Failed to centre axes before release: %v", err)
		}
		session.Release()
		metrics.SetBool(b.metrics.DeviceOwned, false)
	}

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("host server: %w", err))
		}
	}

	b.log.Infof("Bridge stopped")
	return errors.Join(errs...)
}

// Store returns the telemetry store
func (b *Bridge) Store() *telemetry.Store {
	return b.store
}

// Metrics returns the bridge collectors
func (b *Bridge) Metrics() *metrics.Metrics {
	return b.metrics
}

// Listening reports whether the telemetry listener is running
func (b *Bridge) Listening() bool {
	b.mu.Lock()
	l := b.listener
	b.mu.Unlock()
	return l != nil && l.IsListening()
}

// HostAddr returns the host server address, empty when it is not running
func (b *Bridge) HostAddr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.host == nil || b.host.Addr() == nil {
		return ""
	}
	return b.host.Addr().String()
}

// Health implements host.StatusProvider
func (b *Bridge) Health() host.Health {
	b.mu.Lock()
	l, session, deviceErr := b.listener, b.session, b.deviceErr
	b.mu.Unlock()

	h := host.Health{
		ListenerState: listener.StateStopped.String(),
		DeviceStatus:  "disabled",
		DataUpdating:  b.store.IsFresh(b.cfg.Freshness.MaxAge()),
		LastUpdate:    b.store.LastUpdate(),
	}
	if l != nil {
		h.ListenerState = l.State().String()
		h.Listening = l.IsListening()
		h.Packets = l.Packets()
	}

	var statusErr *device.StatusError
	switch {
	case session != nil && session.Owned():
		h.DeviceOwned = true
		h.DeviceStatus = device.StatusOwned.String()
	case session != nil:
		h.DeviceStatus = "lost"
	case errors.As(deviceErr, &statusErr):
		h.DeviceStatus = statusErr.Status.String()
	}
	return h
}

func (b *Bridge) currentSession() (*device.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		if b.deviceErr != nil {
			return nil, b.deviceErr
		}
		return nil, device.ErrDeviceUnavailable
	}
	return b.session, nil
}

// Sweep implements host.DeviceControl
func (b *Bridge) Sweep(ctx context.Context, axis device.Axis, cycles int, dwell time.Duration) error {
	s, err := b.currentSession()
	if err != nil {
		return err
	}
	return device.Sweep(ctx, s, axis, cycles, dwell)
}

// CenterAll implements host.DeviceControl
func (b *Bridge) CenterAll() error {
	s, err := b.currentSession()
	if err != nil {
		return err
	}
	return s.CenterAll()
}
