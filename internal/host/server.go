package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flightbridge/internal/device"
	"github.com/flightbridge/internal/logging"
)

// Error codes returned in ErrorResponse
const (
	ErrNotFound      = "NOT_FOUND"
	ErrInvalidParams = "INVALID_PARAMS"
	ErrUnavailable   = "UNAVAILABLE"
	ErrBusy          = "BUSY"
	ErrInternal      = "INTERNAL"
)

// Sweep request limits
const (
	DefaultSweepCycles = 1
	DefaultSweepDwell  = 500 * time.Millisecond
	MaxSweepCycles     = 5
	MaxSweepDwell      = 500 * time.Millisecond
	MinSweepDwell      = 10 * time.Millisecond
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Health is the body of /healthz
type Health struct {
	Listening     bool      `json:"listening"`
	ListenerState string    `json:"listenerState"`
	Packets       uint64    `json:"packets"`
	DeviceStatus  string    `json:"deviceStatus"`
	DeviceOwned   bool      `json:"deviceOwned"`
	DataUpdating  bool      `json:"dataUpdating"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

// StatusProvider reports bridge health
type StatusProvider interface {
	Health() Health
}

// DeviceControl runs diagnostics on the output device. Implementations return an error wrapping
// device.ErrDeviceUnavailable when no device is attached.
type DeviceControl interface {
	Sweep(ctx context.Context, axis device.Axis, cycles int, dwell time.Duration) error
	CenterAll() error
}

// Config wires a server to the bridge
type Config struct {
	Registry *Registry
	Status   StatusProvider
	Device   DeviceControl
	Metrics  http.Handler // nil disables /metrics
	Logger   *logging.Logger
}

// Server is the host-facing HTTP surface
type Server struct {
	registry *Registry
	status   StatusProvider
	device   DeviceControl
	metrics  http.Handler
	log      *logging.Logger

	sweeping atomic.Bool

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
}

// NewServer creates a server; call Start to begin serving
func NewServer(cfg Config) *Server {
	s := &Server{
		registry: cfg.Registry,
		status:   cfg.Status,
		device:   cfg.Device,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

// Handler returns the routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /properties", s.handleProperties)
	mux.HandleFunc("GET /properties/{name}", s.handleProperty)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /device/sweep", s.handleSweep)
	mux.HandleFunc("POST /device/center", s.handleCenter)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start binds addr and serves in the background
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("host server already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	done := make(chan struct{})

	s.httpServer = srv
	s.listener = ln
	s.done = done

	go func() {
		defer close(done)
		s.log.Infof("Starting HTTP server on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server failed: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address, nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server gracefully. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.httpServer, s.done
	s.httpServer, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	<-done
	s.log.Infof("HTTP server stopped")
	return err
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ReadAll())
}

func (s *Server) handleProperty(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, ErrNotFound, fmt.Sprintf("unknown property %q", name))
		return
	}
	writeJSON(w, http.StatusOK, PropertyValue{Name: name, Value: p.Read(), Description: p.Description()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, Health{})
		return
	}

	h := s.status.Health()
	code := http.StatusOK
	if !h.Listening {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, ErrUnavailable, "no output device")
		return
	}

	q := r.URL.Query()
	axis, err := device.ParseAxis(q.Get("axis"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidParams, err.Error())
		return
	}

	cycles := DefaultSweepCycles
	if v := q.Get("cycles"); v != "" {
		cycles, err = strconv.Atoi(v)
		if err != nil || cycles < 1 || cycles > MaxSweepCycles {
			writeError(w, http.StatusBadRequest, ErrInvalidParams,
				fmt.Sprintf("cycles must be between 1 and %d", MaxSweepCycles))
			return
		}
	}

	dwell := DefaultSweepDwell
	if v := q.Get("dwellMs"); v != "" {
		ms, err := strconv.Atoi(v)
		dwell = time.Duration(ms) * time.Millisecond
		if err != nil || dwell < MinSweepDwell || dwell > MaxSweepDwell {
			writeError(w, http.StatusBadRequest, ErrInvalidParams,
				fmt.Sprintf("dwellMs must be between %d and %d", MinSweepDwell.Milliseconds(), MaxSweepDwell.Milliseconds()))
			return
		}
	}

	if !s.sweeping.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, ErrBusy, "a sweep is already running")
		return
	}
	defer s.sweeping.Store(false)

	s.log.Infof("Sweeping axis %s: cycles=%d dwell=%s", axis, cycles, dwell)
	if err := s.device.Sweep(r.Context(), axis, cycles, dwell); err != nil {
		s.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"axis": axis.String(), "cycles": cycles})
}

func (s *Server) handleCenter(w http.ResponseWriter, r *http.Request) {
	if s.device == nil {
		writeError(w, http.StatusServiceUnavailable, ErrUnavailable, "no output device")
		return
	}
	if err := s.device.CenterAll(); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"centered": true})
}

func (s *Server) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceUnavailable), errors.Is(err, device.ErrNotOwned):
		writeError(w, http.StatusServiceUnavailable, ErrUnavailable, err.Error())
	case errors.Is(err, device.ErrAxisMissing):
		writeError(w, http.StatusBadRequest, ErrInvalidParams, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, ErrUnavailable, "sweep interrupted")
	default:
		s.log.Warnf("Device control failed: %v", err)
		writeError(w, http.StatusInternalServerError, ErrInternal, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, ErrorResponse{Code: errCode, Message: message})
}
