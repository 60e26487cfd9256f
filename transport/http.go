package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coregate/mcpd/server"
)

// SessionIDHeader carries the session id on HTTP requests and responses.
// Clients echo the value returned by initialize on every subsequent call.
const SessionIDHeader = "Mcp-Session-Id"

// DefaultEndpoint is the request path messages are served on.
const DefaultEndpoint = "/mcp"

const maxRequestBody = 4 << 20 // 4 MiB

// HTTP is an HTTP transport. Each POST carries one JSON-RPC message; the
// owning session travels in the Mcp-Session-Id header. DELETE on the same
// endpoint closes the session, and GET /healthz reports server status.
type HTTP struct {
	addr            string
	endpoint        string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	drainDelay      time.Duration
	allowedHosts    []string
	corsConfig      *CORSConfig
	logger          *slog.Logger

	mu         sync.RWMutex
	server     *http.Server
	listenAddr string
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// WithEndpoint sets the request path messages are served on.
func WithEndpoint(path string) HTTPOption {
	return func(h *HTTP) {
		h.endpoint = path
	}
}

// WithAllowedHosts restricts requests to the given Host header values.
// Port suffixes are ignored when comparing. An empty list allows all hosts.
func WithAllowedHosts(hosts ...string) HTTPOption {
	return func(h *HTTP) {
		h.allowedHosts = hosts
	}
}

// WithHTTPLogger sets the logger for transport-level events.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = logger
	}
}

// NewHTTP creates a new HTTP transport listening on addr.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		endpoint:        DefaultEndpoint,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Addr returns the address the transport is listening on. Before Serve is
// called it returns the configured address.
func (h *HTTP) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.listenAddr != "" {
		return h.listenAddr
	}
	return h.addr
}

// Serve starts the HTTP server and blocks until the context is cancelled.
// Cancellation drains in-flight requests before shutting the listener down.
func (h *HTTP) Serve(ctx context.Context, handler Handler) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	d := newDrainer(h.shutdownTimeout, h.drainDelay)

	srv := &http.Server{
		Handler:      h.createHandler(handler, d),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}

	h.mu.Lock()
	h.server = srv
	h.listenAddr = listener.Addr().String()
	h.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout+h.drainDelay)
		defer cancel()
		if err := d.drain(drainCtx); err != nil {
			h.logger.Warn("drain incomplete", "error", err, "in_flight", d.pending())
		}
		return srv.Shutdown(drainCtx)
	case err := <-errChan:
		return err
	}
}

// createHandler builds the HTTP handler chain for the transport.
func (h *HTTP) createHandler(handler Handler, d *drainer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+h.endpoint, func(w http.ResponseWriter, r *http.Request) {
		h.handleMessage(w, r, handler)
	})
	mux.HandleFunc("DELETE "+h.endpoint, func(w http.ResponseWriter, r *http.Request) {
		h.handleClose(w, r, handler)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		h.handleStatus(w, handler)
	})

	var root http.Handler = h.guard(d, mux)
	if h.corsConfig != nil {
		root = CORSHandler(*h.corsConfig, root)
	}
	return root
}

// guard enforces the host allow-list and tracks in-flight requests so
// shutdown can drain them.
func (h *HTTP) guard(d *drainer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.hostAllowed(r.Host) {
			http.Error(w, "forbidden host", http.StatusForbidden)
			return
		}
		if !d.admit() {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer d.release()
		next.ServeHTTP(w, r)
	})
}

func (h *HTTP) hostAllowed(hostport string) bool {
	if len(h.allowedHosts) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	for _, allowed := range h.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}

func (h *HTTP) handleMessage(w http.ResponseWriter, r *http.Request, handler Handler) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	resp, sid, err := handler.HandleMessage(r.Context(), sessionID, body)

	w.Header().Set("Content-Type", "application/json")
	if sid != "" {
		w.Header().Set(SessionIDHeader, sid)
	}

	switch {
	case errors.Is(err, server.ErrSessionNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, server.ErrSessionRequired):
		w.WriteHeader(http.StatusBadRequest)
	case resp == nil:
		// Notification, no reply body.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if resp != nil {
		_, _ = w.Write(resp)
	}
}

func (h *HTTP) handleClose(w http.ResponseWriter, r *http.Request, handler Handler) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "missing "+SessionIDHeader+" header", http.StatusBadRequest)
		return
	}

	switch err := handler.CloseSession(r.Context(), sessionID); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, server.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	default:
		h.logger.Error("session close failed", "session_id", sessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *HTTP) handleStatus(w http.ResponseWriter, handler Handler) {
	name, version, sessions := handler.Status()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":     name,
		"version":  version,
		"sessions": sessions,
	})
}
