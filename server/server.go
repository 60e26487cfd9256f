package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coregate/mcpd/middleware"
	"github.com/coregate/mcpd/protocol"
)

// Info contains server identity exposed to clients and the health surface.
type Info struct {
	Name    string
	Version string
}

// Option configures a Server.
type Option func(*options)

type options struct {
	idleTimeout   time.Duration
	sweepInterval time.Duration
	generateID    func() string
	logger        *slog.Logger
}

// WithIdleTimeout sets the threshold after which an inactive session is
// evicted by the background sweep.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// WithSweepInterval sets how often the idle sweep scans the session map.
// Defaults to a quarter of the idle timeout.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}

// WithSessionIDGenerator replaces the session id generator. Generated ids
// must be unique for the lifetime of the process; the default is
// uuid.NewString. The manager refuses ids that are live or already
// spent, so a generator that repeats itself makes initialize fail
// rather than reviving a closed session.
func WithSessionIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.generateID = fn
	}
}

// WithLogger sets the structured logger used by the session manager.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Server is the protocol server: it owns the tool and resource registries
// and the session map, and routes inbound messages to the owning session's
// dispatcher. Construct one per process and pass it to a transport;
// there is no ambient global state.
type Server struct {
	info      Info
	tools     *registry[*Tool]
	resources *registry[*Resource]
	sessions  *Manager

	mu         sync.Mutex
	middleware []middleware.Middleware
}

// New creates a server with the given identity and options. The session
// manager's idle sweep starts immediately; call Close at shutdown to stop
// it and flush live sessions.
func New(info Info, opts ...Option) *Server {
	o := options{
		generateID: uuid.NewString,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		info:      info,
		tools:     newRegistry[*Tool](),
		resources: newRegistry[*Resource](),
	}
	s.sessions = newManager(managerConfig{
		generateID:    o.generateID,
		idleTimeout:   o.idleTimeout,
		sweepInterval: o.sweepInterval,
		logger:        o.logger,
		newSession:    func(id string) *Session { return newSession(id, s) },
	})
	return s
}

// Info returns the server identity.
func (s *Server) Info() Info {
	return s.info
}

// Close stops the idle sweep and closes all live sessions.
func (s *Server) Close() {
	s.sessions.Stop()
}

// Use registers middleware to run on every dispatched request.
func (s *Server) Use(mw ...middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, mw...)
}

// Tool starts declaring a new tool with the given name.
func (s *Server) Tool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool:   &Tool{name: name},
		server: s,
	}
}

// Resource starts declaring a new resource with the given URI template.
func (s *Server) Resource(uriTemplate string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: &Resource{uriTemplate: uriTemplate},
		server:   s,
	}
}

// Tools returns metadata for all registered tools in registration order.
func (s *Server) Tools() []ToolInfo {
	tools := s.tools.list()
	out := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolInfo{
			Name:        t.name,
			Title:       t.title,
			Description: t.description,
			InputSchema: t.inputSchema,
		})
	}
	return out
}

// Resources returns metadata for all registered resources in registration
// order.
func (s *Server) Resources() []ResourceInfo {
	resources := s.resources.list()
	out := make([]ResourceInfo, 0, len(resources))
	for _, r := range resources {
		out = append(out, ResourceInfo{
			URITemplate: r.uriTemplate,
			Name:        r.name,
			Title:       r.title,
			Description: r.description,
			MimeType:    r.mimeType,
		})
	}
	return out
}

// resolveResource walks the resource templates in registration order and
// returns the first full match along with its extracted placeholder
// values.
func (s *Server) resolveResource(uri string) (*Resource, map[string]string, bool) {
	for _, r := range s.resources.list() {
		if params, ok := r.matcher.match(uri); ok {
			return r, params, true
		}
	}
	return nil, nil, false
}

// Sessions exposes the session manager.
func (s *Server) Sessions() *Manager {
	return s.sessions
}

// CloseSession closes the identified session. Fails with
// ErrSessionNotFound for an unknown or already-closed id.
func (s *Server) CloseSession(_ context.Context, sessionID string) error {
	return s.sessions.Close(sessionID)
}

// Status reports the read-only health surface: server identity and the
// live session count. It never fails and mutates nothing.
func (s *Server) Status() (name, version string, sessions int) {
	return s.info.Name, s.info.Version, s.sessions.Count()
}

// HandleMessage delivers one wire message, optionally correlated to a
// session, and returns the response bytes (nil for notifications) plus
// the id of the session the message was dispatched to.
//
// Parse and envelope failures are answered without a session. A missing
// session id is only acceptable for initialize, which creates a fresh
// session; an unknown or closed id fails with an error wrapping
// ErrSessionNotFound so transports can map it to their own status
// surface, alongside the corresponding wire-level error body.
func (s *Server) HandleMessage(ctx context.Context, sessionID string, body []byte) ([]byte, string, error) {
	req, perr := protocol.ParseRequest(body)
	if perr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		return respond(req, protocol.NewErrorResponse(id, perr)), sessionID, nil
	}

	if sessionID == "" && req.Method != protocol.MethodInitialize {
		resp := protocol.NewErrorResponse(req.ID,
			protocol.NewInvalidRequest("session id required for method "+req.Method))
		return respond(req, resp), "", ErrSessionRequired
	}

	sess, err := s.sessions.OpenOrResume(sessionID)
	if err != nil {
		resp := protocol.NewErrorResponse(req.ID, protocol.NewSessionNotFound(err.Error()))
		return respond(req, resp), sessionID, err
	}

	// Serialize dispatch within the session; requests for distinct
	// sessions proceed in parallel.
	sess.dispatchMu.Lock()
	defer sess.dispatchMu.Unlock()

	ctx = protocol.SetRequestMeta(ctx, protocol.MetaSessionID, sess.ID())

	resp, herr := s.buildHandler(sess)(ctx, req)
	if herr != nil {
		var rpcErr *protocol.Error
		if !errors.As(herr, &rpcErr) {
			rpcErr = protocol.NewInternalError(herr.Error())
		}
		resp = protocol.NewErrorResponse(req.ID, rpcErr)
	}

	return respond(req, resp), sess.ID(), nil
}

// buildHandler wraps the session's dispatcher with the registered
// middleware chain.
func (s *Server) buildHandler(sess *Session) middleware.HandlerFunc {
	base := middleware.HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		return sess.dispatcher.handle(ctx, req), nil
	})

	s.mu.Lock()
	mws := slices.Clone(s.middleware)
	s.mu.Unlock()

	if len(mws) == 0 {
		return base
	}
	return middleware.Chain(mws...)(base)
}

// respond marshals a response, suppressing it entirely for notifications.
func respond(req *protocol.Request, resp *protocol.Response) []byte {
	if resp == nil || (req != nil && req.IsNotification()) {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		fallback := protocol.NewErrorResponse(resp.ID, protocol.NewInternalError("failed to encode response"))
		data, _ = json.Marshal(fallback)
	}
	return data
}
