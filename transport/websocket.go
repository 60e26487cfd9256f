package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coregate/mcpd/server"
)

// WebSocket serves JSON-RPC messages over WebSocket connections. Each
// connection carries one implicit session, opened by the connection's
// initialize message and closed when the connection ends.
type WebSocket struct {
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server

	readTimeout  time.Duration
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// wsClient represents a single WebSocket connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketReadTimeout sets the read timeout for WebSocket messages.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.readTimeout = d
	}
}

// WithWebSocketWriteTimeout sets the write timeout for WebSocket messages.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithWebSocketCheckOrigin sets the origin check function for WebSocket upgrades.
func WithWebSocketCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(ws *WebSocket) {
		ws.upgrader.CheckOrigin = fn
	}
}

// NewWebSocket creates a new WebSocket transport.
func NewWebSocket(addr string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins by default
		},
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		clients:      make(map[*wsClient]struct{}),
	}

	for _, opt := range opts {
		opt(ws)
	}

	return ws
}

// Addr returns the transport address.
func (ws *WebSocket) Addr() string {
	return ws.addr
}

// Serve starts the WebSocket server.
func (ws *WebSocket) Serve(ctx context.Context, handler Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws.handleConnection(ctx, w, r, handler)
	})

	ws.server = &http.Server{
		Addr:         ws.addr,
		Handler:      mux,
		ReadTimeout:  ws.readTimeout,
		WriteTimeout: ws.writeTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ws.closeAllClients()
		return ws.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (ws *WebSocket) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request, handler Handler) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn}

	ws.mu.Lock()
	ws.clients[client] = struct{}{}
	ws.mu.Unlock()

	var sessionID string
	defer func() {
		ws.mu.Lock()
		delete(ws.clients, client)
		ws.mu.Unlock()
		_ = conn.Close()
		if sessionID != "" {
			_ = handler.CloseSession(context.Background(), sessionID)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ws.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			// Expected close errors are normal (client disconnected)
			return
		}

		resp, sid, err := handler.HandleMessage(ctx, sessionID, message)
		switch {
		case err == nil:
			sessionID = sid
		case errors.Is(err, server.ErrSessionNotFound):
			// Evicted mid-connection. The client must initialize again.
			sessionID = ""
		}

		if resp != nil {
			_ = client.write(resp)
		}
	}
}

func (ws *WebSocket) closeAllClients() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for client := range ws.clients {
		client.close()
	}
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
