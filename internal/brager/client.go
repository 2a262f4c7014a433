package brager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and intervals for cloud communication.
const (
	// DefaultHost is the production BragerConnect WebSocket endpoint.
	DefaultHost = "wss://cloud.bragerconnect.com"

	// defaultConnectTimeout is the maximum time to wait for the initial
	// connection and handshake.
	defaultConnectTimeout = 10 * time.Second

	// defaultCallTimeout is the maximum time to wait for a function
	// response.
	defaultCallTimeout = 10 * time.Second

	// defaultWriteTimeout is the timeout for frame write operations.
	defaultWriteTimeout = 5 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection
	// attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection
	// attempts.
	maxReconnectInterval = 2 * time.Minute

	// pushQueueSize is the buffer size for the server-push callback queue.
	pushQueueSize = 64

	// pushWorkerCount is the number of concurrent push callback workers.
	pushWorkerCount = 2
)

// loginAppID identifies the client application to the cloud service.
const loginAppID = "bc_web"

// Config holds cloud connection configuration.
type Config struct {
	// Host is the WebSocket endpoint. Default: DefaultHost.
	Host string

	// Username and Password are the BragerConnect account credentials.
	Username string
	Password string

	// Language is the two-letter message language code set on the
	// session. Default: "en".
	Language string

	// ConnectTimeout is the maximum time for connect plus handshake.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// CallTimeout is the maximum time to wait for a function response.
	// Default: 10 seconds.
	CallTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection
	// attempts. Default: 5 seconds.
	ReconnectInterval time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	FramesTx        uint64
	FramesRx        uint64
	FramesDropped   uint64 // Server pushes dropped due to full queue
	ErrorsTotal     uint64
	ReconnectsTotal uint64 // Successful reconnections
	LastActivity    time.Time
	Connected       bool
	Reconnecting    bool // True if currently attempting to reconnect
	LoggedIn        bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Connector interface for testability.
// This allows mocking the cloud client in tests.
type Connector interface {
	Call(ctx context.Context, name string, args []any) (any, error)
	FetchDevices(ctx context.Context) ([]*Device, error)
	FetchDevice(ctx context.Context, deviceID string) (*Device, error)
	SetPoolField(ctx context.Context, deviceID string, ref FieldRef, value any) error
	SetOnPortMessage(callback func(Frame))
	IsConnected() bool
	Stats() Stats
	Close() error
}

// Ensure Client implements Connector.
var _ Connector = (*Client)(nil)

// Client maintains the WebSocket session with the BragerConnect cloud.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Port message callbacks are invoked from a bounded worker pool.
//
// Auto-Reconnection:
//   - When the connection is lost, the client automatically reconnects,
//     replays the READY_SIGNAL handshake and logs in again.
//   - Uses exponential backoff starting at ReconnectInterval (default 5s)
//     up to maxReconnectInterval (2min).
//   - Reconnection stops only when Close() is called.
type Client struct {
	cfg  Config
	conn *websocket.Conn

	// Connection state
	connMu    sync.RWMutex
	connected bool
	loggedIn  bool

	// writeMu serialises frame writes; gorilla/websocket allows a
	// single concurrent writer.
	writeMu sync.Mutex

	// Reconnection state
	reconnecting   atomic.Bool
	reconnectCount atomic.Int32

	// Pending call correlation: nr -> response channel.
	pendingMu sync.Mutex
	pending   map[int64]chan Frame
	callNr    atomic.Int64

	// Active device tracking. The cloud scopes pool/task/alarm calls
	// to the session's active device.
	activeMu    sync.Mutex
	activeDevID string

	// Server push handler callback
	onPortMessage func(Frame)
	callbackMu    sync.RWMutex

	// Push worker pool (bounded goroutine spawning)
	pushQueue chan Frame

	// Shutdown coordination
	done *closeOnce
	wg   sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	framesTx        atomic.Uint64
	framesRx        atomic.Uint64
	framesDropped   atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// Connect establishes a session with the BragerConnect cloud service.
//
// It dials the WebSocket endpoint, waits for the server's READY_SIGNAL
// and echoes it back, starts the receive loop, authenticates with the
// configured credentials and sets the session language.
//
// Parameters:
//   - ctx: Context for cancellation (used for initial connection)
//   - cfg: Connection configuration
//
// Returns:
//   - *Client: Connected, logged-in client ready for use
//   - error: If connection, handshake or login fails
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	// Apply defaults
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}

	client := &Client{
		cfg:       cfg,
		pending:   make(map[int64]chan Frame),
		pushQueue: make(chan Frame, pushQueueSize),
		done:      newCloseOnce(),
	}
	client.callNr.Store(-1)
	client.lastActivity.Store(time.Now().Unix())

	if ctx == nil {
		ctx = context.Background()
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := client.dial(connectCtx)
	if err != nil {
		return nil, err
	}

	if err := client.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	client.connMu.Lock()
	client.conn = conn
	client.connected = true
	client.connMu.Unlock()

	// Start push worker pool (bounded goroutine count)
	for i := 0; i < pushWorkerCount; i++ {
		client.wg.Add(1)
		go client.pushWorker()
	}

	// Start receive loop
	client.wg.Add(1)
	go client.receiveLoop()

	if err := client.openSession(connectCtx); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// dial opens the WebSocket connection.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.ConnectTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.Host, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, c.cfg.Host, err)
	}
	return conn, nil
}

// handshake waits for the server's READY_SIGNAL frame and echoes it
// back verbatim. The session is not usable before this exchange.
func (c *Client) handshake(conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout)); err != nil {
		return fmt.Errorf("%w: set read deadline: %w", ErrHandshakeFailed, err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("%w: read: %w", ErrHandshakeFailed, err)
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if frame.Type != ReadySignal {
		return fmt.Errorf("%w: expected READY_SIGNAL, got %s", ErrHandshakeFailed, frame.Type)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", ErrHandshakeFailed, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("%w: echo: %w", ErrHandshakeFailed, err)
	}

	// Clear the handshake deadline; the receive loop blocks on server
	// traffic indefinitely.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("%w: clear read deadline: %w", ErrHandshakeFailed, err)
	}

	return nil
}

// openSession authenticates and sets the session language. Called after
// the handshake on both initial connect and reconnect.
func (c *Client) openSession(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	// The cloud answers s_setUserVariable with an empty response on
	// success. A failed language set is not fatal for the session.
	if err := c.SetUserVariable(ctx, "preffered_lang", c.cfg.Language); err != nil {
		c.logWarn("setting session language failed", "language", c.cfg.Language, "error", err)
	}

	return nil
}

// login authenticates with the configured credentials. The server
// answers the s_login call with numeric 1 on success.
func (c *Client) login(ctx context.Context) error {
	resp, err := c.Call(ctx, fnLogin, []any{c.cfg.Username, c.cfg.Password, nil, nil, loginAppID})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	result, ok := asNumber(resp)
	if !ok || result != 1 {
		return fmt.Errorf("%w: unexpected login response %v", ErrAuthFailed, resp)
	}

	c.connMu.Lock()
	c.loggedIn = true
	c.connMu.Unlock()

	c.logInfo("logged in to cloud service", "username", c.cfg.Username)
	return nil
}

// receiveLoop continuously reads frames from the cloud.
// On connection loss, it automatically attempts reconnection with
// exponential backoff and re-authenticates.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil {
			if c.isClosed() {
				return
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}

			c.logError("read failed", err)
			c.errorsTotal.Add(1)
			c.handleDisconnect()

			if !c.reconnect() {
				return
			}
			continue
		}

		c.handleFrame(raw)
	}
}

// handleFrame dispatches one received frame: responses complete
// pending calls, unsolicited frames are queued for the push callback.
func (c *Client) handleFrame(raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		c.logError("frame decode failed", err)
		c.errorsTotal.Add(1)
		return
	}

	c.framesRx.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	if frame.IsResponse() {
		c.pendingMu.Lock()
		ch, ok := c.pending[*frame.Nr]
		if ok {
			delete(c.pending, *frame.Nr)
		}
		c.pendingMu.Unlock()

		if !ok {
			c.logWarn("response with no pending call", "nr", *frame.Nr)
			return
		}
		ch <- frame
		return
	}

	// Server push (PORT_MESSAGE pool updates and similar)
	c.callbackMu.RLock()
	hasCallback := c.onPortMessage != nil
	c.callbackMu.RUnlock()

	if hasCallback {
		select {
		case c.pushQueue <- frame:
		default:
			// Queue full, drop to prevent memory exhaustion
			c.logError("push queue full, dropping frame", nil)
			c.framesDropped.Add(1)
			c.errorsTotal.Add(1)
		}
	}
}

// pushWorker processes server pushes from the push queue.
// Runs in a bounded worker pool to prevent goroutine explosion.
func (c *Client) pushWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainPushQueue()
			return
		case frame := <-c.pushQueue:
			c.callbackMu.RLock()
			callback := c.onPortMessage
			c.callbackMu.RUnlock()

			if callback != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.logError("port message callback panic", fmt.Errorf("%v", r))
						}
					}()
					callback(frame)
				}()
			}
		}
	}
}

// drainPushQueue removes and discards any remaining queued frames.
// Called during shutdown to prevent goroutines from blocking on send.
func (c *Client) drainPushQueue() {
	for {
		select {
		case <-c.pushQueue:
		default:
			return
		}
	}
}

// handleDisconnect handles connection loss state transitions.
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.loggedIn = false
	c.connMu.Unlock()

	c.activeMu.Lock()
	c.activeDevID = ""
	c.activeMu.Unlock()

	c.failPending(ErrNotConnected)

	if wasConnected {
		c.logInfo("connection lost, will attempt reconnection")
	}
}

// failPending completes every pending call with an exception frame so
// callers do not wait out their full timeout on a dead connection.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan Frame)
	c.pendingMu.Unlock()

	for nr, ch := range pending {
		ch <- Frame{WrkFnc: true, Type: Exception, Nr: &nr, Resp: err.Error()}
	}
}

// reconnect re-establishes the cloud session with exponential backoff.
// Returns true if reconnection succeeded, false if shutdown was
// signalled.
func (c *Client) reconnect() bool {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return c.waitForReconnection()
	}
	defer c.reconnecting.Store(false)

	backoff := c.cfg.ReconnectInterval

	for {
		if c.isClosed() {
			return false
		}

		attempt := c.reconnectCount.Add(1)
		c.logInfo("attempting reconnection", "attempt", attempt, "backoff", backoff.String())

		c.closeOldConnection()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			backoff = c.handleReconnectFailure("dial failed", err, backoff)
			if backoff == 0 {
				return false
			}
			continue
		}

		if err := c.handshake(conn); err != nil {
			conn.Close()
			backoff = c.handleReconnectFailure("handshake failed", err, backoff)
			if backoff == 0 {
				return false
			}
			continue
		}

		c.connMu.Lock()
		c.conn = conn
		c.connected = true
		c.connMu.Unlock()

		// The session must be re-authenticated; the server forgets the
		// login and the active device on disconnect.
		sessionCtx, sessionCancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
		err = c.openSession(sessionCtx)
		sessionCancel()
		if err != nil {
			conn.Close()
			c.connMu.Lock()
			c.conn = nil
			c.connected = false
			c.connMu.Unlock()
			backoff = c.handleReconnectFailure("session open failed", err, backoff)
			if backoff == 0 {
				return false
			}
			continue
		}

		c.finalizeReconnection()
		return true
	}
}

// waitForReconnection waits for another goroutine to complete
// reconnection.
func (c *Client) waitForReconnection() bool {
	for c.reconnecting.Load() && !c.isClosed() {
		time.Sleep(100 * time.Millisecond)
	}
	return !c.isClosed() && c.IsConnected()
}

// closeOldConnection closes the existing connection if any.
func (c *Client) closeOldConnection() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// handleReconnectFailure handles a failed reconnection attempt.
// Returns the new backoff duration, or 0 if shutdown was signalled.
func (c *Client) handleReconnectFailure(reason string, err error, backoff time.Duration) time.Duration {
	c.logError("reconnect: "+reason, err)
	c.errorsTotal.Add(1)

	select {
	case <-c.done.Done():
		return 0
	case <-time.After(backoff):
	}

	newBackoff := time.Duration(float64(backoff) * 1.5)
	if newBackoff > maxReconnectInterval {
		newBackoff = maxReconnectInterval
	}
	return newBackoff
}

// finalizeReconnection marks the session as established and updates stats.
func (c *Client) finalizeReconnection() {
	c.reconnectCount.Store(0)
	c.reconnectsTotal.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	c.logInfo("reconnection successful", "total_reconnects", c.reconnectsTotal.Load())
}

// isClosed returns true if the client has been closed.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close gracefully closes the cloud session.
//
// It signals the receive loop to stop and closes the underlying
// WebSocket connection. Safe to call multiple times (uses sync.Once).
//
// Returns:
//   - error: nil (closing is best-effort)
func (c *Client) Close() error {
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	c.loggedIn = false
	conn := c.conn
	c.connMu.Unlock()

	// Closing the connection unblocks any pending reads.
	if conn != nil {
		conn.Close()
	}

	c.failPending(ErrClosed)

	c.wg.Wait()

	c.logInfo("cloud session closed")
	return nil
}

// Call executes a server function and waits for its response.
//
// The call is correlated through a monotonically increasing nr. An
// EXCEPTION answer or a timeout fails the call; a FUNCTION_RESP answer
// returns the decoded resp payload.
//
// Parameters:
//   - ctx: Context for cancellation
//   - name: Server function name (e.g. "s_getAllPoolData")
//   - args: Positional arguments; nil sends an empty list
//
// Returns:
//   - any: Decoded resp payload (nil for non-response answers)
//   - error: If sending fails, the server raises, or the call times out
func (c *Client) Call(ctx context.Context, name string, args []any) (any, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	nr := c.callNr.Add(1)
	frame := NewCallFrame(FunctionExec, name, nr, args)

	data, err := frame.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, name, err)
	}

	respCh := make(chan Frame, 1)
	c.pendingMu.Lock()
	c.pending[nr] = respCh
	c.pendingMu.Unlock()

	if err := c.writeFrame(data); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, nr)
		c.pendingMu.Unlock()
		c.errorsTotal.Add(1)
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, name, err)
	}

	c.framesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())

	select {
	case <-ctx.Done():
		c.abandonCall(nr)
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, name, ctx.Err())
	case <-c.done.Done():
		c.abandonCall(nr)
		return nil, ErrClosed
	case <-time.After(c.cfg.CallTimeout):
		c.abandonCall(nr)
		c.errorsTotal.Add(1)
		return nil, fmt.Errorf("%w: %s", ErrCallTimeout, name)
	case resp := <-respCh:
		switch resp.Type {
		case Exception:
			c.errorsTotal.Add(1)
			return nil, fmt.Errorf("%w: %s: %v", ErrRemoteException, name, resp.Resp)
		case FunctionResp:
			return resp.Resp, nil
		default:
			return nil, nil
		}
	}
}

// Exec sends a procedure call without waiting for a result.
func (c *Client) Exec(ctx context.Context, name string, args []any) error {
	if c.isClosed() {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrCallFailed, name, ctx.Err())
	default:
	}

	nr := c.callNr.Add(1)
	frame := NewCallFrame(ProcedureExec, name, nr, args)

	data, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCallFailed, name, err)
	}

	if err := c.writeFrame(data); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: %s: %w", ErrCallFailed, name, err)
	}

	c.framesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// abandonCall removes a pending call registration after a local
// timeout or cancellation.
func (c *Client) abandonCall(nr int64) {
	c.pendingMu.Lock()
	delete(c.pending, nr)
	c.pendingMu.Unlock()
}

// writeFrame sends raw frame bytes. The write mutex serialises
// writers as required by the WebSocket implementation.
func (c *Client) writeFrame(data []byte) error {
	c.connMu.RLock()
	conn := c.conn
	connected := c.connected
	c.connMu.RUnlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SetOnPortMessage sets the callback for unsolicited server frames.
//
// The callback is invoked from a bounded worker pool. Panics in the
// callback are recovered and logged.
func (c *Client) SetOnPortMessage(callback func(Frame)) {
	c.callbackMu.Lock()
	c.onPortMessage = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true if the WebSocket session is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// IsLoggedIn returns true if the session is authenticated.
func (c *Client) IsLoggedIn() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.loggedIn
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		FramesTx:        c.framesTx.Load(),
		FramesRx:        c.framesRx.Load(),
		FramesDropped:   c.framesDropped.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsConnected(),
		Reconnecting:    c.reconnecting.Load(),
		LoggedIn:        c.IsLoggedIn(),
	}
}

// HealthCheck verifies the session is alive and authenticated.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if !c.IsLoggedIn() {
		return ErrAuthFailed
	}
	return nil
}

// logInfo logs an info message if logger is set.
func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if logger is set.
func (c *Client) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
