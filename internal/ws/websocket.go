// Package ws holds a single websocket connection whose frames are read by one
// receiver and handed to consumers through a channel.
package ws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"ripiotrade/pkg/core"
)

type Config struct {
	URL string `validate:"required,url"`
	// Header is sent with the opening handshake.
	Header http.Header
	// BufferSize is the capacity of the Messages channel. A full channel
	// blocks the receiver until the consumer catches up.
	BufferSize       int           `validate:"min=0"`
	HandshakeTimeout time.Duration `validate:"min=0"`
	// PingInterval enables keepalive pings when positive. The connection is
	// considered dead when nothing arrives for PingInterval+PongWait.
	PingInterval time.Duration `validate:"min=0"`
	PongWait     time.Duration `validate:"min=0"`
}

// Conn is an open websocket stream. Frames are delivered in arrival order on
// Messages. The channel is closed when the connection ends, after which Err
// reports a transport failure, if there was one. There is no reconnect.
type Conn struct {
	config Config
	socket *gws.Conn
	state  State
	logger zerolog.Logger

	messages chan core.StreamMessage
	done     chan struct{}
	readDone chan struct{}
	once     sync.Once

	mu  sync.Mutex
	err error
}

type Option func(*Conn)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

type eventHandler struct {
	conn *Conn
}

// Dial performs the handshake and starts the receiver. A failed handshake is
// returned as *core.ConnectionError.
func Dial(ctx context.Context, config Config, opts ...Option) (*Conn, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid websocket config: %w", err)
	}
	if config.BufferSize == 0 {
		config.BufferSize = 64
	}
	if config.PingInterval > 0 && config.PongWait == 0 {
		config.PongWait = config.PingInterval
	}

	c := &Conn{
		config:   config,
		logger:   zerolog.Nop(),
		messages: make(chan core.StreamMessage, config.BufferSize),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(StateConnecting)

	if err := ctx.Err(); err != nil {
		return nil, &core.ConnectionError{URL: config.URL, Err: err}
	}
	timeout := config.HandshakeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}

	socket, resp, err := gws.NewClient(&eventHandler{conn: c}, &gws.ClientOption{
		Addr:             config.URL,
		RequestHeader:    config.Header,
		HandshakeTimeout: timeout,
	})
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, &core.ConnectionError{URL: config.URL, Err: err}
	}
	c.socket = socket
	c.state.Store(StateConnected)

	go c.receive()
	if config.PingInterval > 0 {
		go c.keepalive()
	}

	c.logger.Info().Str("url", config.URL).Msg("websocket connected")
	return c, nil
}

// receive is the only goroutine that reads the socket and the only one that
// sends on or closes the messages channel.
func (c *Conn) receive() {
	defer close(c.readDone)
	defer close(c.messages)
	c.socket.ReadLoop()
}

func (c *Conn) keepalive() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.socket.WritePing(nil); err != nil {
				c.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case <-c.done:
			return
		case <-c.readDone:
			return
		}
	}
}

func (c *Conn) extendDeadline(socket *gws.Conn) {
	if c.config.PingInterval > 0 {
		_ = socket.SetReadDeadline(time.Now().Add(c.config.PingInterval + c.config.PongWait))
	}
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.conn.extendDeadline(socket)
}

func (h *eventHandler) OnClose(_ *gws.Conn, err error) {
	c := h.conn
	if !c.state.CompareAndSwap(StateConnected, StateFailed) {
		return
	}

	var closeErr *gws.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == 1000 {
		c.state.Store(StateClosed)
		c.logger.Info().Str("url", c.config.URL).Msg("websocket closed by server")
		return
	}

	c.mu.Lock()
	c.err = &core.ConnectionError{URL: c.config.URL, Err: err}
	c.mu.Unlock()
	c.logger.Warn().Err(err).Str("url", c.config.URL).Msg("websocket disconnected")
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	h.conn.extendDeadline(socket)
	_ = socket.WritePong(payload)
}

func (h *eventHandler) OnPong(socket *gws.Conn, _ []byte) {
	h.conn.extendDeadline(socket)
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	c := h.conn
	c.extendDeadline(socket)

	// The frame buffer is recycled once the message is closed.
	data := bytes.Clone(message.Bytes())
	if len(data) == 0 {
		return
	}
	msg := Parse(data, time.Now())
	c.logger.Debug().Str("topic", msg.Topic).Int("size", len(data)).Msg("websocket message")

	select {
	case c.messages <- msg:
	case <-c.done:
	}
}

// Parse tags a frame with its topic, taken from the first non-empty string
// among "topic", "channel", "event" and "method", and its numeric "id".
func Parse(data []byte, receivedAt time.Time) core.StreamMessage {
	msg := core.StreamMessage{Raw: data, ReceivedAt: receivedAt}
	if !gjson.ValidBytes(data) {
		return msg
	}
	res := gjson.GetManyBytes(data, "topic", "channel", "event", "method", "id")
	for _, r := range res[:4] {
		if r.Type == gjson.String && r.Str != "" {
			msg.Topic = r.Str
			break
		}
	}
	if res[4].Type == gjson.Number {
		msg.ID = res[4].Int()
	}
	return msg
}

// Messages returns the inbound stream. It is closed when the connection ends.
func (c *Conn) Messages() <-chan core.StreamMessage {
	return c.messages
}

// Done is closed once the receiver has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.readDone
}

// Err returns the *core.ConnectionError that ended the stream, or nil.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) State() ConnState {
	return c.state.Load()
}

// WriteMessage sends a text frame.
func (c *Conn) WriteMessage(data []byte) error {
	if c.state.Load() != StateConnected {
		return core.ErrNotConnected
	}
	if err := c.socket.WriteMessage(gws.OpcodeText, data); err != nil {
		return &core.ConnectionError{URL: c.config.URL, Err: err}
	}
	return nil
}

// SendJSON encodes v with sonic and sends it as a text frame.
func (c *Conn) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return &core.SerializationError{Err: err}
	}
	return c.WriteMessage(data)
}

// Close sends a normal closure, tears down the connection and waits for the
// receiver to close the Messages channel. It is safe to call more than once.
func (c *Conn) Close() error {
	c.once.Do(func() {
		c.state.Store(StateClosed)
		close(c.done)
		c.socket.WriteClose(1000, nil)
		_ = c.socket.NetConn().Close()
	})
	<-c.readDone
	return nil
}
