package radio

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/wire"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// FrameEvent is the socket.io event carrying frames through the relay.
const FrameEvent = "titan:frame"

// SocketIOOptions configures a socket.io bridge endpoint.
type SocketIOOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	// ConnectTimeout bounds the initial connection. Zero means 15s.
	ConnectTimeout time.Duration
}

// SocketIO is a Transceiver that exchanges frames with a socket.io relay
// server. The relay re-emits every frame to all connected clients; each
// endpoint keeps the frames addressed to it.
type SocketIO struct {
	id     uint16
	io     *socket.Socket
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	inbox  chan Frame
}

var _ Transceiver = (*SocketIO)(nil)

// DialSocketIO connects endpoint id to the relay and waits for the
// connection to be established.
func DialSocketIO(ctx context.Context, logger *slog.Logger, id uint16, opts SocketIOOptions) (*SocketIO, error) {
	logger = logger.With("transport", "socketio", "url", opts.URL, "endpoint", id)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	io := manager.Socket(opts.Namespace, sopts)

	s := &SocketIO{id: id, io: io, logger: logger, inbox: make(chan Frame, DefaultInboxDepth)}
	connectChan := make(chan error, 1)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to relay.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})
	io.On(types.EventName(FrameEvent), func(data ...any) {
		f, err := decodeFrameEvent(data...)
		if err != nil {
			logger.Debug("Ignoring undecodable relay event.", "error", err)
			return
		}
		if f.Src == id || (f.Dst != id && !f.Broadcast()) {
			return
		}
		s.push(f)
	})

	io.Connect()

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return s, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}

func (s *SocketIO) ID() uint16 { return s.id }

func (s *SocketIO) Frames() <-chan Frame { return s.inbox }

func (s *SocketIO) Send(ctx context.Context, dst uint16, payload []byte) error {
	if len(payload) > wire.MTU {
		return errcode.New(errcode.OutboundBufferFull, errcode.SourceFramework, "frame of %d bytes exceeds MTU %d", len(payload), wire.MTU)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !s.io.Connected() {
		return fmt.Errorf("socket.io client is not connected")
	}
	s.io.Emit(FrameEvent, encodeFrameEvent(Frame{Src: s.id, Dst: dst, Payload: payload}))
	return nil
}

func (s *SocketIO) push(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.inbox <- f:
	default:
		s.logger.Warn("Endpoint inbox full, frame dropped.", "src", f.Src)
	}
}

func (s *SocketIO) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("Disconnecting socket client.")
	s.io.Disconnect()
	close(s.inbox)
	return nil
}

func encodeFrameEvent(f Frame) map[string]any {
	return map[string]any{
		"src":     f.Src,
		"dst":     f.Dst,
		"payload": base64.StdEncoding.EncodeToString(f.Payload),
	}
}

// decodeFrameEvent accepts the event as it arrives from the JSON decoder:
// numbers as float64, payload as a base64 string.
func decodeFrameEvent(data ...any) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("empty event")
	}
	m, ok := data[0].(map[string]any)
	if !ok {
		return Frame{}, fmt.Errorf("unexpected event type %T", data[0])
	}
	src, err := addrField(m, "src")
	if err != nil {
		return Frame{}, err
	}
	dst, err := addrField(m, "dst")
	if err != nil {
		return Frame{}, err
	}
	enc, ok := m["payload"].(string)
	if !ok {
		return Frame{}, fmt.Errorf("payload is %T, want string", m["payload"])
	}
	payload, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return Frame{}, fmt.Errorf("decode payload: %w", err)
	}
	return Frame{Src: src, Dst: dst, Payload: payload}, nil
}

func addrField(m map[string]any, key string) (uint16, error) {
	switch v := m[key].(type) {
	case float64:
		if v < 0 || v > 0xFFFF || v != float64(uint16(v)) {
			return 0, fmt.Errorf("%s %v out of range", key, v)
		}
		return uint16(v), nil
	case uint16:
		return v, nil
	default:
		return 0, fmt.Errorf("%s is %T, want number", key, m[key])
	}
}
