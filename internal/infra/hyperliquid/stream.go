package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NasaVasa/alerty/internal/domain"
	"go.uber.org/zap"
)

type StreamConfig struct {
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		HeartbeatInterval:    30 * time.Second,
		ReconnectBaseDelay:   5 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

type subKey struct {
	typ        domain.SubscriptionType
	identifier string
}

// Stream keeps one logical subscription set alive across transport sessions.
// The registry survives reconnects and is replayed on every open; it is cleared
// only by Disconnect.
type Stream struct {
	dialer Dialer
	cfg    StreamConfig
	logger *zap.Logger
	after  func(time.Duration) <-chan time.Time

	// connectMu serializes dials so Connect and the reconnect loop never open
	// two sessions.
	connectMu sync.Mutex

	mu            sync.Mutex
	conn          Conn
	session       uint64
	stopHeartbeat chan struct{}
	subs          map[subKey]wsControl
	attempts      int
	gaveUp        bool
	reconnecting  bool
	closing       bool
	runCtx        context.Context
	runCancel     context.CancelFunc

	listenersMu sync.RWMutex
	listeners   []domain.StreamListener
}

func NewStream(dialer Dialer, cfg StreamConfig, logger *zap.Logger) *Stream {
	defaults := DefaultStreamConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = defaults.ReconnectBaseDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}
	return &Stream{
		dialer: dialer,
		cfg:    cfg,
		logger: logger.Named("stream"),
		after:  time.After,
		subs:   make(map[subKey]wsControl),
	}
}

func (s *Stream) AddListener(l domain.StreamListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Connect opens the transport unless a session is already open. On failure
// the error is returned and retries continue in the background under the
// reconnect policy. Connecting after a give-up starts a fresh attempt budget.
func (s *Stream) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		s.connectMu.Unlock()
		return nil
	}
	s.closing = false
	if s.gaveUp {
		s.attempts = 0
		s.gaveUp = false
	}
	if s.runCtx == nil || s.runCtx.Err() != nil {
		s.runCtx, s.runCancel = context.WithCancel(ctx)
	}
	runCtx := s.runCtx
	s.mu.Unlock()

	err := s.open(ctx)
	s.connectMu.Unlock()
	if err != nil {
		s.emit(domain.StreamSignal{Kind: domain.SignalError, Err: err})
		s.startReconnect(runCtx)
		return err
	}
	return nil
}

// open dials and installs a new session. Callers hold connectMu.
func (s *Stream) open(ctx context.Context) error {
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return errors.New("stream is shutting down")
	}
	s.conn = conn
	s.session++
	session := s.session
	s.attempts = 0
	s.gaveUp = false
	s.reconnecting = false
	stop := make(chan struct{})
	s.stopHeartbeat = stop
	frames := make([]wsControl, 0, len(s.subs))
	for _, frame := range s.subs {
		frames = append(frames, frame)
	}
	s.mu.Unlock()

	for _, frame := range frames {
		if err := conn.WriteJSON(frame); err != nil {
			s.logger.Warn("resubscribe failed", zap.String("type", frame.Subscription.Type), zap.Error(err))
			s.emit(domain.StreamSignal{Kind: domain.SignalError, Err: err})
		}
	}
	s.logger.Info("stream connected", zap.Int("subscriptions", len(frames)))

	go s.heartbeat(conn, stop)
	s.emit(domain.StreamSignal{Kind: domain.SignalConnected})
	go s.readLoop(conn, session)
	return nil
}

// Disconnect closes the session for good: heartbeat stopped, pending
// reconnects cancelled and the subscription registry cleared.
func (s *Stream) Disconnect() error {
	s.mu.Lock()
	s.closing = true
	conn := s.conn
	s.conn = nil
	if s.stopHeartbeat != nil {
		close(s.stopHeartbeat)
		s.stopHeartbeat = nil
	}
	s.subs = make(map[subKey]wsControl)
	if s.runCancel != nil {
		s.runCancel()
		s.runCtx, s.runCancel = nil, nil
	}
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.logger.Info("stream disconnecting")
	err := conn.Close()
	s.emit(domain.StreamSignal{Kind: domain.SignalDisconnected})
	return err
}

func (s *Stream) Subscribe(typ domain.SubscriptionType, identifier string) error {
	frame, err := controlFrame("subscribe", typ, identifier)
	if err != nil {
		return err
	}
	key := subKey{typ: typ, identifier: identifier}

	s.mu.Lock()
	if _, ok := s.subs[key]; ok {
		s.mu.Unlock()
		return nil
	}
	s.subs[key] = frame
	conn := s.conn
	s.mu.Unlock()

	s.logger.Info("subscribe", zap.String("type", string(typ)), zap.String("identifier", identifier), zap.Bool("connected", conn != nil))
	if conn == nil {
		return nil
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("send subscribe %s: %w", typ, err)
	}
	return nil
}

func (s *Stream) Unsubscribe(typ domain.SubscriptionType, identifier string) error {
	frame, err := controlFrame("unsubscribe", typ, identifier)
	if err != nil {
		return err
	}
	key := subKey{typ: typ, identifier: identifier}

	s.mu.Lock()
	_, ok := s.subs[key]
	delete(s.subs, key)
	conn := s.conn
	s.mu.Unlock()

	if !ok || conn == nil {
		return nil
	}
	s.logger.Info("unsubscribe", zap.String("type", string(typ)), zap.String("identifier", identifier))
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("send unsubscribe %s: %w", typ, err)
	}
	return nil
}

func controlFrame(method string, typ domain.SubscriptionType, identifier string) (wsControl, error) {
	if typ == "" {
		return wsControl{}, errors.New("subscription type is required")
	}
	sub := &wsSubscription{Type: string(typ)}
	switch {
	case identifier == "":
	case typ.UserScoped():
		sub.User = identifier
	default:
		sub.Coin = identifier
	}
	return wsControl{Method: method, Subscription: sub}, nil
}

func (s *Stream) heartbeat(conn Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(wsControl{Method: "ping"}); err != nil {
				s.logger.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (s *Stream) readLoop(conn Conn, session uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(conn, session, err)
			return
		}
		s.handleFrame(data)
	}
}

func (s *Stream) handleClose(conn Conn, session uint64, cause error) {
	s.mu.Lock()
	if s.conn != conn || s.session != session {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	if s.stopHeartbeat != nil {
		close(s.stopHeartbeat)
		s.stopHeartbeat = nil
	}
	closing := s.closing
	runCtx := s.runCtx
	s.mu.Unlock()

	_ = conn.Close()
	if !isNormalClose(cause) {
		s.logger.Warn("stream transport error", zap.Error(cause))
		s.emit(domain.StreamSignal{Kind: domain.SignalError, Err: cause})
	}
	s.logger.Info("stream disconnected")
	s.emit(domain.StreamSignal{Kind: domain.SignalDisconnected, Err: cause})

	if closing || runCtx == nil {
		return
	}
	s.startReconnect(runCtx)
}

func (s *Stream) startReconnect(ctx context.Context) {
	s.mu.Lock()
	if s.reconnecting || s.closing {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()
	go s.reconnectLoop(ctx)
}

// reconnectLoop waits base×attempt before each dial. The attempt counter is
// reset only by a successful open; exceeding the cap emits GaveUp once.
func (s *Stream) reconnectLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.closing || s.conn != nil {
			s.reconnecting = false
			s.mu.Unlock()
			return
		}
		s.attempts++
		attempt := s.attempts
		if attempt > s.cfg.MaxReconnectAttempts {
			already := s.gaveUp
			s.gaveUp = true
			s.reconnecting = false
			s.mu.Unlock()
			if !already {
				s.logger.Error("stream reconnect attempts exhausted", zap.Int("max_attempts", s.cfg.MaxReconnectAttempts))
				s.emit(domain.StreamSignal{Kind: domain.SignalGaveUp, Attempt: attempt - 1})
			}
			return
		}
		s.mu.Unlock()

		delay := s.cfg.ReconnectBaseDelay * time.Duration(attempt)
		s.logger.Info("stream reconnect scheduled", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
			return
		case <-s.after(delay):
		}

		s.connectMu.Lock()
		if s.IsConnected() {
			s.connectMu.Unlock()
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
			return
		}
		err := s.open(ctx)
		s.connectMu.Unlock()
		if err == nil {
			return
		}
		s.logger.Warn("stream reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
		s.emit(domain.StreamSignal{Kind: domain.SignalError, Err: err, Attempt: attempt})
	}
}

func (s *Stream) handleFrame(data []byte) {
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Warn("malformed frame dropped", zap.Int("bytes", len(data)), zap.Error(err))
		return
	}

	switch frame.Channel {
	case "pong":
		return
	case "subscriptionResponse":
		s.logger.Debug("subscription acknowledged", zap.ByteString("data", frame.Data))
		return
	case "error":
		s.logger.Warn("venue reported error", zap.ByteString("data", frame.Data))
		return
	}

	if err := s.route(frame); err != nil {
		s.logger.Warn("frame dropped", zap.String("channel", frame.Channel), zap.Error(err))
	}
}

func (s *Stream) route(frame wsFrame) error {
	switch frame.Channel {
	case "allMids":
		ticks, err := decodeMids(frame.Data)
		if err != nil {
			return err
		}
		s.each(func(l domain.StreamListener) { l.OnPrices(ticks) })
	case "orderUpdates":
		updates, err := decodeOrderUpdates(frame.Data)
		if err != nil {
			return err
		}
		s.each(func(l domain.StreamListener) { l.OnOrderUpdates(updates) })
	case "userFills":
		batch, err := decodeFills(frame.Data)
		if err != nil {
			return err
		}
		s.each(func(l domain.StreamListener) { l.OnFills(batch) })
	case "userFundings":
		batch, err := decodeFundings(frame.Data)
		if err != nil {
			return err
		}
		s.each(func(l domain.StreamListener) { l.OnFundings(batch) })
	case "l2Book":
		book, err := decodeBook(frame.Data)
		if err != nil {
			return err
		}
		s.each(func(l domain.StreamListener) { l.OnBook(book) })
	case "trades":
		trades, err := decodeTrades(frame.Data)
		if err != nil {
			return err
		}
		s.each(func(l domain.StreamListener) { l.OnTrades(trades) })
	default:
		s.logger.Debug("unhandled channel", zap.String("channel", frame.Channel))
	}
	return nil
}

func (s *Stream) emit(signal domain.StreamSignal) {
	s.each(func(l domain.StreamListener) { l.OnSignal(signal) })
}

// each calls fn for every listener; a panicking listener is logged and does
// not prevent delivery to the rest.
func (s *Stream) each(fn func(domain.StreamListener)) {
	s.listenersMu.RLock()
	listeners := make([]domain.StreamListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("stream listener panicked", zap.Any("panic", r))
				}
			}()
			fn(l)
		}()
	}
}
