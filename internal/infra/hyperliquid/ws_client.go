package hyperliquid

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn is one open transport session.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type WSDialer struct {
	url         string
	dialer      *websocket.Dialer
	readTimeout time.Duration
	logger      *zap.Logger
}

func NewWSDialer(url string, readTimeout time.Duration, logger *zap.Logger) *WSDialer {
	return &WSDialer{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		readTimeout: readTimeout,
		logger:      logger.Named("ws"),
	}
}

func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	d.logger.Info("ws connect start", zap.String("url", d.url))
	conn, _, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		d.logger.Error("ws connect failed", zap.String("url", d.url), zap.Error(err))
		return nil, err
	}
	d.logger.Info("ws connect success", zap.String("url", d.url))
	return &wsConn{conn: conn, readTimeout: d.readTimeout}, nil
}

// wsConn serializes writes; gorilla allows one concurrent writer and the
// heartbeat writes from its own goroutine.
type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	writeMu     sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return c.conn.Close()
}

// isNormalClose reports whether err is the expected result of a local or
// peer-initiated orderly close.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
