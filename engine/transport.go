package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/gorilla/websocket"
)

// dial establishes the transport connection according to the configuration:
// plain TCP by default, TLS when a TLS configuration is present, WebSocket
// when requested.
func (c *Client) dial(ctx context.Context) error {
	if c.cfg.WebSocket {
		return c.dialWS(ctx)
	}
	if c.cfg.TLS != nil {
		return c.dialTLS(ctx)
	}
	return c.dialTCP(ctx)
}

func (c *Client) dialTCP(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return err
	}

	c.conn = conn
	return nil
}

func (c *Client) dialTLS(ctx context.Context) error {
	tlsConfig := c.cfg.TLS.Clone()
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = c.cfg.Host
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.cfg.ConnectTimeout},
		Config:    tlsConfig,
	}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return err
	}

	c.conn = conn
	return nil
}

func (c *Client) dialWS(ctx context.Context) error {
	scheme := "ws"
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.ConnectTimeout,
		Subprotocols:     []string{"mqtt"},
	}
	if c.cfg.TLS != nil {
		scheme = "wss"
		tlsConfig := c.cfg.TLS.Clone()
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = c.cfg.Host
		}
		dialer.TLSClientConfig = tlsConfig
	}

	path := c.cfg.WebSocketPath
	if path == "" {
		path = DefaultWebSocketPath
	}
	wsURL := fmt.Sprintf("%s://%s%s", scheme, c.cfg.Addr, path)

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}

	c.wsConn = conn
	return nil
}

// closeConn closes whichever transport connection is open. The fields are
// left in place: the input goroutine may still be blocked on them and must
// see a closed-connection error, not a nil dereference.
func (c *Client) closeConn() {
	if c.wsConn != nil {
		c.wsConn.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
