// Copyright 2026 Edgeterm Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine implements an MQTT 3.1.1 protocol engine over TCP, TLS,
// or WebSocket transports. It owns the wire codec and the connection and
// reports every inbound protocol event through a synchronous callback;
// session semantics (lifecycle, packet id allocation, QoS bookkeeping)
// belong to the caller.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Protocol constants.
const (
	// ProtocolName is the MQTT protocol name.
	ProtocolName = "MQTT"

	// ProtocolLevel is the MQTT 3.1.1 protocol level.
	ProtocolLevel = 4
)

// Default values.
const (
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultBufferSize     = 1500 // one ethernet MTU
	DefaultWebSocketPath  = "/mqtt"
)

// Config carries the full connection configuration. It is consumed by
// NewClient; the engine never mutates it afterwards.
type Config struct {
	// Addr is the resolved broker address, host:port.
	Addr string
	// Host is the broker hostname, used for TLS server name verification.
	Host string
	// ClientID is the client identifier.
	ClientID string
	// Username for authentication, optionally empty.
	Username string
	// Password for authentication. Ignored when Username is empty.
	Password []byte
	// CleanSession requests a fresh session on connect.
	CleanSession bool
	// KeepAlive is the keep-alive interval.
	KeepAlive time.Duration
	// ConnectTimeout bounds the transport handshake.
	ConnectTimeout time.Duration
	// WriteTimeout bounds individual packet writes.
	WriteTimeout time.Duration
	// BufferSize is the receive/transmit buffer size in bytes.
	BufferSize int
	// TLS enables a TLS transport when non-nil.
	TLS *tls.Config
	// WebSocket selects the WebSocket transport.
	WebSocket bool
	// WebSocketPath is the WebSocket endpoint path.
	WebSocketPath string
	// Handler receives every inbound protocol event.
	Handler EventHandler
	// Logger for engine diagnostics.
	Logger *slog.Logger
}

// Client is an MQTT 3.1.1 protocol engine bound to a single connection.
//
// The caller contract mirrors the packet flow: exactly one goroutine drives
// Input/Live; command-side operations (Publish, Subscribe, Unsubscribe,
// Disconnect) may run concurrently with it, serialized internally per write.
type Client struct {
	cfg     Config
	conn    net.Conn
	wsConn  *websocket.Conn
	br      *bufio.Reader
	rxBuf   []byte
	handler EventHandler
	logger  *slog.Logger

	closed atomic.Bool

	writeMu sync.Mutex

	pingMu          sync.Mutex
	lastSend        time.Time
	pingOutstanding bool
}

// NewClient creates an engine client from the configuration. Zero-valued
// timing and sizing fields are replaced by defaults.
func NewClient(cfg Config) *Client {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := cfg.Handler
	if handler == nil {
		handler = func(*Event) {}
	}

	return &Client{
		cfg:     cfg,
		rxBuf:   make([]byte, cfg.BufferSize),
		handler: handler,
		logger:  logger,
	}
}

// Connect dials the broker and sends the CONNECT packet. The CONNACK is
// delivered later as an EvtConnAck event from Input; a refused connection
// therefore surfaces through the event handler, not here.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	if c.conn != nil {
		c.br = bufio.NewReaderSize(c.conn, c.cfg.BufferSize)
	}

	packet := &ConnectPacket{
		CleanSession: c.cfg.CleanSession,
		KeepAlive:    uint16(c.cfg.KeepAlive.Seconds()),
		ClientID:     c.cfg.ClientID,
	}
	if c.cfg.Username != "" {
		packet.UsernameFlag = true
		packet.Username = c.cfg.Username
		if len(c.cfg.Password) > 0 {
			packet.PasswordFlag = true
			packet.Password = c.cfg.Password
		}
	}

	if err := c.writePacket(packet); err != nil {
		c.closed.Store(true)
		c.closeConn()
		return err
	}
	return nil
}

// Publish sends a PUBLISH packet. id is ignored for QoS 0.
func (c *Client) Publish(topic string, payload []byte, qos QoS, retain, dup bool, id uint16) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.writePacket(&PublishPacket{
		Topic:     topic,
		Payload:   payload,
		QoS:       qos,
		Retain:    retain,
		Duplicate: dup,
		ID:        id,
	})
}

// Subscribe sends a SUBSCRIBE packet for a single topic.
func (c *Client) Subscribe(topic string, qos QoS, id uint16) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.writePacket(&SubscribePacket{ID: id, Topic: topic, QoS: qos})
}

// Unsubscribe sends an UNSUBSCRIBE packet for a single topic.
func (c *Client) Unsubscribe(topic string, id uint16) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.writePacket(&UnsubscribePacket{ID: id, Topic: topic})
}

// Release sends the QoS 2 PUBREL step for a message id.
func (c *Client) Release(id uint16) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.writePacket(&PubRelPacket{ID: id})
}

// Complete sends the QoS 2 PUBCOMP step for a message id.
func (c *Client) Complete(id uint16) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.writePacket(&PubCompPacket{ID: id})
}

// Disconnect sends the DISCONNECT packet, closes the transport, and raises
// the disconnect event synchronously in the caller's goroutine.
func (c *Client) Disconnect() error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	err := c.writePacket(&DisconnectPacket{})
	c.terminate(0)
	return err
}

// Abort closes the transport without protocol ceremony and without raising
// an event. Safe to call more than once.
func (c *Client) Abort() {
	if c.closed.CompareAndSwap(false, true) {
		c.closeConn()
	}
}

// terminate closes the transport and raises EvtDisconnect exactly once.
func (c *Client) terminate(result int) {
	if c.closed.CompareAndSwap(false, true) {
		c.closeConn()
		c.handler(&Event{Type: EvtDisconnect, Result: result})
	}
}

// KeepAliveTimeLeft returns the time remaining until the next keepalive
// transmission is due.
func (c *Client) KeepAliveTimeLeft() time.Duration {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()

	left := c.cfg.KeepAlive - time.Since(c.lastSend)
	if left < 0 {
		return 0
	}
	return left
}

// Live sends a PINGREQ if the keepalive interval has elapsed since the last
// transmission; otherwise it is a no-op.
func (c *Client) Live() error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	c.pingMu.Lock()
	due := time.Since(c.lastSend) >= c.cfg.KeepAlive
	outstanding := c.pingOutstanding
	c.pingMu.Unlock()

	if !due || outstanding {
		return nil
	}

	if err := c.writePacket(&PingReqPacket{}); err != nil {
		return err
	}

	c.pingMu.Lock()
	c.pingOutstanding = true
	c.pingMu.Unlock()
	return nil
}

// Input blocks until inbound protocol data arrives or the deadline elapses,
// then decodes and dispatches every available packet to the event handler.
// It returns ErrInputTimeout on an idle deadline; any other error is fatal
// to the connection and has already raised the disconnect event.
func (c *Client) Input(deadline time.Time) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	if c.wsConn != nil {
		return c.inputWS(deadline)
	}
	return c.inputTCP(deadline)
}

func (c *Client) inputTCP(deadline time.Time) error {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return c.fail(err)
	}

	first, err := c.br.ReadByte()
	if err != nil {
		if isTimeout(err) {
			return ErrInputTimeout
		}
		return c.fail(err)
	}

	// A packet has started; bound the remainder by the write timeout
	// rather than the keepalive deadline.
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return c.fail(err)
	}
	if err := c.readAndProcess(c.br, first); err != nil {
		return c.fail(err)
	}

	// Drain whatever the reader already buffered.
	for c.br.Buffered() > 0 {
		first, err := c.br.ReadByte()
		if err != nil {
			return c.fail(err)
		}
		if err := c.readAndProcess(c.br, first); err != nil {
			return c.fail(err)
		}
	}
	return nil
}

func (c *Client) inputWS(deadline time.Time) error {
	if err := c.wsConn.SetReadDeadline(deadline); err != nil {
		return c.fail(err)
	}

	_, data, err := c.wsConn.ReadMessage()
	if err != nil {
		if isTimeout(err) {
			return ErrInputTimeout
		}
		return c.fail(err)
	}

	r := bytes.NewReader(data)
	for r.Len() > 0 {
		first, err := r.ReadByte()
		if err != nil {
			return c.fail(err)
		}
		if err := c.readAndProcess(r, first); err != nil {
			return c.fail(err)
		}
	}
	return nil
}

// readAndProcess reads the remainder of one packet whose first header byte
// has been consumed, decodes it, and dispatches the corresponding event.
func (c *Client) readAndProcess(r io.Reader, first byte) error {
	packetType := PacketType(first >> 4)
	flags := first & 0x0F

	remaining, _, err := decodeVarInt(r)
	if err != nil {
		return err
	}
	if remaining > len(c.rxBuf) {
		return ErrPacketTooLarge
	}

	body := c.rxBuf[:remaining]
	if remaining > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return err
		}
	}

	packet, err := decodePacket(packetType, flags, body)
	if err != nil {
		return err
	}

	c.process(packet)
	return nil
}

// process translates a decoded packet into an event.
func (c *Client) process(packet Packet) {
	switch p := packet.(type) {
	case *ConnAckPacket:
		c.handler(&Event{Type: EvtConnAck, Result: int(p.ReturnCode)})
	case *PublishPacket:
		c.handler(&Event{
			Type: EvtPublish,
			ID:   p.ID,
			Publish: &InboundPublish{
				Topic:     p.Topic,
				QoS:       p.QoS,
				ID:        p.ID,
				Retain:    p.Retain,
				Duplicate: p.Duplicate,
				payload:   p.Payload,
			},
		})
	case *PubAckPacket:
		c.handler(&Event{Type: EvtPubAck, ID: p.ID})
	case *PubRecPacket:
		c.handler(&Event{Type: EvtPubRec, ID: p.ID})
	case *PubRelPacket:
		c.handler(&Event{Type: EvtPubRel, ID: p.ID})
	case *PubCompPacket:
		c.handler(&Event{Type: EvtPubComp, ID: p.ID})
	case *SubAckPacket:
		result := 0
		for _, code := range p.ReturnCodes {
			if code == SubackFailure {
				result = int(code)
			}
		}
		c.handler(&Event{Type: EvtSubAck, ID: p.ID, Result: result})
	case *UnsubAckPacket:
		c.handler(&Event{Type: EvtUnsubAck, ID: p.ID})
	case *PingRespPacket:
		c.pingMu.Lock()
		c.pingOutstanding = false
		c.pingMu.Unlock()
		c.handler(&Event{Type: EvtPingResp})
	}
}

// fail terminates the connection on a fatal receive error.
func (c *Client) fail(err error) error {
	c.logger.Debug("engine: input failed", "error", err)
	c.terminate(-1)
	return err
}

func (c *Client) writePacket(p Packet) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.wsConn != nil {
		err = c.wsConn.WriteMessage(websocket.BinaryMessage, data)
	} else {
		if derr := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); derr != nil {
			return derr
		}
		_, err = c.conn.Write(data)
	}
	if err != nil {
		return err
	}

	c.pingMu.Lock()
	c.lastSend = time.Now()
	c.pingMu.Unlock()
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
