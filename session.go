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

// Package mqttlink is the MQTT session layer for command-driven devices:
// it manages the lifecycle of a single broker connection, tracks in-flight
// publish/subscribe operations including the QoS 2 handshakes, and bridges
// asynchronous protocol events to a notification channel consumed by an
// external command/response surface.
package mqttlink

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgeterm/mqttlink/engine"
)

// Per-connection size limits.
const (
	// MaxTopicLen is the maximum topic length in bytes.
	MaxTopicLen = 128
	// MaxClientIDLen is the maximum client identifier length in bytes.
	MaxClientIDLen = 64
)

// Family selects the broker address family.
type Family int

const (
	// FamilyIPv4 resolves the broker to an IPv4 address.
	FamilyIPv4 Family = iota
	// FamilyIPv6 resolves the broker to an IPv6 address.
	FamilyIPv6
)

// String returns the string representation of the address family.
func (f Family) String() string {
	if f == FamilyIPv6 {
		return "IPv6"
	}
	return "IPv4"
}

// NoSecTag marks a connection without a pre-provisioned TLS credential set.
const NoSecTag uint32 = 0

// Engine is the transport/protocol engine contract the session drives.
// *engine.Client satisfies it.
type Engine interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Abort()
	Publish(topic string, payload []byte, qos engine.QoS, retain, dup bool, id uint16) error
	Subscribe(topic string, qos engine.QoS, id uint16) error
	Unsubscribe(topic string, id uint16) error
	Release(id uint16) error
	Complete(id uint16) error
	Live() error
	KeepAliveTimeLeft() time.Duration
	Input(deadline time.Time) error
}

// ConnectRequest carries the full identity of one connect attempt.
type ConnectRequest struct {
	Family   Family
	ClientID string
	// Username for authentication, optionally empty.
	Username string
	// Password for authentication. A password without a username is
	// ignored, not an error.
	Password string
	Host     string
	Port     uint16
	// SecTag references a pre-provisioned TLS credential set;
	// NoSecTag disables TLS.
	SecTag uint32
}

// Status is the answer to the connection query form.
type Status struct {
	Connected bool
	ClientID  string
	Host      string
	Port      uint16
	SecTag    uint32
	Family    Family
}

// Session owns at most one active MQTT connection and serializes its
// lifecycle. Command-side operations run synchronously in the caller's
// goroutine; a dedicated driver goroutine owns all inbound I/O for the
// lifetime of a connection.
type Session struct {
	opts   *Options
	logger *slog.Logger

	// connected is the only state shared with the driver outside the
	// engine itself; the dispatcher clears it on transport-level
	// disconnect or CONNACK failure.
	connected atomic.Bool

	// eng is read lock-free by the dispatcher on the driver goroutine,
	// so it lives outside the lifecycle mutex.
	eng atomic.Pointer[engineBox]

	mu     sync.Mutex // guards driver and the identity fields below
	driver *driver

	clientID string
	host     string
	port     uint16
	secTag   uint32
	family   Family

	pubID idCounter
	subID idCounter

	streamOpen atomic.Bool

	payloadBuf []byte
	notify     chan Notification
}

// engineBox wraps the engine interface so it can sit behind an atomic
// pointer.
type engineBox struct {
	e Engine
}

// New creates a session.
func New(opts ...Option) *Session {
	options := NewOptions()
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		opts:       options,
		logger:     logger,
		payloadBuf: make([]byte, options.PayloadBufferSize),
		notify:     make(chan Notification, options.NotifyBuffer),
	}
}

// Notifications returns the channel carrying one notification per inbound
// protocol event. The channel is never closed; when the consumer falls
// behind, new notifications are dropped with a warning.
func (s *Session) Notifications() <-chan Notification {
	return s.notify
}

// Connected reports whether a session is currently active.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Status reports the connection query form: the connected flag plus the
// identity of the most recent connect attempt.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Connected: s.connected.Load(),
		ClientID:  s.clientID,
		Host:      s.host,
		Port:      s.port,
		SecTag:    s.secTag,
		Family:    s.family,
	}
}

// Connect resolves the broker, performs the engine handshake, and starts
// the session driver. It is synchronous with respect to handshake
// completion; the driver owns all further I/O.
func (s *Session) Connect(ctx context.Context, req ConnectRequest) error {
	if s.connected.Load() {
		return ErrAlreadyConnected
	}

	if len(req.ClientID) == 0 || len(req.ClientID) > MaxClientIDLen {
		return fmt.Errorf("%w: client id length %d", ErrInvalidArgument, len(req.ClientID))
	}
	if req.Host == "" {
		return fmt.Errorf("%w: empty broker host", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	addr, err := s.resolve(ctx, req.Family, req.Host)
	if err != nil {
		return &ResolutionError{Host: req.Host, Err: err}
	}

	cfg := engine.Config{
		Addr:           netip.AddrPortFrom(addr, req.Port).String(),
		Host:           req.Host,
		ClientID:       req.ClientID,
		CleanSession:   s.opts.CleanSession,
		KeepAlive:      s.opts.KeepAlive,
		ConnectTimeout: s.opts.ConnectTimeout,
		BufferSize:     s.opts.BufferSize,
		WebSocket:      s.opts.WebSocket,
		Handler:        s.handleEvent,
		Logger:         s.logger,
	}

	// A password without a username is ignored.
	if req.Username != "" {
		cfg.Username = req.Username
		if req.Password != "" {
			cfg.Password = []byte(req.Password)
		}
	}

	if req.SecTag != NoSecTag {
		if s.opts.TLSProvider == nil {
			return ErrNoTLSProvider
		}
		tlsConfig, err := s.opts.TLSProvider(req.SecTag, req.Host)
		if err != nil {
			return fmt.Errorf("mqttlink: security tag %d: %w", req.SecTag, err)
		}
		tlsConfig = tlsConfig.Clone()
		// Peer verification is required whenever TLS is enabled.
		tlsConfig.InsecureSkipVerify = false
		cfg.TLS = tlsConfig
	}

	eng := s.opts.engineFactory(cfg)
	if err := eng.Connect(ctx); err != nil {
		return &HandshakeError{Err: err}
	}

	s.eng.Store(&engineBox{e: eng})
	s.clientID = req.ClientID
	s.host = req.Host
	s.port = req.Port
	s.secTag = req.SecTag
	s.family = req.Family

	s.connected.Store(true)
	s.driver = s.startDriver(eng)

	s.logger.Info("session connected",
		"client_id", req.ClientID,
		"broker", cfg.Addr,
		"family", req.Family.String(),
		"tls", req.SecTag != NoSecTag)

	return nil
}

// Disconnect sends the protocol disconnect, waits for the driver to
// terminate (bounded by the keepalive interval), and releases the session's
// broker reference unconditionally. It returns the send-disconnect error,
// if any.
func (s *Session) Disconnect() error {
	if !s.connected.Load() {
		return ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	box := s.eng.Load()
	if box == nil {
		return ErrNotConnected
	}

	sendErr := box.e.Disconnect()
	if sendErr != nil {
		s.logger.Error("disconnect send failed", "error", sendErr)
	}

	if s.driver != nil {
		if !s.driver.join(s.opts.KeepAlive) {
			s.logger.Warn("session driver did not terminate in time")
		}
		s.driver = nil
	}

	// Release the broker reference regardless of how the join went.
	s.eng.Store(nil)
	s.connected.Store(false)

	s.logger.Info("session closed", "client_id", s.clientID)
	return sendErr
}

// currentEngine returns the active engine, or nil when no session is
// active. It never takes the lifecycle mutex, so the dispatcher may call
// it while Disconnect is waiting for the driver to join.
func (s *Session) currentEngine() Engine {
	if !s.connected.Load() {
		return nil
	}
	if box := s.eng.Load(); box != nil {
		return box.e
	}
	return nil
}

func (s *Session) resolve(ctx context.Context, family Family, host string) (netip.Addr, error) {
	network := "ip4"
	if family == FamilyIPv6 {
		network = "ip6"
	}

	// The host may already be a literal address of the right family.
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Is4() == (family == FamilyIPv4) {
			return addr, nil
		}
		return netip.Addr{}, fmt.Errorf("address family mismatch for %q", host)
	}

	addrs, err := s.opts.Resolver.LookupNetIP(ctx, network, host)
	if err != nil {
		return netip.Addr{}, err
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("no %s address for %q", network, host)
	}
	return addrs[0].Unmap(), nil
}
