package mqttlink

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/edgeterm/mqttlink/engine"
)

// Resolver looks up broker addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// TLSProvider resolves a security tag to the pre-provisioned TLS credential
// set for a broker host. Peer verification is always enforced on the
// returned configuration.
type TLSProvider func(secTag uint32, host string) (*tls.Config, error)

// Options contains session configuration.
type Options struct {
	// KeepAlive is the keep-alive interval; it also bounds the driver
	// join during disconnect.
	KeepAlive time.Duration
	// ConnectTimeout bounds resolution and the engine handshake.
	ConnectTimeout time.Duration
	// BufferSize is the engine receive/transmit buffer size.
	BufferSize int
	// PayloadBufferSize is the inbound publish payload buffer size.
	PayloadBufferSize int
	// CleanSession requests a fresh broker session on connect.
	CleanSession bool
	// WebSocket selects the engine's WebSocket transport.
	WebSocket bool
	// NotifyBuffer is the notification channel capacity.
	NotifyBuffer int
	// Resolver performs broker hostname lookups.
	Resolver Resolver
	// TLSProvider maps security tags to TLS configurations. Required for
	// connect requests carrying a security tag.
	TLSProvider TLSProvider
	// Logger for session diagnostics.
	Logger *slog.Logger

	engineFactory func(engine.Config) Engine
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		KeepAlive:         engine.DefaultKeepAlive,
		ConnectTimeout:    engine.DefaultConnectTimeout,
		BufferSize:        engine.DefaultBufferSize,
		PayloadBufferSize: engine.DefaultBufferSize,
		CleanSession:      true,
		NotifyBuffer:      64,
		Resolver:          net.DefaultResolver,
		engineFactory: func(cfg engine.Config) Engine {
			return engine.NewClient(cfg)
		},
	}
}

// Option is a functional option for configuring the session.
type Option func(*Options)

// WithKeepAlive sets the keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(o *Options) {
		o.KeepAlive = d
	}
}

// WithConnectTimeout sets the connect timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = d
	}
}

// WithBufferSize sets the engine receive/transmit buffer size.
func WithBufferSize(size int) Option {
	return func(o *Options) {
		o.BufferSize = size
	}
}

// WithPayloadBufferSize sets the inbound payload buffer size.
func WithPayloadBufferSize(size int) Option {
	return func(o *Options) {
		o.PayloadBufferSize = size
	}
}

// WithCleanSession sets the clean session flag.
func WithCleanSession(clean bool) Option {
	return func(o *Options) {
		o.CleanSession = clean
	}
}

// WithWebSocket selects the WebSocket transport.
func WithWebSocket(enabled bool) Option {
	return func(o *Options) {
		o.WebSocket = enabled
	}
}

// WithNotifyBuffer sets the notification channel capacity.
func WithNotifyBuffer(n int) Option {
	return func(o *Options) {
		o.NotifyBuffer = n
	}
}

// WithResolver sets the broker hostname resolver.
func WithResolver(r Resolver) Option {
	return func(o *Options) {
		o.Resolver = r
	}
}

// WithTLSProvider sets the security tag credential provider.
func WithTLSProvider(p TLSProvider) Option {
	return func(o *Options) {
		o.TLSProvider = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithEngineFactory replaces the protocol engine constructor. Intended for
// instrumentation and tests.
func WithEngineFactory(f func(engine.Config) Engine) Option {
	return func(o *Options) {
		o.engineFactory = f
	}
}
