package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for the sheet server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string

	// HTTP timeouts.
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// CallTimeout bounds how long a request waits for the runtime goroutine.
	// Default: 5 seconds.
	CallTimeout time.Duration

	// WebSocket settings.

	// ReadBufferSize and WriteBufferSize size the upgrader buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header of WebSocket upgrades.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// PingInterval is the time between keepalive pings. Clients that do not
	// answer within PongTimeout are dropped.
	PingInterval time.Duration
	PongTimeout  time.Duration

	// MessageWriteTimeout bounds a single WebSocket write.
	MessageWriteTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 64KB.
	MaxMessageSize int64

	// SendQueue is the per-client buffer of pending updates. A client whose
	// buffer fills up is disconnected.
	// Default: 256.
	SendQueue int

	// SnapshotKey is the store key the sheet is saved under.
	// Default: "sheet.json".
	SnapshotKey string

	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:             ":8080",
		ReadHeaderTimeout:   5 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		IdleTimeout:         120 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		CallTimeout:         5 * time.Second,
		ReadBufferSize:      4096,
		WriteBufferSize:     4096,
		CheckOrigin:         SameOriginCheck,
		PingInterval:        30 * time.Second,
		PongTimeout:         60 * time.Second,
		MessageWriteTimeout: 10 * time.Second,
		MaxMessageSize:      64 * 1024,
		SendQueue:           256,
		SnapshotKey:         "sheet.json",
	}
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.CallTimeout == 0 {
		out.CallTimeout = d.CallTimeout
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.PingInterval == 0 {
		out.PingInterval = d.PingInterval
	}
	if out.PongTimeout == 0 {
		out.PongTimeout = d.PongTimeout
	}
	if out.MessageWriteTimeout == 0 {
		out.MessageWriteTimeout = d.MessageWriteTimeout
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.SendQueue == 0 {
		out.SendQueue = d.SendQueue
	}
	if out.SnapshotKey == "" {
		out.SnapshotKey = d.SnapshotKey
	}
	return &out
}

// SameOriginCheck accepts WebSocket upgrades whose Origin host matches the
// request host, and requests without an Origin header.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}
