package server

import "time"

// Config holds server configuration
type Config struct {
	Addr           string // listen address, e.g. ":8080"
	DataDir        string // SQLite directory
	RedisAddr      string // empty selects the in-memory cache
	JWTSecret      string // secret for host token signing
	PlatformSecret string // shared secret for /api/internal endpoints
	AllowedOrigins []string
	LogLevel       string

	// Gameplay and transport knobs. Zero values take the defaults.
	HeartbeatSweep  time.Duration // sweeper cadence
	PoorThreshold   time.Duration // silence before quality drops to poor
	OfflineThreshold time.Duration // silence before a socket counts as offline
	DisconnectGrace time.Duration // rebind window before PLAYER_LEFT
	RejoinTokenTTL  time.Duration
	CommandBuffer   int // per-session command channel capacity
	QueueCap        int // per-socket outbound queue capacity
	OverflowLimit   int // drops before a saturated socket is closed
	JoinDeadline    time.Duration // time a fresh socket has to send its join frame
	MalformedLimit  int           // malformed frames before the socket is closed
}

// withDefaults fills the zero-valued knobs
func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.HeartbeatSweep <= 0 {
		c.HeartbeatSweep = 5 * time.Second
	}
	if c.PoorThreshold <= 0 {
		c.PoorThreshold = 30 * time.Second
	}
	if c.OfflineThreshold <= 0 {
		c.OfflineThreshold = 60 * time.Second
	}
	if c.DisconnectGrace <= 0 {
		c.DisconnectGrace = 30 * time.Second
	}
	if c.RejoinTokenTTL <= 0 {
		c.RejoinTokenTTL = 10 * time.Minute
	}
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = 256
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 256
	}
	if c.OverflowLimit <= 0 {
		c.OverflowLimit = 512
	}
	if c.JoinDeadline <= 0 {
		c.JoinDeadline = 10 * time.Second
	}
	if c.MalformedLimit <= 0 {
		c.MalformedLimit = 8
	}
	return c
}
