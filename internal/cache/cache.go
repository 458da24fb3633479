package cache

import (
	"sync"
	"time"
)

// RejoinTicket is what a redeemed rejoin token resolves to: the binding
// that attaches a fresh socket to an existing player.
type RejoinTicket struct {
	SessionCode string `json:"sessionCode"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	Avatar      string `json:"avatar,omitempty"`
}

// Cache backs the short-lived cross-replica state: live session code
// reservations and single-use rejoin tokens. Redis serves production;
// the in-memory store covers dev, tests and the nil-Redis case.
type Cache interface {
	// ReserveCode claims a session code for the reservation TTL. It
	// returns false when another replica already holds the code.
	ReserveCode(code string, ttl time.Duration) (bool, error)

	// ReleaseCode frees a code once its session ends
	ReleaseCode(code string) error

	// StoreRejoinTicket stores a token with its TTL
	StoreRejoinTicket(token string, ticket RejoinTicket, ttl time.Duration) error

	// ConsumeRejoinTicket atomically fetches and deletes a token.
	// Returns nil when the token is unknown, expired or already used.
	ConsumeRejoinTicket(token string) (*RejoinTicket, error)

	Close() error
}

// New selects the backend: Redis when an address is configured,
// otherwise the in-memory store.
func New(redisAddr string) Cache {
	if redisAddr == "" {
		return NewMemory()
	}
	return NewRedis(redisAddr)
}

// Memory is a mutex-and-map Cache with lazy expiry
type Memory struct {
	mu      sync.Mutex
	codes   map[string]time.Time
	tickets map[string]memoryTicket

	// now is swappable so tests can step time
	now func() time.Time
}

type memoryTicket struct {
	ticket    RejoinTicket
	expiresAt time.Time
}

// NewMemory creates an in-memory cache
func NewMemory() *Memory {
	return &Memory{
		codes:   make(map[string]time.Time),
		tickets: make(map[string]memoryTicket),
		now:     time.Now,
	}
}

// SetNow swaps the clock for tests
func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// ReserveCode claims a code until its TTL elapses
func (m *Memory) ReserveCode(code string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, held := m.codes[code]; held && now.Before(until) {
		return false, nil
	}
	m.codes[code] = now.Add(ttl)
	return true, nil
}

// ReleaseCode frees a code reservation
func (m *Memory) ReleaseCode(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, code)
	return nil
}

// StoreRejoinTicket stores a token
func (m *Memory) StoreRejoinTicket(token string, ticket RejoinTicket, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[token] = memoryTicket{ticket: ticket, expiresAt: m.now().Add(ttl)}
	return nil
}

// ConsumeRejoinTicket fetches and deletes a token in one step
func (m *Memory) ConsumeRejoinTicket(token string) (*RejoinTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.tickets[token]
	if !ok {
		return nil, nil
	}
	delete(m.tickets, token)
	if m.now().After(entry.expiresAt) {
		return nil, nil
	}
	ticket := entry.ticket
	return &ticket, nil
}

// Close is a no-op for the memory backend
func (m *Memory) Close() error {
	return nil
}

var _ Cache = (*Memory)(nil)
