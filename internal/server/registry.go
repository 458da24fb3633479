package server

import (
	"sync"
	"time"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// tracked is the presence record of one socket
type tracked struct {
	c        *client
	lastSeen time.Time
	quality  types.ConnectionQuality
}

// Registry watches socket liveness. Any inbound frame counts as a
// heartbeat; a sweeper grades the silence into good, poor or offline and
// reports player quality changes to the session worker.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*tracked

	cfg Config
	now func() time.Time

	// onQuality posts the verdict into the owning session's worker
	onQuality func(code, playerID string, q types.ConnectionQuality)

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewRegistry creates a registry with the configured thresholds
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		conns: make(map[string]*tracked),
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		stop:  make(chan struct{}),
	}
}

// SetNow injects a clock for tests
func (r *Registry) SetNow(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetQualitySink wires the callback that posts quality changes to the
// session workers. Must be set before Run.
func (r *Registry) SetQualitySink(fn func(code, playerID string, q types.ConnectionQuality)) {
	r.onQuality = fn
}

// Track starts watching a socket
func (r *Registry) Track(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = &tracked{c: c, lastSeen: r.now(), quality: types.QualityGood}
}

// Touch records socket activity. Every parsed frame counts.
func (r *Registry) Touch(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.conns[socketID]; ok {
		t.lastSeen = r.now()
	}
}

// Drop stops watching a socket, returning its last binding so the caller
// can start the disconnect grace
func (r *Registry) Drop(socketID string) (code, playerID string) {
	r.mu.Lock()
	t, ok := r.conns[socketID]
	if ok {
		delete(r.conns, socketID)
	}
	r.mu.Unlock()
	if !ok {
		return "", ""
	}
	code, _, playerID = t.c.binding()
	return code, playerID
}

// Count returns the number of tracked sockets
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Sweep grades every socket's heartbeat gap and reports changes. Exposed
// for tests; Run calls it on the sweep cadence.
func (r *Registry) Sweep() {
	type verdict struct {
		code     string
		playerID string
		quality  types.ConnectionQuality
	}
	var changed []verdict

	r.mu.Lock()
	now := r.now()
	for _, t := range r.conns {
		silent := now.Sub(t.lastSeen)
		q := types.QualityGood
		switch {
		case silent > r.cfg.OfflineThreshold:
			q = types.QualityOffline
		case silent > r.cfg.PoorThreshold:
			q = types.QualityPoor
		}
		if q == t.quality {
			continue
		}
		t.quality = q
		code, _, playerID := t.c.binding()
		if playerID != "" {
			changed = append(changed, verdict{code: code, playerID: playerID, quality: q})
		}
	}
	r.mu.Unlock()

	for _, v := range changed {
		logging.LogSocketEvent("connection_quality_changed", v.code, v.playerID, map[string]interface{}{
			"quality": v.quality.String(),
		})
		if r.onQuality != nil {
			r.onQuality(v.code, v.playerID, v.quality)
		}
	}
}

// Run drives the sweeper until Close
func (r *Registry) Run() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.HeartbeatSweep)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stop:
				return
			}
		}
	}()
}

// Close stops the sweeper
func (r *Registry) Close() {
	close(r.stop)
	r.wg.Wait()
}
