package minigame

import (
	"fmt"
	"math"
	"sort"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// Status is a boat's fate. Swans stay ACTIVE for the whole run.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusTagged Status = "TAGGED"
	StatusSafe   Status = "SAFE"
)

// Points awarded when the run ends
const (
	PointsSafe   = 2 // boat reached the safe zone
	PointsPerTag = 1 // swan caught a boat
)

// Config holds the simulation tunables. Speeds are plane units per
// second; the fixed tick is 50ms, giving the authoritative 20Hz rate.
type Config struct {
	PlaneWidth  float64
	PlaneHeight float64
	DurationMs  int64
	TickMs      int64

	TagRadius      float64
	SafeZoneX      float64
	SafeZoneY      float64
	SafeZoneRadius float64

	BoatSpeed float64
	SwanSpeed float64

	SprintMultiplier float64
	SprintDurationMs int64
	SprintCooldownMs int64
	SprintCharges    int

	DashMultiplier float64
	DashDurationMs int64
	DashCooldownMs int64
	DashCharges    int

	InputPerSecond int
}

// DefaultConfig returns the standard swan chase setup
func DefaultConfig() Config {
	return Config{
		PlaneWidth:       1000,
		PlaneHeight:      600,
		DurationMs:       60_000,
		TickMs:           50,
		TagRadius:        5,
		SafeZoneX:        900,
		SafeZoneY:        300,
		SafeZoneRadius:   60,
		BoatSpeed:        2.0,
		SwanSpeed:        2.3,
		SprintMultiplier: 1.75,
		SprintDurationMs: 1200,
		SprintCooldownMs: 5000,
		SprintCharges:    3,
		DashMultiplier:   2.5,
		DashDurationMs:   600,
		DashCooldownMs:   4000,
		DashCharges:      3,
		InputPerSecond:   30,
	}
}

// Apply merges per-item overrides from the quiz snapshot
func (c Config) Apply(o *quiz.MinigameConfig) Config {
	if o == nil {
		return c
	}
	if o.DurationSeconds > 0 {
		c.DurationMs = int64(o.DurationSeconds) * 1000
	}
	if o.TagRadius > 0 {
		c.TagRadius = o.TagRadius
	}
	if o.BoatSpeed > 0 {
		c.BoatSpeed = o.BoatSpeed
	}
	if o.SwanSpeed > 0 {
		c.SwanSpeed = o.SwanSpeed
	}
	return c
}

// ability tracks one cooldown-gated boost in sim time
type ability struct {
	activeUntilMs   int64
	cooldownUntilMs int64
	charges         int
}

// Participant is one player inside the simulation
type Participant struct {
	PlayerID string
	Name     string
	Team     types.Team
	X, Y     float64
	DirX     float64
	DirY     float64
	Status   Status
	Tags     int
	Points   int
	// SafeOrder numbers boats by arrival in the zone, starting at 1
	SafeOrder int

	boost ability

	inputWindow int64
	inputCount  int
}

// Seed is a player entering the game, in join order
type Seed struct {
	PlayerID string
	Name     string
}

// Game is the authoritative swan chase state. It is not safe for
// concurrent use; the owning session worker serializes all calls.
type Game struct {
	cfg          Config
	participants map[string]*Participant
	order        []string // deterministic iteration
	elapsedMs    int64
	safeCount    int
	ended        bool
	dropped      int // rate-limited inputs, for the log line at the end
}

// TagEvent reports one boat caught this tick
type TagEvent struct {
	SwanID string  `json:"swanId"`
	BoatID string  `json:"boatId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// SafeEvent reports one boat reaching the zone this tick
type SafeEvent struct {
	BoatID string `json:"boatId"`
	Order  int    `json:"order"`
}

// StepResult is everything one tick produced
type StepResult struct {
	Tags  []TagEvent
	Safes []SafeEvent
	Ended bool
}

// NewGame splits players alternately into boats and swans by join order
func NewGame(cfg Config, seeds []Seed) (*Game, error) {
	if len(seeds) < 2 {
		return nil, fmt.Errorf("swan chase needs at least 2 players, got %d", len(seeds))
	}

	g := &Game{
		cfg:          cfg,
		participants: make(map[string]*Participant, len(seeds)),
		order:        make([]string, 0, len(seeds)),
	}

	boats := 0
	swans := 0
	for i, s := range seeds {
		p := &Participant{
			PlayerID: s.PlayerID,
			Name:     s.Name,
			Status:   StatusActive,
		}
		if i%2 == 0 {
			p.Team = types.TeamBlue
			p.boost = ability{charges: cfg.SprintCharges}
			p.X = cfg.PlaneWidth * 0.05
			p.Y = spreadY(cfg.PlaneHeight, boats)
			boats++
		} else {
			p.Team = types.TeamWhite
			p.boost = ability{charges: cfg.DashCharges}
			p.X = cfg.PlaneWidth * 0.5
			p.Y = spreadY(cfg.PlaneHeight, swans)
			swans++
		}
		g.participants[p.PlayerID] = p
		g.order = append(g.order, p.PlayerID)
	}
	return g, nil
}

// spreadY staggers spawns down the plane so nobody overlaps
func spreadY(height float64, n int) float64 {
	slots := 16
	frac := float64(n%slots)/float64(slots) + 1.0/(2.0*float64(slots))
	return height * frac
}

// ApplyInput steers a participant. Direction is normalized server-side;
// a zero vector stops. Returns false when the input was dropped by the
// per-player rate limit.
func (g *Game) ApplyInput(playerID string, dirX, dirY float64, boost bool) bool {
	p, ok := g.participants[playerID]
	if !ok || g.ended || p.Status != StatusActive {
		return false
	}

	window := g.elapsedMs / 1000
	if p.inputWindow != window {
		p.inputWindow = window
		p.inputCount = 0
	}
	p.inputCount++
	if p.inputCount > g.cfg.InputPerSecond {
		g.dropped++
		return false
	}

	length := math.Hypot(dirX, dirY)
	if length < 1e-9 {
		p.DirX, p.DirY = 0, 0
	} else {
		p.DirX = dirX / length
		p.DirY = dirY / length
	}

	if boost {
		g.activateBoost(p)
	}
	return true
}

func (g *Game) activateBoost(p *Participant) {
	if p.boost.charges <= 0 || g.elapsedMs < p.boost.cooldownUntilMs {
		return
	}
	duration, cooldown := g.cfg.SprintDurationMs, g.cfg.SprintCooldownMs
	if p.Team == types.TeamWhite {
		duration, cooldown = g.cfg.DashDurationMs, g.cfg.DashCooldownMs
	}
	p.boost.charges--
	p.boost.activeUntilMs = g.elapsedMs + duration
	p.boost.cooldownUntilMs = g.elapsedMs + cooldown
}

// Step advances the simulation one fixed tick: move, then resolve tags,
// then resolve the safe zone, then check the end conditions.
func (g *Game) Step() StepResult {
	if g.ended {
		return StepResult{Ended: true}
	}

	g.elapsedMs += g.cfg.TickMs
	dt := float64(g.cfg.TickMs) / 1000.0

	for _, id := range g.order {
		p := g.participants[id]
		if p.Status != StatusActive {
			continue
		}
		speed := g.cfg.BoatSpeed
		mult := g.cfg.SprintMultiplier
		if p.Team == types.TeamWhite {
			speed = g.cfg.SwanSpeed
			mult = g.cfg.DashMultiplier
		}
		if g.elapsedMs > p.boost.activeUntilMs {
			mult = 1.0
		}
		p.X = clamp(p.X+p.DirX*speed*mult*dt, 0, g.cfg.PlaneWidth)
		p.Y = clamp(p.Y+p.DirY*speed*mult*dt, 0, g.cfg.PlaneHeight)
	}

	var result StepResult

	// Tag resolution, deterministic by join order
	for _, id := range g.order {
		boat := g.participants[id]
		if boat.Team != types.TeamBlue || boat.Status != StatusActive {
			continue
		}
		for _, sid := range g.order {
			swan := g.participants[sid]
			if swan.Team != types.TeamWhite {
				continue
			}
			if dist(boat.X, boat.Y, swan.X, swan.Y) <= g.cfg.TagRadius {
				boat.Status = StatusTagged
				swan.Tags++
				swan.Points += PointsPerTag
				result.Tags = append(result.Tags, TagEvent{
					SwanID: swan.PlayerID,
					BoatID: boat.PlayerID,
					X:      boat.X,
					Y:      boat.Y,
				})
				break
			}
		}
	}

	// Safe zone
	for _, id := range g.order {
		boat := g.participants[id]
		if boat.Team != types.TeamBlue || boat.Status != StatusActive {
			continue
		}
		if dist(boat.X, boat.Y, g.cfg.SafeZoneX, g.cfg.SafeZoneY) <= g.cfg.SafeZoneRadius {
			g.safeCount++
			boat.Status = StatusSafe
			boat.SafeOrder = g.safeCount
			boat.Points += PointsSafe
			result.Safes = append(result.Safes, SafeEvent{BoatID: boat.PlayerID, Order: boat.SafeOrder})
		}
	}

	if g.elapsedMs >= g.cfg.DurationMs || !g.anyActiveBoat() {
		g.ended = true
		result.Ended = true
	}
	return result
}

func (g *Game) anyActiveBoat() bool {
	for _, p := range g.participants {
		if p.Team == types.TeamBlue && p.Status == StatusActive {
			return true
		}
	}
	return false
}

// Ended reports whether the run is over
func (g *Game) Ended() bool {
	return g.ended
}

// Abort ends the run without standings, used when the host cancels
func (g *Game) Abort() {
	g.ended = true
}

// DroppedInputs returns how many inputs the rate limit swallowed
func (g *Game) DroppedInputs() int {
	return g.dropped
}

// AbilityView is the client-facing boost state
type AbilityView struct {
	Active     bool  `json:"active"`
	CooldownMs int64 `json:"cooldownMs"`
	Charges    int   `json:"charges"`
}

// ParticipantView is one participant as broadcast every tick
type ParticipantView struct {
	PlayerID string      `json:"playerId"`
	Name     string      `json:"name"`
	Team     types.Team  `json:"team"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Status   Status      `json:"status"`
	Tags     int         `json:"tags"`
	Points   int         `json:"points"`
	Boost    AbilityView `json:"boost"`
}

// ZoneView describes the safe zone circle
type ZoneView struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Snapshot is the authoritative per-tick state frame
type Snapshot struct {
	TimeRemainingMs int64             `json:"timeRemainingMs"`
	PlaneWidth      float64           `json:"planeWidth"`
	PlaneHeight     float64           `json:"planeHeight"`
	SafeZone        ZoneView          `json:"safeZone"`
	Participants    []ParticipantView `json:"participants"`
}

// Snapshot renders the current state for broadcast
func (g *Game) Snapshot() Snapshot {
	remaining := g.cfg.DurationMs - g.elapsedMs
	if remaining < 0 {
		remaining = 0
	}
	snap := Snapshot{
		TimeRemainingMs: remaining,
		PlaneWidth:      g.cfg.PlaneWidth,
		PlaneHeight:     g.cfg.PlaneHeight,
		SafeZone:        ZoneView{X: g.cfg.SafeZoneX, Y: g.cfg.SafeZoneY, Radius: g.cfg.SafeZoneRadius},
		Participants:    make([]ParticipantView, 0, len(g.participants)),
	}
	for _, id := range g.order {
		p := g.participants[id]
		cooldown := p.boost.cooldownUntilMs - g.elapsedMs
		if cooldown < 0 {
			cooldown = 0
		}
		snap.Participants = append(snap.Participants, ParticipantView{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Team:     p.Team,
			X:        p.X,
			Y:        p.Y,
			Status:   p.Status,
			Tags:     p.Tags,
			Points:   p.Points,
			Boost: AbilityView{
				Active:     g.elapsedMs <= p.boost.activeUntilMs && p.boost.activeUntilMs > 0,
				CooldownMs: cooldown,
				Charges:    p.boost.charges,
			},
		})
	}
	return snap
}

// Standing is one row of the final result
type Standing struct {
	PlayerID  string     `json:"playerId"`
	Name      string     `json:"name"`
	Team      types.Team `json:"team"`
	Points    int        `json:"points"`
	Tags      int        `json:"tags"`
	Status    Status     `json:"status"`
	SafeOrder int        `json:"safeOrder,omitempty"`
}

// Standings ranks participants by points; boats that reached safety
// earlier win ties, remaining ties order by player id.
func (g *Game) Standings() []Standing {
	rows := make([]Standing, 0, len(g.participants))
	for _, id := range g.order {
		p := g.participants[id]
		rows = append(rows, Standing{
			PlayerID:  p.PlayerID,
			Name:      p.Name,
			Team:      p.Team,
			Points:    p.Points,
			Tags:      p.Tags,
			Status:    p.Status,
			SafeOrder: p.SafeOrder,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		oi, oj := rows[i].SafeOrder, rows[j].SafeOrder
		if oi == 0 {
			oi = math.MaxInt32
		}
		if oj == 0 {
			oj = math.MaxInt32
		}
		if oi != oj {
			return oi < oj
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	return rows
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dist(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
