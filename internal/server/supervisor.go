package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/auth"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/cache"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/minigame"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/session"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// cmdKind tags what a worker command carries
type cmdKind int

const (
	cmdFrame        cmdKind = iota // a client frame
	cmdRebind                      // rejoin-token redemption, playerID pre-resolved
	cmdTimerLock                   // auto-lock timer fired
	cmdDisconnect                  // a bound socket dropped
	cmdAnnounceLeft                // disconnect grace elapsed
	cmdQuality                     // sweeper verdict
	cmdArchive                     // platform archive hook
)

// command is one unit of work for a session worker. Everything that
// mutates a session flows through its channel, in order.
type command struct {
	kind     cmdKind
	c        *client
	cmdType  protocol.CommandType
	payload  json.RawMessage
	playerID string
	gen      int
	quality  types.ConnectionQuality
	reply    chan error
}

// worker owns one session: its command channel, its item timer and the
// minigame tick loop all run on this goroutine.
type worker struct {
	sup   *Supervisor
	state *session.State
	cmds  chan command
	done  chan struct{}

	game     *minigame.Game
	gameItem string
	ticker   *time.Ticker
}

// Supervisor manages the per-session workers and routes their events
// through the hub.
type Supervisor struct {
	cfg      Config
	sessions *session.Store
	hub      *Hub
	cache    cache.Cache
	auth     *auth.Auth
	registry *Registry
	now      func() time.Time

	mu      sync.Mutex
	workers map[string]*worker
}

// NewSupervisor wires the supervisor over its collaborators
func NewSupervisor(cfg Config, sessions *session.Store, hub *Hub, c cache.Cache, a *auth.Auth) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		sessions: sessions,
		hub:      hub,
		cache:    c,
		auth:     a,
		now:      func() time.Time { return time.Now().UTC() },
		workers:  make(map[string]*worker),
	}
}

// SetRegistry wires the presence registry so successful binds refresh it
func (s *Supervisor) SetRegistry(r *Registry) {
	s.registry = r
}

// SetNow injects a clock for tests
func (s *Supervisor) SetNow(now func() time.Time) {
	s.now = now
}

// ensureWorker returns the session's worker, spawning it on first touch
func (s *Supervisor) ensureWorker(state *session.State) *worker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.workers[state.Code]; ok {
		return w
	}
	w := &worker{
		sup:   s,
		state: state,
		cmds:  make(chan command, s.cfg.CommandBuffer),
		done:  make(chan struct{}),
	}
	s.workers[state.Code] = w
	go w.run()
	return w
}

// Attach resolves a session and posts a client frame into its worker.
// Rehydrates the session from the durable store on a cold start.
func (s *Supervisor) Attach(c *client, code string, cmdType protocol.CommandType, payload json.RawMessage) error {
	state, err := s.sessions.GetOrLoad(code)
	if err != nil {
		return err
	}
	w := s.ensureWorker(state)
	if !w.post(command{kind: cmdFrame, c: c, cmdType: cmdType, payload: payload}) {
		return &session.Error{Code: protocol.ErrServerBusy, Message: "session is busy, try again"}
	}
	return nil
}

// AttachRebind posts a rejoin-token redemption: the player identity was
// already proven by consuming the single-use token.
func (s *Supervisor) AttachRebind(c *client, code, playerID string) error {
	state, err := s.sessions.GetOrLoad(code)
	if err != nil {
		return err
	}
	w := s.ensureWorker(state)
	if !w.post(command{kind: cmdRebind, c: c, playerID: playerID}) {
		return &session.Error{Code: protocol.ErrServerBusy, Message: "session is busy, try again"}
	}
	return nil
}

// Post routes a frame from an already-bound socket to its worker
func (s *Supervisor) Post(c *client, cmdType protocol.CommandType, payload json.RawMessage) error {
	code, _, _ := c.binding()
	if code == "" {
		return &session.Error{Code: protocol.ErrNotJoined, Message: "join a session first"}
	}
	w := s.workerFor(code)
	if w == nil {
		return &session.Error{Code: protocol.ErrSessionNotFound, Message: "session " + code + " is gone"}
	}
	if !w.post(command{kind: cmdFrame, c: c, cmdType: cmdType, payload: payload}) {
		return &session.Error{Code: protocol.ErrServerBusy, Message: "session is busy, try again"}
	}
	return nil
}

func (s *Supervisor) workerFor(code string) *worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers[code]
}

// PostDisconnect reports a dropped socket to the session worker
func (s *Supervisor) PostDisconnect(code, playerID string) {
	if w := s.workerFor(code); w != nil {
		w.post(command{kind: cmdDisconnect, playerID: playerID})
	}
}

// PostQuality reports a sweeper verdict to the session worker
func (s *Supervisor) PostQuality(code, playerID string, q types.ConnectionQuality) {
	if w := s.workerFor(code); w != nil {
		w.post(command{kind: cmdQuality, playerID: playerID, quality: q})
	}
}

// ArchiveSession is the platform hook fired when the underlying quiz is
// edited: the session becomes terminal and read-only
func (s *Supervisor) ArchiveSession(code string) error {
	state, err := s.sessions.GetOrLoad(code)
	if err != nil {
		return err
	}
	w := s.ensureWorker(state)
	reply := make(chan error, 1)
	if !w.post(command{kind: cmdArchive, reply: reply}) {
		return &session.Error{Code: protocol.ErrServerBusy, Message: "session is busy, try again"}
	}
	return <-reply
}

// RunCleanup periodically removes stale sessions and stops the workers
// of sessions no longer in the store
func (s *Supervisor) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := s.sessions.Cleanup(); removed > 0 {
				logging.Info("session cleanup", map[string]interface{}{"removed": removed})
			}
			s.reapWorkers()
		case <-stop:
			return
		}
	}
}

// reapWorkers stops workers whose sessions left the store
func (s *Supervisor) reapWorkers() {
	live := make(map[string]bool)
	for _, code := range s.sessions.Codes() {
		live[code] = true
	}

	s.mu.Lock()
	var dead []*worker
	for code, w := range s.workers {
		if !live[code] {
			dead = append(dead, w)
			delete(s.workers, code)
		}
	}
	s.mu.Unlock()

	for _, w := range dead {
		close(w.done)
		s.hub.CloseRoom(w.state.Code)
	}
}

// Shutdown stops every worker
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	workers := s.workers
	s.workers = make(map[string]*worker)
	s.mu.Unlock()

	for _, w := range workers {
		close(w.done)
	}
}

// post offers a command without blocking; a full channel reports busy
func (w *worker) post(cmd command) bool {
	select {
	case w.cmds <- cmd:
		return true
	default:
		return false
	}
}

// run is the worker loop: commands in order, interleaved with the
// minigame tick when one is active
func (w *worker) run() {
	for {
		var tick <-chan time.Time
		if w.ticker != nil {
			tick = w.ticker.C
		}
		select {
		case cmd := <-w.cmds:
			w.handle(cmd)
		case <-tick:
			w.tick()
		case <-w.done:
			w.stopGame()
			return
		}
	}
}

func (w *worker) handle(cmd command) {
	switch cmd.kind {
	case cmdFrame:
		w.handleFrame(cmd.c, cmd.cmdType, cmd.payload)
	case cmdRebind:
		w.rebind(cmd.c, cmd.playerID)
	case cmdTimerLock:
		events := w.state.LockItemIfCurrent(cmd.gen, w.sup.now())
		w.dispatch(events)
	case cmdDisconnect:
		events := w.state.Disconnect(cmd.playerID, w.sup.now())
		w.dispatch(events)
		playerID := cmd.playerID
		time.AfterFunc(w.sup.cfg.DisconnectGrace, func() {
			w.post(command{kind: cmdAnnounceLeft, playerID: playerID})
		})
	case cmdAnnounceLeft:
		w.dispatch(w.state.AnnounceLeft(cmd.playerID, w.sup.now()))
	case cmdQuality:
		w.dispatch(w.state.SetQuality(cmd.playerID, cmd.quality))
	case cmdArchive:
		w.stopGame()
		events, err := w.state.Archive(w.sup.now())
		w.dispatch(events)
		cmd.reply <- err
	}
}

// fail answers a command error as an ERROR event to the sender only
func (w *worker) fail(c *client, err error) {
	e := session.AsError(err)
	c.send(protocol.NewError(e.Code, e.Message, w.state.CurrentVersion()))
}

// dispatch fans events out and flushes the checkpoints they queued
func (w *worker) dispatch(events []protocol.Directed) {
	if len(events) == 0 {
		return
	}
	w.sup.hub.Dispatch(w.state.Code, events)
	w.sup.sessions.Flush(w.state)
}

func (w *worker) requireHost(c *client) bool {
	if _, role, _ := c.binding(); role != types.RoleHost {
		w.fail(c, &session.Error{Code: protocol.ErrNotHost, Message: "host commands need a host connection"})
		return false
	}
	return true
}

func (w *worker) requirePlayer(c *client) (string, bool) {
	_, role, playerID := c.binding()
	if role != types.RolePlayer || playerID == "" {
		w.fail(c, &session.Error{Code: protocol.ErrNotJoined, Message: "join the session as a player first"})
		return "", false
	}
	return playerID, true
}

// parse decodes a command payload, answering PAYLOAD_INVALID on failure
func (w *worker) parse(c *client, payload json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		w.fail(c, &session.Error{Code: protocol.ErrPayloadInvalid, Message: "malformed payload: " + err.Error()})
		return false
	}
	return true
}

func (w *worker) handleFrame(c *client, cmdType protocol.CommandType, payload json.RawMessage) {
	now := w.sup.now()
	switch cmdType {

	case protocol.CmdJoinSession:
		var p protocol.JoinSessionPayload
		if !w.parse(c, payload, &p) {
			return
		}
		// A known device gets offered its existing player before a new
		// one is created; the client answers with REJOIN_AS_EXISTING or
		// JOIN_AS_NEW.
		if existing, ok := w.state.PlayerByFingerprint(p.DeviceFingerprint); ok {
			c.send(protocol.NewEvent(protocol.EventDeviceRecognized, protocol.DeviceRecognizedPayload{
				PlayerID: existing.ID,
				Name:     existing.Name,
				Score:    existing.Score,
			}, w.state.CurrentVersion()))
			return
		}
		w.join(c, p, now)

	case protocol.CmdJoinAsNew:
		var p protocol.JoinSessionPayload
		if !w.parse(c, payload, &p) {
			return
		}
		w.join(c, p, now)

	case protocol.CmdRejoinAsExisting:
		var p protocol.RejoinAsExistingPayload
		if !w.parse(c, payload, &p) {
			return
		}
		existing, ok := w.state.PlayerSnapshot(p.PlayerID)
		if !ok || existing.Kicked || existing.DeviceFingerprint == "" || existing.DeviceFingerprint != p.DeviceFingerprint {
			w.fail(c, &session.Error{Code: protocol.ErrPlayerNotFound, Message: "no matching player for this device"})
			return
		}
		w.rebind(c, p.PlayerID)

	case protocol.CmdHostJoinSession:
		var p protocol.HostJoinPayload
		if !w.parse(c, payload, &p) {
			return
		}
		w.hostJoin(c, p)

	case protocol.CmdDisplayJoinSession:
		c.bind(w.state.Code, types.RoleDisplay, "")
		w.sup.hub.JoinRoom(c, w.state.Code)
		c.send(protocol.NewEvent(protocol.EventSessionState, w.state.StatePayload(), w.state.CurrentVersion()))

	case protocol.CmdSubmitAnswer:
		playerID, ok := w.requirePlayer(c)
		if !ok {
			return
		}
		var p protocol.SubmitAnswerPayload
		if !w.parse(c, payload, &p) {
			return
		}
		events, allAnswered, err := w.state.SubmitAnswer(playerID, p.ItemID, p.Answer, p.ClientElapsedMs, now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)
		if allAnswered {
			if locked, err := w.state.LockItem(now); err == nil {
				w.dispatch(locked)
			}
		}

	case protocol.CmdStartItem:
		if !w.requireHost(c) {
			return
		}
		var p protocol.StartItemPayload
		if !w.parse(c, payload, &p) {
			return
		}
		// A running swan chase yields to the next item
		if w.game != nil {
			w.abortGame()
		}
		run, events, err := w.state.StartItem(p.ItemIndex, now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)
		if !run.Deadline.IsZero() {
			w.armLock(run.Gen, run.Deadline.Sub(now))
		}
		logging.LogItemEvent("item_started", w.state.Code, run.ItemID, map[string]interface{}{
			"index": p.ItemIndex,
		})

	case protocol.CmdLockItem:
		if !w.requireHost(c) {
			return
		}
		events, err := w.state.LockItem(now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)

	case protocol.CmdCancelItem:
		if !w.requireHost(c) {
			return
		}
		if w.game != nil {
			w.abortGame()
			return
		}
		events, err := w.state.CancelItem(now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)

	case protocol.CmdRevealAnswers:
		if !w.requireHost(c) {
			return
		}
		events, err := w.state.RevealAnswers(now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)

	case protocol.CmdPauseSession:
		if !w.requireHost(c) {
			return
		}
		events, err := w.state.Pause(now)
		if err != nil {
			w.fail(c, err)
			return
		}
		// Freezing the ticker freezes the minigame clock; elapsed time
		// only advances on ticks.
		if w.ticker != nil {
			w.ticker.Stop()
			w.ticker = nil
		}
		w.dispatch(events)

	case protocol.CmdResumeSession:
		if !w.requireHost(c) {
			return
		}
		rearmed, events, err := w.state.Resume(now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)
		if rearmed != nil {
			w.armLock(rearmed.Gen, rearmed.Deadline.Sub(now))
		}
		if w.game != nil && !w.game.Ended() {
			w.ticker = time.NewTicker(time.Duration(minigame.DefaultConfig().TickMs) * time.Millisecond)
		}

	case protocol.CmdEndSession:
		if !w.requireHost(c) {
			return
		}
		w.stopGame()
		events, err := w.state.End("HOST_ENDED", now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)
		w.sup.hub.CloseRoom(w.state.Code)
		logging.LogSessionEvent("session_ended", w.state.Code, nil)

	case protocol.CmdResetSession:
		if !w.requireHost(c) {
			return
		}
		w.stopGame()
		events, err := w.state.Reset(now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)
		logging.LogSessionEvent("session_reset", w.state.Code, nil)

	case protocol.CmdKickPlayer:
		if !w.requireHost(c) {
			return
		}
		var p protocol.KickPlayerPayload
		if !w.parse(c, payload, &p) {
			return
		}
		events, err := w.state.Kick(p.PlayerID, now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)
		for _, victim := range w.sup.hub.PlayerClients(w.state.Code, p.PlayerID) {
			victim.close()
		}

	case protocol.CmdGenerateRejoinToken:
		if !w.requireHost(c) {
			return
		}
		var p protocol.GenerateRejoinTokenPayload
		if !w.parse(c, payload, &p) {
			return
		}
		w.generateRejoinToken(c, p.PlayerID)

	case protocol.CmdAdjustScore:
		if !w.requireHost(c) {
			return
		}
		var p protocol.AdjustScorePayload
		if !w.parse(c, payload, &p) {
			return
		}
		events, err := w.state.AdjustScore(p.ItemID, p.PlayerID, p.ScorePercentage, now)
		if err != nil {
			w.fail(c, err)
			return
		}
		w.dispatch(events)

	case protocol.CmdStartSwanChase:
		if !w.requireHost(c) {
			return
		}
		w.startSwanChase(c)

	case protocol.CmdSwanChaseInput:
		playerID, ok := w.requirePlayer(c)
		if !ok {
			return
		}
		if w.game == nil {
			return
		}
		var p protocol.SwanChaseInputPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return
		}
		w.game.ApplyInput(playerID, p.DirX, p.DirY, p.Ability != "")

	default:
		w.fail(c, &session.Error{Code: protocol.ErrUnknownCommand, Message: "unknown command " + string(cmdType)})
	}
}

// join creates a player and puts the socket in the room before the join
// events fan out, so the newcomer receives their own snapshot
func (w *worker) join(c *client, p protocol.JoinSessionPayload, now time.Time) {
	player, events, err := w.state.Join(p.Name, p.Avatar, p.DeviceFingerprint, now)
	if err != nil {
		w.fail(c, err)
		return
	}
	c.bind(w.state.Code, types.RolePlayer, player.ID)
	w.sup.hub.JoinRoom(c, w.state.Code)
	w.sup.registryTouch(c)
	w.dispatch(events)
	logging.LogSessionEvent("player_joined", w.state.Code, map[string]interface{}{
		"player_id": player.ID,
		"name":      player.Name,
	})
}

// rebind attaches a socket to an existing player
func (w *worker) rebind(c *client, playerID string) {
	player, events, err := w.state.Rebind(playerID, w.sup.now())
	if err != nil {
		w.fail(c, err)
		return
	}
	c.bind(w.state.Code, types.RolePlayer, player.ID)
	w.sup.hub.JoinRoom(c, w.state.Code)
	w.sup.registryTouch(c)
	w.dispatch(events)
	logging.LogSessionEvent("player_rebound", w.state.Code, map[string]interface{}{
		"player_id": player.ID,
	})
}

// hostJoin authenticates the host: a signed token is preferred, the raw
// host key is the fallback. A fresh host socket supersedes the old one.
func (w *worker) hostJoin(c *client, p protocol.HostJoinPayload) {
	authorized := false
	if p.HostToken != "" {
		claims, err := w.sup.auth.ValidateHostToken(p.HostToken)
		authorized = err == nil && claims.SessionCode == w.state.Code
	}
	if !authorized && p.HostKey != "" {
		authorized = auth.CheckHostKey(w.state.HostKeyHash, p.HostKey)
	}
	if !authorized {
		w.fail(c, &session.Error{Code: protocol.ErrHostKeyInvalid, Message: "host credentials rejected"})
		return
	}

	for _, old := range w.sup.hub.HostClients(w.state.Code) {
		if old.id != c.id {
			old.send(protocol.NewFatalError(protocol.ErrNotHost, "another host connection took over", w.state.CurrentVersion()))
			old.close()
		}
	}

	c.bind(w.state.Code, types.RoleHost, "")
	w.sup.hub.JoinRoom(c, w.state.Code)
	w.sup.registryTouch(c)
	c.send(protocol.NewEvent(protocol.EventSessionState, w.state.StatePayload(), w.state.CurrentVersion()))
	logging.LogSessionEvent("host_joined", w.state.Code, nil)
}

// generateRejoinToken mints a single-use token for an offline player and
// returns it to the requesting host only
func (w *worker) generateRejoinToken(c *client, playerID string) {
	player, ok := w.state.PlayerSnapshot(playerID)
	if !ok || player.Kicked {
		w.fail(c, &session.Error{Code: protocol.ErrPlayerNotFound, Message: "player " + playerID + " is not part of this session"})
		return
	}

	token, err := auth.GenerateRejoinToken()
	if err != nil {
		w.fail(c, err)
		return
	}
	ticket := cache.RejoinTicket{
		SessionCode: w.state.Code,
		PlayerID:    player.ID,
		PlayerName:  player.Name,
		Avatar:      player.Avatar,
	}
	if err := w.sup.cache.StoreRejoinTicket(token, ticket, w.sup.cfg.RejoinTokenTTL); err != nil {
		w.fail(c, err)
		return
	}

	c.send(protocol.NewEvent(protocol.EventRejoinTokenGenerated, protocol.RejoinTokenGeneratedPayload{
		PlayerID:  player.ID,
		Token:     token,
		ExpiresAt: w.sup.now().Add(w.sup.cfg.RejoinTokenTTL),
	}, w.state.CurrentVersion()))
}

// lockRetryDelay is how long a deferred auto-lock waits for the command
// channel to drain before its second and final attempt
const lockRetryDelay = 250 * time.Millisecond

// armLock schedules the auto-lock timer. The callback posts back into
// the command channel; a stale generation is dropped by the machine.
// A full channel gets one retry so a burst of frames at the deadline
// cannot leave the item unlocked.
func (w *worker) armLock(gen int, in time.Duration) {
	if in < 0 {
		in = 0
	}
	time.AfterFunc(in, func() {
		if w.post(command{kind: cmdTimerLock, gen: gen}) {
			return
		}
		logging.Warn("auto-lock timer deferred, command channel full", map[string]interface{}{
			"session_code": w.state.Code,
		})
		time.AfterFunc(lockRetryDelay, func() {
			if !w.post(command{kind: cmdTimerLock, gen: gen}) {
				logging.Warn("auto-lock timer dropped, command channel full", map[string]interface{}{
					"session_code": w.state.Code,
				})
			}
		})
	})
}

// startSwanChase builds the simulation from the connected players and
// starts the 20Hz tick loop
func (w *worker) startSwanChase(c *client) {
	run, err := w.state.EnsureMinigameActive()
	if err != nil {
		w.fail(c, err)
		return
	}
	if w.game != nil {
		w.fail(c, &session.Error{Code: protocol.ErrWrongState, Message: "swan chase already running"})
		return
	}

	item, _ := w.state.Quiz.ItemByID(run.ItemID)
	var overrides *quiz.MinigameConfig
	if item != nil {
		overrides = item.Minigame
	}
	cfg := minigame.DefaultConfig().Apply(overrides)

	game, err := minigame.NewGame(cfg, w.state.MinigameSeeds())
	if err != nil {
		w.fail(c, &session.Error{Code: protocol.ErrWrongState, Message: err.Error()})
		return
	}
	w.game = game
	w.gameItem = run.ItemID
	w.ticker = time.NewTicker(time.Duration(cfg.TickMs) * time.Millisecond)

	version := w.state.NextVersion()
	w.sup.hub.Dispatch(w.state.Code, []protocol.Directed{
		protocol.ToAll(protocol.NewEvent(protocol.EventSwanChaseState, game.Snapshot(), version)),
	})
	logging.LogMinigameEvent("swan_chase_started", w.state.Code, map[string]interface{}{
		"item_id":      run.ItemID,
		"participants": len(w.state.MinigameSeeds()),
	})
}

// tick advances the simulation one fixed step and broadcasts the frame
func (w *worker) tick() {
	if w.game == nil {
		return
	}
	result := w.game.Step()
	version := w.state.NextVersion()

	events := make([]protocol.Directed, 0, len(result.Tags)+len(result.Safes)+1)
	for _, tag := range result.Tags {
		events = append(events, protocol.ToAll(protocol.NewEvent(protocol.EventBoatTagged, tag, version)))
	}
	for _, safe := range result.Safes {
		events = append(events, protocol.ToAll(protocol.NewEvent(protocol.EventBoatSafe, safe, version)))
	}
	events = append(events, protocol.ToAll(protocol.NewEvent(protocol.EventSwanChaseState, w.game.Snapshot(), version)))
	w.sup.hub.Dispatch(w.state.Code, events)

	if result.Ended {
		standings := w.game.Standings()
		dropped := w.game.DroppedInputs()
		itemID := w.gameItem
		w.stopGame()

		w.dispatch(w.state.CommitMinigameResults(itemID, standings, w.sup.now()))
		logging.LogMinigameEvent("swan_chase_ended", w.state.Code, map[string]interface{}{
			"item_id":        itemID,
			"dropped_inputs": dropped,
		})
	}
}

// abortGame terminates a running swan chase without awarding points:
// the run is voided like a cancelled question
func (w *worker) abortGame() {
	itemID := w.gameItem
	w.stopGame()

	events, err := w.state.CancelItem(w.sup.now())
	if err != nil {
		return
	}
	events = append(events, protocol.ToAll(protocol.NewEvent(protocol.EventSwanChaseEnded, protocol.SwanChaseEndedPayload{
		ItemID:  itemID,
		Aborted: true,
	}, w.state.CurrentVersion())))
	w.dispatch(events)
	logging.LogMinigameEvent("swan_chase_aborted", w.state.Code, map[string]interface{}{
		"item_id": itemID,
	})
}

// stopGame tears the tick loop down
func (w *worker) stopGame() {
	if w.ticker != nil {
		w.ticker.Stop()
		w.ticker = nil
	}
	w.game = nil
	w.gameItem = ""
}

// registryTouch refreshes presence after a successful (re)bind
func (s *Supervisor) registryTouch(c *client) {
	if s.registry != nil {
		s.registry.Touch(c.id)
	}
}
