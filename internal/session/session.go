// Package session runs one match: roster, countdown, simulation, combat and
// outcome. A Session is a synchronous state machine. Its owner feeds it
// connection events and decoded actions, and moves its clock with Advance;
// every timer (tick, countdown, grace, auto-reset) fires from inside Advance.
// A Session must only be used from one goroutine.
package session

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/broadcast"
	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/observability"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"github.com/DoyleJ11/disk-defender-backend/internal/scheduler"
	"go.uber.org/zap"
)

type Options struct {
	Code          string
	FillBots      bool
	StrictService bool

	Log     *zap.Logger
	Metrics *observability.Metrics

	// Rand drives spawning and bots. Nil means a randomly seeded source.
	Rand *rand.Rand

	// Bots fill unoccupied roles when FillBots is on. Nil means DefaultBots.
	Bots []VirtualPlayer
}

type Session struct {
	code    string
	state   *engine.MatchState
	sched   *scheduler.Scheduler
	reg     *broadcast.Registry
	rng     *rand.Rand
	log     *zap.Logger
	metrics *observability.Metrics
	bots    []VirtualPlayer
	strict  bool

	// pids remembers the persistent id each connection announced, so a
	// later join can record it.
	pids map[string]string

	ticker    *scheduler.Timer
	countdown *scheduler.Timer
	autoReset *scheduler.Timer

	// elapsed accumulates tick time toward the next whole second of timeLeft.
	elapsed time.Duration
}

func New(start time.Time, opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("lobby", opts.Code))

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	bots := opts.Bots
	if bots == nil {
		bots = DefaultBots()
	}

	s := &Session{
		code:    opts.Code,
		state:   engine.NewMatchState(),
		sched:   scheduler.New(start),
		reg:     broadcast.NewRegistry(log),
		rng:     rng,
		log:     log,
		metrics: opts.Metrics,
		bots:    bots,
		strict:  opts.StrictService,
		pids:    make(map[string]string),
	}
	s.state.FillBots = opts.FillBots
	s.ticker = s.sched.Every(engine.TickInterval, s.simulate)
	return s
}

func (s *Session) Code() string { return s.code }

// Advance moves the session clock to now and runs everything that came due.
func (s *Session) Advance(now time.Time) {
	s.sched.AdvanceTo(now)
}

func (s *Session) Now() time.Time { return s.sched.Now() }

// State exposes the match for read-only inspection by the owner.
func (s *Session) State() *engine.MatchState { return s.state }

// Connections is the number of open transport connections.
func (s *Session) Connections() int { return s.reg.Len() }

// Idle reports whether nobody is connected and nobody is waiting out a grace
// period.
func (s *Session) Idle() bool {
	return s.reg.Len() == 0 && len(s.state.Players) == 0
}

// Close stops every timer. The session must not be used afterwards.
func (s *Session) Close() {
	s.ticker.Stop()
	s.countdown.Stop()
	s.autoReset.Stop()
	for _, p := range s.state.Players {
		p.Removal.Stop()
	}
}

// Handle applies one client action on behalf of connID. Rejections are
// returned and otherwise leave the match untouched.
func (s *Session) Handle(connID string, a protocol.Action) error {
	var err error
	switch a := a.(type) {
	case protocol.JoinLobby:
		err = s.Join(connID, a)
	case protocol.LeaveTeam:
		err = s.Leave(connID)
	case protocol.ToggleReady:
		err = s.ToggleReady(connID)
	case protocol.ToggleBots:
		err = s.ToggleBots(connID)
	case protocol.ResetLobby:
		err = s.ResetLobby(connID)
	case protocol.DriverInput:
		err = s.DriverInput(connID, a)
	case protocol.HighlightRequest:
		err = s.Highlight(connID, a)
	case protocol.DropRequest:
		err = s.Drop(connID, a)
	case protocol.ServiceSuccess:
		err = s.Service(connID, a)
	case protocol.Attack:
		err = s.Attack(connID, a)
	default:
		err = protocol.ErrUnknownAction
	}
	if err != nil {
		s.metrics.ActionRejected(reason(err))
		s.log.Debug("action rejected",
			zap.String("conn_id", connID),
			zap.String("action", protocol.ActionType(a)),
			zap.Error(err),
		)
	}
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, engine.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, engine.ErrTeamFull):
		return "team_full"
	case errors.Is(err, engine.ErrRoleTaken):
		return "role_taken"
	case errors.Is(err, engine.ErrUnknownJob):
		return "unknown_job"
	case errors.Is(err, engine.ErrInsufficientCache):
		return "insufficient_cache"
	case errors.Is(err, engine.ErrOnCooldown):
		return "cooldown"
	case errors.Is(err, engine.ErrEliminated):
		return "eliminated"
	case errors.Is(err, engine.ErrNotPlaying):
		return "not_playing"
	case errors.Is(err, engine.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, engine.ErrInvalidTarget):
		return "invalid_target"
	default:
		return "other"
	}
}
