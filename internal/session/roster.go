package session

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"go.uber.org/zap"
)

// Join seats connID on a team in a role. A connection that already has a
// seat moves to the new one. A role held by a disconnected player is taken
// over and that player's grace timer is cancelled.
func (s *Session) Join(connID string, a protocol.JoinLobby) error {
	if !s.reg.Has(connID) {
		return engine.ErrNotRegistered
	}
	self := s.state.Players[connID]

	var others []*engine.Player
	for _, p := range s.state.TeamPlayers(a.Team) {
		if p != self {
			others = append(others, p)
		}
	}
	if len(others) >= engine.MaxPlayersPerTeam {
		s.privateLog(connID, fmt.Sprintf("Team is full (Max %d)", engine.MaxPlayersPerTeam), protocol.LogDanger)
		return engine.ErrTeamFull
	}

	var stale *engine.Player
	for _, p := range others {
		if p.Role != a.Role {
			continue
		}
		if p.Connected {
			s.privateLog(connID, fmt.Sprintf("Role %s is already taken in Team %s", a.Role, a.Team), protocol.LogDanger)
			return engine.ErrRoleTaken
		}
		stale = p
	}
	if stale != nil {
		stale.Removal.Stop()
		delete(s.state.Players, stale.ConnID)
		s.log.Info("seat taken over from disconnected player",
			zap.String("conn_id", connID),
			zap.String("previous", stale.ConnID),
		)
	}

	if self == nil {
		pid := s.pids[connID]
		if pid == "" {
			pid = connID
		}
		self = &engine.Player{ConnID: connID, PersistentID: pid}
		s.state.Players[connID] = self
	}
	self.Name = a.Name
	self.Team = a.Team
	self.Role = a.Role
	self.Ready = false
	self.Connected = true

	s.reg.Subscribe(connID, a.Team)
	s.broadcastRoster()
	s.reg.SendTo(connID, protocol.MsgInitGame, s.initView(a.Team))
	s.recheckCountdown()

	s.log.Info("player joined",
		zap.String("conn_id", connID),
		zap.String("team", string(a.Team)),
		zap.String("role", string(a.Role)),
	)
	return nil
}

// Leave gives up the caller's seat immediately.
func (s *Session) Leave(connID string) error {
	p, ok := s.state.Players[connID]
	if !ok {
		return engine.ErrNotRegistered
	}
	s.removePlayer(p)
	s.reg.SendTo(connID, protocol.MsgInitGame, s.initView(""))
	s.log.Info("player left", zap.String("conn_id", connID))
	return nil
}

func (s *Session) ToggleReady(connID string) error {
	p, ok := s.state.Players[connID]
	if !ok {
		return engine.ErrNotRegistered
	}
	p.Ready = !p.Ready
	s.broadcastRoster()

	switch s.state.Status {
	case engine.StatusLobby:
		s.tryStart()
	case engine.StatusCountdown:
		s.recheckCountdown()
	}
	return nil
}

// ToggleBots flips bot fill-in. It never starts or stops a countdown by
// itself.
func (s *Session) ToggleBots(connID string) error {
	if _, ok := s.state.Players[connID]; !ok {
		return engine.ErrNotRegistered
	}
	s.state.FillBots = !s.state.FillBots
	s.broadcastInit()
	s.log.Info("bot fill toggled", zap.Bool("fill_bots", s.state.FillBots))
	return nil
}

// ResetLobby returns the match to the lobby, keeping the roster.
func (s *Session) ResetLobby(connID string) error {
	if _, ok := s.state.Players[connID]; !ok {
		return engine.ErrNotRegistered
	}
	s.resetLobby()
	return nil
}

func (s *Session) resetLobby() {
	s.cancelTimers()
	s.state.ResetToLobby()
	s.elapsed = 0
	for _, p := range s.state.Players {
		p.Ready = false
	}
	s.broadcastRoster()
	s.broadcastInit()
	s.log.Info("lobby reset")
}

func (s *Session) cancelTimers() {
	s.countdown.Stop()
	s.countdown = nil
	s.autoReset.Stop()
	s.autoReset = nil
}

// understaffed lists teams that have players but not a full crew.
func (s *Session) understaffed() []engine.TeamID {
	var out []engine.TeamID
	for _, t := range engine.Teams {
		n := len(s.state.TeamPlayers(t))
		if n > 0 && n < engine.MaxPlayersPerTeam {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) allReady() bool {
	if len(s.state.Players) == 0 {
		return false
	}
	for _, p := range s.state.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (s *Session) canStart() bool {
	return s.allReady() && (s.state.FillBots || len(s.understaffed()) == 0)
}

func (s *Session) tryStart() {
	if !s.allReady() {
		return
	}
	if short := s.understaffed(); len(short) > 0 && !s.state.FillBots {
		names := make([]string, len(short))
		for i, t := range short {
			names[i] = string(t)
		}
		s.reg.Broadcast(protocol.MsgLog, protocol.Log{
			Text: fmt.Sprintf("Waiting for full teams: %s need %d players.", strings.Join(names, ", "), engine.MaxPlayersPerTeam),
			Type: protocol.LogWarning,
		})
		return
	}
	s.startCountdown()
}

// recheckCountdown aborts a running countdown once the roster stops
// qualifying for a start.
func (s *Session) recheckCountdown() {
	if s.state.Status != engine.StatusCountdown || s.canStart() {
		return
	}
	s.countdown.Stop()
	s.countdown = nil
	s.state.Status = engine.StatusLobby
	s.state.Countdown = nil
	s.broadcastInit()
	s.log.Info("countdown cancelled")
}

func (s *Session) startCountdown() {
	n := engine.CountdownFrom
	s.state.Status = engine.StatusCountdown
	s.state.Countdown = &n
	s.broadcastInit()
	s.countdown = s.sched.Every(engine.CountdownStep, s.countdownStep)
	s.log.Info("countdown started", zap.Int("players", len(s.state.Players)))
}

func (s *Session) countdownStep() {
	if s.state.Countdown == nil {
		s.countdown.Stop()
		return
	}
	n := *s.state.Countdown - 1
	s.state.Countdown = &n
	s.reg.Broadcast(protocol.MsgCountdownTick, protocol.CountdownTick{N: n})
	if n > 0 {
		return
	}
	s.countdown.Stop()
	s.countdown = nil
	s.startMatch()
}

func (s *Session) startMatch() {
	s.state.Status = engine.StatusPlaying
	s.state.Countdown = nil
	s.state.TimeLeft = engine.MatchDuration
	s.state.Result = nil
	s.state.Jobs = nil
	s.state.ResetTeams()
	s.elapsed = 0

	s.metrics.MatchStarted()
	s.reg.Broadcast(protocol.MsgGameStart, protocol.GameStart{})
	s.broadcastInit()
	s.log.Info("match started", zap.Bool("fill_bots", s.state.FillBots))
}
