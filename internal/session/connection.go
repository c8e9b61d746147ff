package session

import (
	"github.com/DoyleJ11/disk-defender-backend/internal/broadcast"
	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"go.uber.org/zap"
)

// Connect registers a transport connection. When persistentID belongs to a
// known player the connection takes over that player's seat.
func (s *Session) Connect(connID, persistentID string, c broadcast.Conn) {
	s.reg.Add(connID, c)
	s.reg.SendTo(connID, protocol.MsgWelcome, protocol.Welcome{
		ConnectionID: connID,
		PersistentID: persistentID,
	})

	p := s.state.PlayerByPersistentID(persistentID)
	if p == nil {
		if persistentID != "" {
			s.pids[connID] = persistentID
		}
		s.reg.SendTo(connID, protocol.MsgInitGame, s.initView(""))
		return
	}
	s.reconnect(p, connID)
}

func (s *Session) reconnect(p *engine.Player, connID string) {
	p.Removal.Stop()
	p.Removal = nil

	if old := p.ConnID; old != connID {
		delete(s.state.Players, old)
		// A second tab can steal the seat from a still-open connection.
		s.reg.Unsubscribe(old)
		delete(s.pids, old)
		p.ConnID = connID
		s.state.Players[connID] = p
	}
	p.Connected = true
	s.pids[connID] = p.PersistentID

	s.reg.Subscribe(connID, p.Team)
	s.reg.SendTo(connID, protocol.MsgRejoin, protocol.Rejoin{
		Team:  p.Team,
		Role:  p.Role,
		Name:  p.Name,
		State: s.initView(p.Team),
	})
	s.broadcastRoster()

	s.log.Info("player reconnected",
		zap.String("conn_id", connID),
		zap.String("team", string(p.Team)),
		zap.String("role", string(p.Role)),
	)
}

// Disconnect forgets the connection. A registered player keeps the seat for
// the grace period and is removed if nobody reclaims it.
func (s *Session) Disconnect(connID string) {
	s.reg.Remove(connID)
	delete(s.pids, connID)

	p, ok := s.state.Players[connID]
	if !ok {
		return
	}
	p.Connected = false
	p.Removal.Stop()
	p.Removal = s.sched.After(engine.DisconnectGrace, func() {
		s.expire(p)
	})
	s.broadcastRoster()

	s.log.Info("player disconnected",
		zap.String("conn_id", connID),
		zap.Duration("grace", engine.DisconnectGrace),
	)
}

func (s *Session) expire(p *engine.Player) {
	if s.state.Players[p.ConnID] != p || p.Connected {
		return
	}
	p.Removal = nil
	s.log.Info("grace period expired", zap.String("conn_id", p.ConnID))
	s.removePlayer(p)
}

// removePlayer deletes p from the roster. An empty roster fully resets the
// lobby.
func (s *Session) removePlayer(p *engine.Player) {
	p.Removal.Stop()
	p.Removal = nil
	delete(s.state.Players, p.ConnID)
	s.reg.Unsubscribe(p.ConnID)
	s.broadcastRoster()

	if len(s.state.Players) == 0 {
		s.fullReset()
		return
	}
	s.recheckCountdown()
}

func (s *Session) fullReset() {
	s.cancelTimers()
	s.state.ResetToLobby()
	s.elapsed = 0
	s.broadcastInit()
	s.log.Info("lobby emptied, state reset")
}
