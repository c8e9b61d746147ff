package session

import (
	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"go.uber.org/zap"
)

// checkElimination runs after every hp loss and ends the match when at most
// one team is left standing.
func (s *Session) checkElimination() bool {
	if s.state.Status != engine.StatusPlaying {
		return false
	}
	res, over := engine.CheckElimination(s.state.Teams)
	if !over {
		return false
	}
	s.endMatch(res)
	return true
}

func (s *Session) endMatch(res engine.Result) {
	s.state.Status = engine.StatusGameOver
	s.state.Result = &res
	s.metrics.MatchEnded(res.Reason)

	s.reg.Broadcast(protocol.MsgGameOver, protocol.GameOver{Winner: res.Winner, Reason: res.Reason})

	s.autoReset.Stop()
	s.autoReset = s.sched.After(engine.AutoResetDelay, func() {
		s.autoReset = nil
		s.resetLobby()
	})

	s.log.Info("match over",
		zap.String("winner", string(res.Winner)),
		zap.String("reason", res.Reason),
	)
}
