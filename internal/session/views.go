package session

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
)

func (s *Session) roster() []protocol.PlayerView {
	out := make([]protocol.PlayerView, 0, len(s.state.Players))
	for _, t := range engine.Teams {
		for _, p := range s.state.TeamPlayers(t) {
			out = append(out, protocol.PlayerView{
				ID:        p.ConnID,
				Name:      p.Name,
				Team:      p.Team,
				Role:      p.Role,
				Ready:     p.Ready,
				Connected: p.Connected,
			})
		}
	}
	return out
}

func (s *Session) scores() map[engine.TeamID]protocol.TeamScore {
	out := make(map[engine.TeamID]protocol.TeamScore, len(engine.Teams))
	for _, t := range engine.Teams {
		rec := s.state.Teams[t]
		out[t] = protocol.TeamScore{HP: rec.HP, Score: rec.Score}
	}
	return out
}

func (s *Session) teamData(team engine.TeamID) protocol.TeamData {
	rec := s.state.Teams[team]
	cooldowns := make(map[engine.AttackKind]int64, len(rec.Cooldowns))
	for kind, readyAt := range rec.Cooldowns {
		cooldowns[kind] = readyAt.UnixMilli()
	}

	jobs := s.state.JobsFor(team)
	slices.SortStableFunc(jobs, func(a, b *engine.Job) int {
		return cmp.Compare(a.Birth.UnixNano(), b.Birth.UnixNano())
	})
	views := make([]protocol.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, protocol.JobView{
			ID:          j.ID,
			Sector:      j.Sector,
			Birth:       j.Birth.UnixMilli(),
			Status:      j.Status,
			Highlighted: j.Highlighted,
		})
	}

	return protocol.TeamData{
		Cache:     rec.Cache,
		Cooldowns: cooldowns,
		TargetPos: rec.TargetPos,
		Jobs:      views,
	}
}

// initView is the full state as team sees it. An empty team gets the
// public part only.
func (s *Session) initView(team engine.TeamID) protocol.InitGame {
	v := protocol.InitGame{
		Status:   s.state.Status,
		TimeLeft: s.state.TimeLeft,
		FillBots: s.state.FillBots,
		Teams:    s.scores(),
		Players:  s.roster(),
	}
	if c := s.state.Countdown; c != nil {
		n := *c
		v.Countdown = &n
	}
	if r := s.state.Result; r != nil {
		v.Result = &protocol.GameOver{Winner: r.Winner, Reason: r.Reason}
	}
	if team != "" {
		td := s.teamData(team)
		v.Team = &td
	}
	return v
}

func (s *Session) broadcastRoster() {
	s.reg.Broadcast(protocol.MsgLobbyUpdate, protocol.LobbyUpdate{Players: s.roster()})
}

// broadcastInit sends every connection the full state filtered for its team.
func (s *Session) broadcastInit() {
	for _, t := range engine.Teams {
		if len(s.reg.Members(t)) > 0 {
			s.reg.SendTeam(t, protocol.MsgInitGame, s.initView(t))
		}
	}
	s.reg.SendUngrouped(protocol.MsgInitGame, s.initView(""))
}

func (s *Session) broadcastTick() {
	s.reg.Broadcast(protocol.MsgGameTick, protocol.GameTick{
		Teams:    s.scores(),
		TimeLeft: s.state.TimeLeft,
	})
	for _, t := range engine.Teams {
		if len(s.reg.Members(t)) > 0 {
			s.reg.SendTeam(t, protocol.MsgTeamData, s.teamData(t))
		}
	}
}

func (s *Session) privateLog(connID, text, kind string) {
	s.reg.SendTo(connID, protocol.MsgLog, protocol.Log{Text: text, Type: kind})
}

func (s *Session) teamLog(team engine.TeamID, text, kind string) {
	s.reg.SendTeam(team, protocol.MsgLog, protocol.Log{Text: text, Type: kind})
}
