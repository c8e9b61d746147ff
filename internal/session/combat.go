package session

import (
	"fmt"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"go.uber.org/zap"
)

// actor is whoever issues a gameplay action: a seated player or a bot
// standing in for an empty role.
type actor struct {
	team   engine.TeamID
	role   engine.Role
	connID string
	bot    bool
}

func botActor(team engine.TeamID, role engine.Role) actor {
	return actor{team: team, role: role, bot: true}
}

// seated resolves connID to an actor on team. An empty role accepts any.
func (s *Session) seated(connID string, team engine.TeamID, role engine.Role) (actor, error) {
	p, ok := s.state.Players[connID]
	if !ok {
		return actor{}, engine.ErrNotRegistered
	}
	if !p.Connected || p.Team != team || (role != "" && p.Role != role) {
		return actor{}, engine.ErrNotAuthorized
	}
	return actor{team: p.Team, role: p.Role, connID: connID}, nil
}

// live checks that a match is running and the actor's team still has hp.
func (s *Session) live(a actor) error {
	if s.state.Status != engine.StatusPlaying {
		return engine.ErrNotPlaying
	}
	if !s.state.Teams[a.team].Alive() {
		return engine.ErrEliminated
	}
	return nil
}

// ownJob finds id among the actor's team jobs.
func (s *Session) ownJob(a actor, id string) (*engine.Job, error) {
	j := s.state.Job(id)
	if j == nil {
		return nil, engine.ErrUnknownJob
	}
	if j.Team != a.team {
		return nil, engine.ErrNotAuthorized
	}
	return j, nil
}

func (s *Session) DriverInput(connID string, in protocol.DriverInput) error {
	a, err := s.seated(connID, in.Team, engine.RoleDriver)
	if err != nil {
		return err
	}
	return s.steer(a, in.TargetPos)
}

// steer sets the team's arm target and relays it to the rest of the team.
func (s *Session) steer(a actor, pos float64) error {
	if err := s.live(a); err != nil {
		return err
	}
	pos = engine.ClampPos(pos)
	s.state.Teams[a.team].TargetPos = pos
	s.reg.SendTeam(a.team, protocol.MsgArmUpdate, protocol.ArmUpdate{TargetPos: pos, Team: a.team}, a.connID)
	return nil
}

func (s *Session) Highlight(connID string, in protocol.HighlightRequest) error {
	p, ok := s.state.Players[connID]
	if !ok {
		return engine.ErrNotRegistered
	}
	a, err := s.seated(connID, p.Team, engine.RoleScheduler)
	if err != nil {
		return err
	}
	return s.highlight(a, in.JobID)
}

func (s *Session) highlight(a actor, id string) error {
	if err := s.live(a); err != nil {
		return err
	}
	j, err := s.ownJob(a, id)
	if err != nil {
		return err
	}
	j.Highlighted = !j.Highlighted
	return nil
}

func (s *Session) Drop(connID string, in protocol.DropRequest) error {
	a, err := s.seated(connID, in.Team, engine.RoleScheduler)
	if err != nil {
		return err
	}
	return s.drop(a, in.JobID)
}

func (s *Session) drop(a actor, id string) error {
	if err := s.live(a); err != nil {
		return err
	}
	if _, err := s.ownJob(a, id); err != nil {
		return err
	}
	s.state.RemoveJob(id)
	lost := s.state.Teams[a.team].Damage(engine.DropDamage)
	s.teamLog(a.team, fmt.Sprintf("Request dropped manually. -%d HP", engine.DropDamage), protocol.LogWarning)
	if lost > 0 {
		s.checkElimination()
	}
	return nil
}

func (s *Session) Service(connID string, in protocol.ServiceSuccess) error {
	a, err := s.seated(connID, in.Team, "")
	if err != nil {
		return err
	}
	if s.strict {
		if j := s.state.Job(in.JobID); j != nil && j.Team == a.team && !s.state.Teams[a.team].Covers(j.Sector) {
			return engine.ErrOutOfRange
		}
	}
	return s.service(a, in.JobID)
}

// service completes a job. Decoys vanish without reward.
func (s *Session) service(a actor, id string) error {
	if err := s.live(a); err != nil {
		return err
	}
	j, err := s.ownJob(a, id)
	if err != nil {
		return err
	}
	s.state.RemoveJob(id)
	s.metrics.JobServiced(j.IsFake)

	fb := protocol.ServiceFeedback{Sector: j.Sector}
	if j.IsFake {
		fb.Text, fb.Color = "GHOST! 0 PTS", "purple"
	} else {
		rec := s.state.Teams[a.team]
		rec.Score += engine.ServiceScore
		rec.AddCache(engine.ServiceRefill)
		fb.Text, fb.Color = fmt.Sprintf("+%d PTS", engine.ServiceScore), "green"
	}
	s.reg.SendTeam(a.team, protocol.MsgServiceFeedback, fb)
	return nil
}

func (s *Session) Attack(connID string, in protocol.Attack) error {
	a, err := s.seated(connID, in.Team, engine.RoleHacker)
	if err != nil {
		return err
	}
	return s.attack(a, in)
}

// attack debits the cache, starts the cooldown and lands the debuff on
// every target. Bots and players share this path.
func (s *Session) attack(a actor, in protocol.Attack) error {
	if err := s.live(a); err != nil {
		return err
	}
	cost, err := engine.AttackCost(in.Kind, in.All)
	if err != nil {
		return err
	}

	var targets []engine.TeamID
	if in.All {
		targets = s.state.Rivals(a.team)
	} else {
		if _, err := engine.ParseTeam(string(in.Target)); err != nil || in.Target == a.team {
			return engine.ErrInvalidTarget
		}
		targets = []engine.TeamID{in.Target}
	}

	now := s.sched.Now()
	rec := s.state.Teams[a.team]
	if rec.CoolingDown(in.Kind, now) {
		s.teamLog(a.team, fmt.Sprintf("%s is on cooldown", in.Kind), protocol.LogWarning)
		return engine.ErrOnCooldown
	}
	if !rec.Spend(cost) {
		s.teamLog(a.team, fmt.Sprintf("Insufficient cache for %s (need %d)", in.Kind, cost), protocol.LogWarning)
		return engine.ErrInsufficientCache
	}
	rec.StartCooldown(in.Kind, now)

	for _, t := range targets {
		s.applyDebuff(t, in.Kind)
	}
	s.teamLog(a.team, fmt.Sprintf("Attack Successful: %s", in.Kind), protocol.LogSuccess)
	s.metrics.Attack(string(in.Kind), a.bot)

	s.log.Debug("attack applied",
		zap.String("team", string(a.team)),
		zap.String("kind", string(in.Kind)),
		zap.Bool("all", in.All),
		zap.Bool("bot", a.bot),
	)
	return nil
}

func (s *Session) applyDebuff(target engine.TeamID, kind engine.AttackKind) {
	now := s.sched.Now()
	spec := engine.Attacks[kind]

	switch kind {
	case engine.AttackGhost:
		for range engine.GhostDecoys {
			s.state.Jobs = append(s.state.Jobs, s.newJob(target, now, true))
		}
	case engine.AttackFreeze:
		s.state.Teams[target].FrozenUntil = now.Add(spec.Duration)
	}

	s.reg.SendTeam(target, protocol.MsgDebuff, protocol.Debuff{
		Kind:       kind,
		DurationMs: spec.Duration.Milliseconds(),
	})
	s.teamLog(target, "WARNING: Unknown intrusion detected!", protocol.LogDanger)
}
