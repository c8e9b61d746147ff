package session

import (
	"math"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
)

// VirtualPlayer plays one role for a team that has no connected player in
// it. Act runs once per tick and issues actions through the same paths
// players use.
type VirtualPlayer interface {
	Role() engine.Role
	Act(s *Session, team engine.TeamID, now time.Time)
}

func DefaultBots() []VirtualPlayer {
	return []VirtualPlayer{
		&SchedulerBot{FreshChance: 0.05},
		&HackerBot{Chance: 0.02},
		&DriverBot{DecoyMiss: 0.8},
	}
}

func (s *Session) runBots(now time.Time) {
	for _, t := range engine.Teams {
		for _, b := range s.bots {
			if s.state.Status != engine.StatusPlaying {
				return
			}
			if !s.state.Teams[t].Alive() {
				break
			}
			if s.state.Holder(t, b.Role(), true) != nil {
				continue
			}
			b.Act(s, t, now)
		}
	}
}

// SchedulerBot flags every aging job and now and then a fresh one.
type SchedulerBot struct {
	FreshChance float64
}

func (*SchedulerBot) Role() engine.Role { return engine.RoleScheduler }

func (b *SchedulerBot) Act(s *Session, team engine.TeamID, _ time.Time) {
	a := botActor(team, engine.RoleScheduler)
	var fresh []*engine.Job
	for _, j := range s.state.JobsFor(team) {
		if j.Highlighted {
			continue
		}
		if j.Status == engine.JobFresh {
			fresh = append(fresh, j)
			continue
		}
		_ = s.highlight(a, j.ID)
	}
	if len(fresh) > 0 && s.rng.Float64() < b.FreshChance {
		_ = s.highlight(a, fresh[s.rng.IntN(len(fresh))].ID)
	}
}

// HackerBot occasionally fires a random affordable attack at a random
// living rival.
type HackerBot struct {
	Chance float64
}

func (*HackerBot) Role() engine.Role { return engine.RoleHacker }

func (b *HackerBot) Act(s *Session, team engine.TeamID, now time.Time) {
	if s.rng.Float64() >= b.Chance {
		return
	}
	rec := s.state.Teams[team]
	if rec.Cache < engine.CheapestAttackCost() {
		return
	}

	var kinds []engine.AttackKind
	for _, k := range engine.AttackKinds {
		if engine.Attacks[k].Cost <= rec.Cache && !rec.CoolingDown(k, now) {
			kinds = append(kinds, k)
		}
	}
	var rivals []engine.TeamID
	for _, t := range s.state.Rivals(team) {
		if s.state.Teams[t].Alive() {
			rivals = append(rivals, t)
		}
	}
	if len(kinds) == 0 || len(rivals) == 0 {
		return
	}

	_ = s.attack(botActor(team, engine.RoleHacker), protocol.Attack{
		Team:   team,
		Target: rivals[s.rng.IntN(len(rivals))],
		Kind:   kinds[s.rng.IntN(len(kinds))],
	})
}

// DriverBot steers toward the highlighted job nearest the arm, or else the
// nearest job, and services a job once the arm has rested on it long
// enough. It sees through most decoys.
type DriverBot struct {
	DecoyMiss float64

	dwell map[engine.TeamID]dwell
}

type dwell struct {
	job   string
	since time.Time
}

func (*DriverBot) Role() engine.Role { return engine.RoleDriver }

func (b *DriverBot) Act(s *Session, team engine.TeamID, now time.Time) {
	if b.dwell == nil {
		b.dwell = make(map[engine.TeamID]dwell)
	}
	a := botActor(team, engine.RoleDriver)
	rec := s.state.Teams[team]

	target := b.pick(s, rec, s.state.JobsFor(team))
	if target == nil {
		delete(b.dwell, team)
		return
	}
	if pos := float64(target.Sector); rec.TargetPos != pos {
		_ = s.steer(a, pos)
	}

	if !rec.Covers(target.Sector) {
		delete(b.dwell, team)
		return
	}
	d, ok := b.dwell[team]
	if !ok || d.job != target.ID {
		b.dwell[team] = dwell{job: target.ID, since: now}
		return
	}
	if now.Sub(d.since) >= engine.ServiceDwellTime {
		delete(b.dwell, team)
		_ = s.service(a, target.ID)
	}
}

func (b *DriverBot) pick(s *Session, rec *engine.TeamRecord, jobs []*engine.Job) *engine.Job {
	var best, bestFlagged *engine.Job
	dist := func(j *engine.Job) float64 { return math.Abs(float64(j.Sector) - rec.Cursor) }

	for _, j := range jobs {
		if j.IsFake && s.rng.Float64() < b.DecoyMiss {
			continue
		}
		if j.Highlighted && (bestFlagged == nil || dist(j) < dist(bestFlagged)) {
			bestFlagged = j
		}
		if best == nil || dist(j) < dist(best) {
			best = j
		}
	}
	if bestFlagged != nil {
		return bestFlagged
	}
	return best
}
