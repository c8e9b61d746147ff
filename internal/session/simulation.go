package session

import (
	"fmt"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
	"github.com/DoyleJ11/disk-defender-backend/internal/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// simulate is one tick. It does nothing outside PLAYING.
func (s *Session) simulate() {
	if s.state.Status != engine.StatusPlaying {
		return
	}
	defer s.broadcastTick()
	now := s.sched.Now()

	if s.countDown() {
		return
	}
	if s.ageJobs(now) {
		return
	}
	if s.rng.Float64() < engine.SpawnChance {
		s.spawn(now)
	}
	for _, t := range engine.Teams {
		s.state.Teams[t].StepCursor(now)
	}
	if s.state.FillBots {
		s.runBots(now)
	}
}

// countDown burns one tick off the match clock and ends the match when it
// runs out.
func (s *Session) countDown() bool {
	s.elapsed += engine.TickInterval
	for s.elapsed >= time.Second {
		s.elapsed -= time.Second
		s.state.TimeLeft--
	}
	if s.state.TimeLeft > 0 {
		return false
	}
	s.state.TimeLeft = 0
	s.endMatch(engine.ResolveTimeout(s.state.Teams))
	return true
}

// ageJobs refreshes job statuses and explodes expired jobs. It reports
// whether an explosion ended the match.
func (s *Session) ageJobs(now time.Time) bool {
	jobs := s.state.Jobs
	s.state.Jobs = make([]*engine.Job, 0, len(jobs))
	for i, j := range jobs {
		if !j.Expired(now) {
			j.Status = engine.JobStatusForAge(now.Sub(j.Birth))
			s.state.Jobs = append(s.state.Jobs, j)
			continue
		}
		if s.explode(j) && s.checkElimination() {
			s.state.Jobs = append(s.state.Jobs, jobs[i+1:]...)
			return true
		}
	}
	return false
}

// explode applies a real job's damage and warns its team, even one that
// has no hp left. Decoys vanish quietly. It reports whether the team lost hp.
func (s *Session) explode(j *engine.Job) bool {
	s.metrics.JobExploded()
	if j.IsFake {
		return false
	}
	lost := s.state.Teams[j.Team].Damage(engine.ExplosionDamage)
	s.teamLog(j.Team, fmt.Sprintf("CRITICAL: Request exploded! -%d HP", engine.ExplosionDamage), protocol.LogDanger)
	s.log.Debug("job exploded",
		zap.String("team", string(j.Team)),
		zap.Int("hp", s.state.Teams[j.Team].HP),
	)
	return lost > 0
}

// spawn gives every team one fresh job.
func (s *Session) spawn(now time.Time) {
	for _, t := range engine.Teams {
		s.state.Jobs = append(s.state.Jobs, s.newJob(t, now, false))
	}
}

func (s *Session) newJob(team engine.TeamID, now time.Time, fake bool) *engine.Job {
	return &engine.Job{
		ID:          uuid.NewString(),
		Team:        team,
		Sector:      s.rng.IntN(engine.TrackSize),
		Birth:       now,
		Status:      engine.JobFresh,
		IsFake:      fake,
		Highlighted: fake,
	}
}
