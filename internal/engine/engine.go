package engine

import (
	"errors"
	"slices"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/scheduler"
)

var ErrNotRegistered = errors.New("connection has not joined a team")
var ErrNotAuthorized = errors.New("action not allowed for this player")
var ErrTeamFull = errors.New("team is full")
var ErrRoleTaken = errors.New("role already taken")
var ErrUnknownTeam = errors.New("unknown team")
var ErrUnknownRole = errors.New("unknown role")
var ErrUnknownAttack = errors.New("unknown attack")
var ErrInvalidTarget = errors.New("invalid attack target")
var ErrUnknownJob = errors.New("unknown job")
var ErrInsufficientCache = errors.New("insufficient cache")
var ErrOnCooldown = errors.New("attack on cooldown")
var ErrEliminated = errors.New("team eliminated")
var ErrNotPlaying = errors.New("match not in progress")
var ErrOutOfRange = errors.New("cursor not over job")

type TeamID string

const (
	TeamA TeamID = "A"
	TeamB TeamID = "B"
	TeamC TeamID = "C"
)

// Teams is the stable iteration order used wherever ties are broken.
var Teams = []TeamID{TeamA, TeamB, TeamC}

// TargetAll is the attack target sentinel meaning every rival team.
const TargetAll = "ALL"

type Role string

const (
	RoleDriver    Role = "DRIVER"
	RoleScheduler Role = "SCHEDULER"
	RoleHacker    Role = "HACKER"
)

var Roles = []Role{RoleDriver, RoleScheduler, RoleHacker}

type Status string

const (
	StatusLobby     Status = "LOBBY"
	StatusCountdown Status = "COUNTDOWN"
	StatusPlaying   Status = "PLAYING"
	StatusGameOver  Status = "GAMEOVER"
)

type JobStatus string

const (
	JobFresh    JobStatus = "fresh"
	JobWarning  JobStatus = "warning"
	JobCritical JobStatus = "critical"
)

type AttackKind string

const (
	AttackShuffle AttackKind = "SHUFFLE"
	AttackFreeze  AttackKind = "FREEZE"
	AttackGhost   AttackKind = "GHOST"
)

type Job struct {
	ID          string
	Team        TeamID
	Sector      int
	Birth       time.Time
	Status      JobStatus
	IsFake      bool
	Highlighted bool
}

type TeamRecord struct {
	HP        int
	Cache     int
	Score     int
	Cooldowns map[AttackKind]time.Time
	TargetPos float64

	// Cursor is the server-side position of the team's arm. It follows
	// TargetPos every tick unless the team is frozen.
	Cursor      float64
	FrozenUntil time.Time
}

type Player struct {
	ConnID       string
	PersistentID string
	Name         string
	Team         TeamID
	Role         Role
	Ready        bool
	Connected    bool

	// Removal is the pending grace-period timer while disconnected.
	Removal *scheduler.Timer
}

type Result struct {
	Winner TeamID
	Reason string
}

type MatchState struct {
	Status    Status
	TimeLeft  int
	Countdown *int
	FillBots  bool
	Teams     map[TeamID]*TeamRecord
	Jobs      []*Job
	Result    *Result
	Players   map[string]*Player
}

func NewMatchState() *MatchState {
	m := &MatchState{
		Teams:   make(map[TeamID]*TeamRecord, len(Teams)),
		Players: make(map[string]*Player),
	}
	for _, t := range Teams {
		m.Teams[t] = &TeamRecord{}
	}
	m.ResetToLobby()
	return m
}

// ResetToLobby returns the match to lobby defaults in place. Players and
// FillBots are left alone.
func (m *MatchState) ResetToLobby() {
	m.Status = StatusLobby
	m.TimeLeft = MatchDuration
	m.Countdown = nil
	m.Result = nil
	m.Jobs = nil
	m.ResetTeams()
}

func (m *MatchState) ResetTeams() {
	for _, t := range Teams {
		m.Teams[t].Reset()
	}
}

func (m *MatchState) Job(id string) *Job {
	for _, j := range m.Jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (m *MatchState) RemoveJob(id string) *Job {
	for i, j := range m.Jobs {
		if j.ID == id {
			m.Jobs = slices.Delete(m.Jobs, i, i+1)
			return j
		}
	}
	return nil
}

func (m *MatchState) JobsFor(team TeamID) []*Job {
	var out []*Job
	for _, j := range m.Jobs {
		if j.Team == team {
			out = append(out, j)
		}
	}
	return out
}

func (m *MatchState) PlayerByPersistentID(pid string) *Player {
	if pid == "" {
		return nil
	}
	for _, p := range m.Players {
		if p.PersistentID == pid {
			return p
		}
	}
	return nil
}

// TeamPlayers returns the team's registered players ordered by role.
func (m *MatchState) TeamPlayers(team TeamID) []*Player {
	var out []*Player
	for _, p := range m.Players {
		if p.Team == team {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b *Player) int {
		return slices.Index(Roles, a.Role) - slices.Index(Roles, b.Role)
	})
	return out
}

// Holder returns the player holding role on team, if any. With connectedOnly
// set, disconnected holders are ignored.
func (m *MatchState) Holder(team TeamID, role Role, connectedOnly bool) *Player {
	for _, p := range m.Players {
		if p.Team != team || p.Role != role {
			continue
		}
		if connectedOnly && !p.Connected {
			continue
		}
		return p
	}
	return nil
}

func (m *MatchState) AliveTeams() []TeamID {
	var out []TeamID
	for _, t := range Teams {
		if m.Teams[t].Alive() {
			out = append(out, t)
		}
	}
	return out
}

func (m *MatchState) Rivals(team TeamID) []TeamID {
	var out []TeamID
	for _, t := range Teams {
		if t != team {
			out = append(out, t)
		}
	}
	return out
}
