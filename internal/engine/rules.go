package engine

import (
	"math"
	"time"
)

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func ClampPos(pos float64) float64 {
	if math.IsNaN(pos) {
		return DefaultTargetPos
	}
	return math.Max(0, math.Min(TrackSize-1, pos))
}

func (t *TeamRecord) Reset() {
	t.HP = MaxHP
	t.Cache = StartCache
	t.Score = 0
	t.Cooldowns = map[AttackKind]time.Time{}
	t.TargetPos = DefaultTargetPos
	t.Cursor = DefaultTargetPos
	t.FrozenUntil = time.Time{}
}

func (t *TeamRecord) Alive() bool { return t.HP > 0 }

// Damage lowers hp by n, clamped at zero, and returns the hp actually lost.
func (t *TeamRecord) Damage(n int) int {
	before := t.HP
	t.HP = clamp(t.HP-n, 0, MaxHP)
	return before - t.HP
}

func (t *TeamRecord) AddCache(n int) {
	t.Cache = clamp(t.Cache+n, 0, MaxCache)
}

// Spend debits cost from the cache. It reports false and leaves the cache
// untouched when the cache does not cover it.
func (t *TeamRecord) Spend(cost int) bool {
	if t.Cache < cost {
		return false
	}
	t.Cache = clamp(t.Cache-cost, 0, MaxCache)
	return true
}

func (t *TeamRecord) CoolingDown(kind AttackKind, now time.Time) bool {
	readyAt, ok := t.Cooldowns[kind]
	return ok && now.Before(readyAt)
}

func (t *TeamRecord) StartCooldown(kind AttackKind, now time.Time) {
	t.Cooldowns[kind] = now.Add(Attacks[kind].Cooldown)
}

func (t *TeamRecord) Frozen(now time.Time) bool {
	return now.Before(t.FrozenUntil)
}

// StepCursor moves the cursor one tick toward TargetPos.
func (t *TeamRecord) StepCursor(now time.Time) {
	if t.Frozen(now) {
		return
	}
	diff := t.TargetPos - t.Cursor
	if math.Abs(diff) <= CursorSnap {
		t.Cursor = t.TargetPos
		return
	}
	t.Cursor = ClampPos(t.Cursor + diff*CursorFollow)
}

// Covers reports whether the cursor is close enough to service a sector.
func (t *TeamRecord) Covers(sector int) bool {
	d := int(math.Round(t.Cursor)) - sector
	if d < 0 {
		d = -d
	}
	return d < ServiceRange
}

// JobStatusForAge derives a job's status from its age.
func JobStatusForAge(age time.Duration) JobStatus {
	switch {
	case age >= JobLifetime*8/10:
		return JobCritical
	case age >= JobLifetime/2:
		return JobWarning
	default:
		return JobFresh
	}
}

func (j *Job) Expired(now time.Time) bool {
	return now.Sub(j.Birth) >= JobLifetime
}

// AttackCost returns what kind costs against one rival, or double that
// against all rivals.
func AttackCost(kind AttackKind, all bool) (int, error) {
	spec, ok := Attacks[kind]
	if !ok {
		return 0, ErrUnknownAttack
	}
	if all {
		return spec.Cost * 2, nil
	}
	return spec.Cost, nil
}

func CheapestAttackCost() int {
	return Attacks[AttackKinds[0]].Cost
}

func ParseTeam(s string) (TeamID, error) {
	switch TeamID(s) {
	case TeamA, TeamB, TeamC:
		return TeamID(s), nil
	default:
		return "", ErrUnknownTeam
	}
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDriver, RoleScheduler, RoleHacker:
		return Role(s), nil
	default:
		return "", ErrUnknownRole
	}
}

func ParseAttack(s string) (AttackKind, error) {
	if _, ok := Attacks[AttackKind(s)]; !ok {
		return "", ErrUnknownAttack
	}
	return AttackKind(s), nil
}
