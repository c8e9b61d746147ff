package engine

import "time"

const (
	MaxPlayersPerTeam = 3
	MaxHP             = 100
	MaxCache          = 100
	StartCache        = 20
	MatchDuration     = 300 // seconds
	CountdownFrom     = 5

	TrackSize        = 200 // sectors 0..199
	DefaultTargetPos = 100

	TickInterval     = 100 * time.Millisecond
	CountdownStep    = time.Second
	JobLifetime      = 12 * time.Second
	SpawnInterval    = 2500 * time.Millisecond
	DisconnectGrace  = 30 * time.Second
	AutoResetDelay   = 10 * time.Second
	ServiceDwellTime = 500 * time.Millisecond

	ExplosionDamage = 10
	DropDamage      = 5
	ServiceScore    = 100
	ServiceRefill   = 10
	GhostDecoys     = 5

	// ServiceRange is the exclusive sector distance at which the cursor
	// covers a job.
	ServiceRange = 3

	CursorFollow = 0.22 // fraction of the remaining distance closed per tick
	CursorSnap   = 0.5
)

// SpawnChance is the per-tick spawn probability giving an expected
// inter-arrival time of SpawnInterval.
const SpawnChance = float64(TickInterval) / float64(SpawnInterval)

type AttackSpec struct {
	Cost     int
	Cooldown time.Duration
	Duration time.Duration // how long clients apply the debuff; 0 for instant
}

var Attacks = map[AttackKind]AttackSpec{
	AttackShuffle: {Cost: 30, Cooldown: 10 * time.Second, Duration: 5 * time.Second},
	AttackFreeze:  {Cost: 60, Cooldown: 20 * time.Second, Duration: 3 * time.Second},
	AttackGhost:   {Cost: 45, Cooldown: 30 * time.Second},
}

// AttackKinds lists kinds cheapest first.
var AttackKinds = []AttackKind{AttackShuffle, AttackGhost, AttackFreeze}
