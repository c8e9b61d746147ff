package protocol

import "github.com/DoyleJ11/disk-defender-backend/internal/engine"

type Welcome struct {
	ConnectionID string `json:"connectionId"`
	PersistentID string `json:"persistentId"`
}

type PlayerView struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Team      engine.TeamID `json:"team"`
	Role      engine.Role   `json:"role"`
	Ready     bool          `json:"ready"`
	Connected bool          `json:"connected"`
}

type LobbyUpdate struct {
	Players []PlayerView `json:"players"`
}

// JobView deliberately has no decoy flag: decoys must look real.
type JobView struct {
	ID          string           `json:"id"`
	Sector      int              `json:"sector"`
	Birth       int64            `json:"birth"` // unix ms
	Status      engine.JobStatus `json:"status"`
	Highlighted bool             `json:"highlighted"`
}

// TeamScore is the part of a team record every connection may see.
type TeamScore struct {
	HP    int `json:"hp"`
	Score int `json:"score"`
}

// TeamData is the part of a team record only that team may see.
type TeamData struct {
	Cache     int                         `json:"cache"`
	Cooldowns map[engine.AttackKind]int64 `json:"cooldowns"` // ready-at, unix ms
	TargetPos float64                     `json:"targetPos"`
	Jobs      []JobView                   `json:"jobs"`
}

type GameTick struct {
	Teams    map[engine.TeamID]TeamScore `json:"teams"`
	TimeLeft int                         `json:"timeLeft"`
}

type GameOver struct {
	Winner engine.TeamID `json:"winner"`
	Reason string        `json:"reason"`
}

// InitGame is the match state as seen by one recipient. Team is only set
// for recipients on a team.
type InitGame struct {
	Status    engine.Status               `json:"status"`
	TimeLeft  int                         `json:"timeLeft"`
	Countdown *int                        `json:"countdown"`
	FillBots  bool                        `json:"fillBots"`
	Teams     map[engine.TeamID]TeamScore `json:"teams"`
	Team      *TeamData                   `json:"team,omitempty"`
	Players   []PlayerView                `json:"players"`
	Result    *GameOver                   `json:"result"`
}

type CountdownTick struct {
	N int `json:"n"`
}

type GameStart struct{}

type ArmUpdate struct {
	TargetPos float64       `json:"targetPos"`
	Team      engine.TeamID `json:"team"`
}

type Debuff struct {
	Kind       engine.AttackKind `json:"kind"`
	DurationMs int64             `json:"durationMs"`
}

type ServiceFeedback struct {
	Sector int    `json:"sector"`
	Text   string `json:"text"`
	Color  string `json:"color"`
}

type Log struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type Rejoin struct {
	Team  engine.TeamID `json:"team"`
	Role  engine.Role   `json:"role"`
	Name  string        `json:"name"`
	State InitGame      `json:"state"`
}

type Error struct {
	Message string `json:"message"`
}
