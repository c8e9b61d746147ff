package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/disk-defender-backend/internal/engine"
)

var ErrUnknownAction = errors.New("unknown action")

const maxNameLen = 24

// Action is one validated client request. The set of implementations is
// closed: one per inbound message type.
type Action interface{ isAction() }

type JoinLobby struct {
	Team engine.TeamID
	Role engine.Role
	Name string
}

type LeaveTeam struct{}

type ToggleReady struct{}

type ToggleBots struct{}

type ResetLobby struct{}

type DriverInput struct {
	Team      engine.TeamID
	TargetPos float64
}

type HighlightRequest struct {
	JobID string
}

type DropRequest struct {
	JobID string
	Team  engine.TeamID
}

type ServiceSuccess struct {
	JobID string
	Team  engine.TeamID
}

// Attack targets one rival team, or every rival when All is set.
type Attack struct {
	Team   engine.TeamID
	Target engine.TeamID
	All    bool
	Kind   engine.AttackKind
}

func (JoinLobby) isAction()        {}
func (LeaveTeam) isAction()        {}
func (ToggleReady) isAction()      {}
func (ToggleBots) isAction()       {}
func (ResetLobby) isAction()       {}
func (DriverInput) isAction()      {}
func (HighlightRequest) isAction() {}
func (DropRequest) isAction()      {}
func (ServiceSuccess) isAction()   {}
func (Attack) isAction()           {}

// ActionType returns the wire type of a, for logging.
func ActionType(a Action) string {
	switch a.(type) {
	case JoinLobby:
		return ActJoinLobby
	case LeaveTeam:
		return ActLeaveTeam
	case ToggleReady:
		return ActToggleReady
	case ToggleBots:
		return ActToggleBots
	case ResetLobby:
		return ActResetLobby
	case DriverInput:
		return ActDriverInput
	case HighlightRequest:
		return ActHighlight
	case DropRequest:
		return ActDrop
	case ServiceSuccess:
		return ActService
	case Attack:
		return ActAttack
	default:
		return "unknown"
	}
}

type joinPayload struct {
	Team string `json:"team"`
	Role string `json:"role"`
	Name string `json:"name"`
}

type driverPayload struct {
	Team      string   `json:"team"`
	TargetPos *float64 `json:"targetPos"`
}

type jobPayload struct {
	ID   string `json:"id"`
	Team string `json:"team,omitempty"`
}

type attackPayload struct {
	Team   string `json:"team"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// DecodeAction parses and validates one client message.
func DecodeAction(b []byte) (Action, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case ActLeaveTeam:
		return LeaveTeam{}, nil
	case ActToggleReady:
		return ToggleReady{}, nil
	case ActToggleBots:
		return ToggleBots{}, nil
	case ActResetLobby:
		return ResetLobby{}, nil

	case ActJoinLobby:
		p, err := DecodePayload[joinPayload](env)
		if err != nil {
			return nil, err
		}
		team, err := engine.ParseTeam(p.Team)
		if err != nil {
			return nil, err
		}
		role, err := engine.ParseRole(p.Role)
		if err != nil {
			return nil, err
		}
		return JoinLobby{Team: team, Role: role, Name: cleanName(p.Name)}, nil

	case ActDriverInput:
		p, err := DecodePayload[driverPayload](env)
		if err != nil {
			return nil, err
		}
		team, err := engine.ParseTeam(p.Team)
		if err != nil {
			return nil, err
		}
		if p.TargetPos == nil {
			return nil, fmt.Errorf("%s: missing targetPos", env.Type)
		}
		return DriverInput{Team: team, TargetPos: engine.ClampPos(*p.TargetPos)}, nil

	case ActHighlight:
		p, err := DecodePayload[jobPayload](env)
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s: missing id", env.Type)
		}
		return HighlightRequest{JobID: p.ID}, nil

	case ActDrop, ActService:
		p, err := DecodePayload[jobPayload](env)
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s: missing id", env.Type)
		}
		team, err := engine.ParseTeam(p.Team)
		if err != nil {
			return nil, err
		}
		if env.Type == ActDrop {
			return DropRequest{JobID: p.ID, Team: team}, nil
		}
		return ServiceSuccess{JobID: p.ID, Team: team}, nil

	case ActAttack:
		p, err := DecodePayload[attackPayload](env)
		if err != nil {
			return nil, err
		}
		team, err := engine.ParseTeam(p.Team)
		if err != nil {
			return nil, err
		}
		kind, err := engine.ParseAttack(p.Kind)
		if err != nil {
			return nil, err
		}
		if p.Target == engine.TargetAll {
			return Attack{Team: team, All: true, Kind: kind}, nil
		}
		target, err := engine.ParseTeam(p.Target)
		if err != nil || target == team {
			return nil, engine.ErrInvalidTarget
		}
		return Attack{Team: team, Target: target, Kind: kind}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown"
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}
