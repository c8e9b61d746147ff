// Package protocol defines the websocket wire format: a typed envelope, the
// closed set of client actions and the server messages.
package protocol

import "encoding/json"

// Client -> Server
const (
	ActJoinLobby   = "join_lobby"
	ActLeaveTeam   = "leave_team"
	ActToggleReady = "toggle_ready"
	ActToggleBots  = "toggle_bots"
	ActResetLobby  = "reset_lobby"
	ActDriverInput = "driver_input"
	ActHighlight   = "highlight_request"
	ActDrop        = "drop_request"
	ActService     = "service_success"
	ActAttack      = "attack"
)

// Server -> Client
const (
	MsgWelcome         = "welcome"
	MsgInitGame        = "init_game"
	MsgLobbyUpdate     = "lobby_update"
	MsgGameStart       = "game_start"
	MsgCountdownTick   = "countdown_tick"
	MsgGameTick        = "game_tick"
	MsgTeamData        = "team_data"
	MsgArmUpdate       = "arm_update"
	MsgDebuff          = "debuff_received"
	MsgServiceFeedback = "service_feedback"
	MsgLog             = "log"
	MsgGameOver        = "game_over"
	MsgRejoin          = "rejoin_success"
	MsgError           = "error"
)

// Log message severities understood by the client.
const (
	LogInfo    = "info"
	LogSuccess = "success"
	LogWarning = "warning"
	LogDanger  = "danger"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
