package dota

import "fmt"

// GameMode is the game_mode value reported by the match-details API
type GameMode int32

// LobbyType is the lobby_type value reported by the match-details API
type LobbyType int32

// Game modes. Zero is reported for some matches and gets its own label.
const (
	GameModeUnknownZero GameMode = iota
	GameModeAllPick
	GameModeCaptainsMode
	GameModeRandomDraft
	GameModeSingleDraft
	GameModeAllRandom
	GameModeIntro
	GameModeDiretide
	GameModeReverseCaptainsMode
	GameModeGreeviling
	GameModeTutorial
	GameModeMidOnly
	GameModeLeastPlayed
	GameModeNewPlayerPool
)

// Lobby types
const (
	LobbyTypeInvalid LobbyType = iota - 1
	LobbyTypePublicMatchmaking
	LobbyTypePractice
	LobbyTypeTournament
	LobbyTypeTutorial
	LobbyTypeCoopWithBots
	LobbyTypeTeamMatch
)

// Inclusive bounds of the defined enumerations
const (
	MinGameMode  = GameModeUnknownZero
	MaxGameMode  = GameModeNewPlayerPool
	MinLobbyType = LobbyTypeInvalid
	MaxLobbyType = LobbyTypeTeamMatch
)

var gameModeLabels = [...]string{
	"UNKNOWN_ZERO",
	"ALL_PICK",
	"CAPTAINS_MODE",
	"RANDOM_DRAFT",
	"SINGLE_DRAFT",
	"ALL_RANDOM",
	"INTRO",
	"DIRETIDE",
	"REVERSE_CAPTAINS_MODE",
	"GREEVILING",
	"TUTORIAL",
	"MID_ONLY",
	"LEAST_PLAYED",
	"NEW_PLAYER_POOL",
}

// Indexed by LobbyType+1
var lobbyTypeLabels = [...]string{
	"INVALID",
	"PUBLIC_MATCHMAKING",
	"PRACTICE",
	"TOURNAMENT",
	"TUTORIAL",
	"CO_OP_WITH_BOTS",
	"TEAM_MATCH",
}

// Valid reports whether m is one of the defined game modes
func (m GameMode) Valid() bool {
	return m >= MinGameMode && m <= MaxGameMode
}

// Label returns the stored label for m, or an error naming the value if it is undefined
func (m GameMode) Label() (string, error) {
	if !m.Valid() {
		return "", fmt.Errorf("bad game mode int: %d", int32(m))
	}
	return gameModeLabels[m], nil
}

func (m GameMode) String() string {
	if label, err := m.Label(); err == nil {
		return label
	}
	return fmt.Sprintf("GameMode(%d)", int32(m))
}

// Valid reports whether t is one of the defined lobby types
func (t LobbyType) Valid() bool {
	return t >= MinLobbyType && t <= MaxLobbyType
}

// Label returns the stored label for t, or an error naming the value if it is undefined
func (t LobbyType) Label() (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("bad lobby type int: %d", int32(t))
	}
	return lobbyTypeLabels[t+1], nil
}

func (t LobbyType) String() string {
	if label, err := t.Label(); err == nil {
		return label
	}
	return fmt.Sprintf("LobbyType(%d)", int32(t))
}
