package dota

import (
	"strings"
	"testing"
)

func TestGameModeLabels(t *testing.T) {
	seen := make(map[string]bool)
	for m := MinGameMode; m <= MaxGameMode; m++ {
		label, err := m.Label()
		if err != nil {
			t.Fatalf("GameMode %d: unexpected error: %v", m, err)
		}
		if label == "" {
			t.Errorf("GameMode %d: empty label", m)
		}
		if seen[label] {
			t.Errorf("GameMode %d: duplicate label %s", m, label)
		}
		seen[label] = true
	}
	if len(seen) != 14 {
		t.Errorf("Expected 14 game modes, got %d", len(seen))
	}

	if label, _ := GameMode(0).Label(); label != "UNKNOWN_ZERO" {
		t.Errorf("Expected game mode 0 to be UNKNOWN_ZERO, got %s", label)
	}
}

func TestLobbyTypeLabels(t *testing.T) {
	seen := make(map[string]bool)
	for lt := MinLobbyType; lt <= MaxLobbyType; lt++ {
		label, err := lt.Label()
		if err != nil {
			t.Fatalf("LobbyType %d: unexpected error: %v", lt, err)
		}
		if label == "" {
			t.Errorf("LobbyType %d: empty label", lt)
		}
		seen[label] = true
	}
	if len(seen) != 7 {
		t.Errorf("Expected 7 lobby types, got %d", len(seen))
	}

	if label, _ := LobbyType(-1).Label(); label != "INVALID" {
		t.Errorf("Expected lobby type -1 to be INVALID, got %s", label)
	}
	if label, _ := LobbyType(5).Label(); label != "TEAM_MATCH" {
		t.Errorf("Expected lobby type 5 to be TEAM_MATCH, got %s", label)
	}
}

func TestEnumLabels_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		label func() (string, error)
		want  string
	}{
		{"game mode 14", GameMode(14).Label, "14"},
		{"game mode -1", GameMode(-1).Label, "-1"},
		{"lobby type 6", LobbyType(6).Label, "6"},
		{"lobby type 7", LobbyType(7).Label, "7"},
		{"lobby type -2", LobbyType(-2).Label, "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, err := tt.label()
			if err == nil {
				t.Fatalf("Expected error, got label %q", label)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to name value %s, got: %v", tt.want, err)
			}
		})
	}
}

func TestEnumString(t *testing.T) {
	if s := GameModeCaptainsMode.String(); s != "CAPTAINS_MODE" {
		t.Errorf("Expected CAPTAINS_MODE, got %s", s)
	}
	if s := GameMode(99).String(); s != "GameMode(99)" {
		t.Errorf("Expected GameMode(99), got %s", s)
	}
	if s := LobbyType(9).String(); s != "LobbyType(9)" {
		t.Errorf("Expected LobbyType(9), got %s", s)
	}
}
