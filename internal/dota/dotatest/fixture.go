// Package dotatest builds match-details documents for tests.
package dotatest

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Match returns a valid two-player match-details document as a generic map.
// Player 0 has ability upgrades and a bare-object additional unit; player 1 is
// anonymous (account_id null) and omits leaver_status, ability_upgrades and
// additional_units.
func Match() map[string]any {
	return map[string]any{
		"match_id":                int64(1000193456),
		"match_seq_num":           int64(905021234),
		"game_mode":               2,
		"lobby_type":              0,
		"tower_status_dire":       1796,
		"tower_status_radiant":    2047,
		"barracks_status_dire":    51,
		"barracks_status_radiant": 63,
		"cluster":                 133,
		"season":                  3,
		"start_time":              int64(1356912005),
		"leagueid":                0,
		"first_blood_time":        94,
		"negative_votes":          1,
		"positive_votes":          4,
		"duration":                2519,
		"radiant_win":             true,
		"players": []any{
			map[string]any{
				"account_id":    int64(89320452),
				"player_slot":   0,
				"hero_id":       80,
				"level":         25,
				"gold":          1423,
				"gold_spent":    19870,
				"gold_per_min":  512,
				"xp_per_min":    633.5,
				"kills":         11,
				"deaths":        3,
				"assists":       7,
				"last_hits":     301,
				"denies":        12,
				"hero_damage":   15032,
				"hero_healing":  0,
				"tower_damage":  4201,
				"leaver_status": 0,
				"item_0":        63,
				"item_1":        108,
				"item_2":        0,
				"item_3":        145,
				"item_4":        46,
				"item_5":        1,
				"ability_upgrades": []any{
					map[string]any{"ability": 5412, "time": 125, "level": 1},
					map[string]any{"ability": 5413, "time": 290, "level": 2},
					map[string]any{"ability": 5412, "time": 410, "level": 3},
				},
				"additional_units": Bear(),
			},
			map[string]any{
				"account_id":   nil,
				"player_slot":  128,
				"hero_id":      14,
				"level":        18,
				"gold":         311,
				"gold_spent":   9950,
				"gold_per_min": 301,
				"xp_per_min":   402,
				"kills":        2,
				"deaths":       9,
				"assists":      14,
				"last_hits":    44,
				"denies":       3,
				"hero_damage":  6710,
				"hero_healing": 1200,
				"tower_damage": 0,
				"item_0":       36,
				"item_1":       0,
				"item_2":       0,
				"item_3":       0,
				"item_4":       29,
				"item_5":       0,
			},
		},
	}
}

// Bear returns a Lone Druid bear as the API reports it in additional_units
func Bear() map[string]any {
	return map[string]any{
		"unitname": "spirit_bear",
		"item_0":   50,
		"item_1":   0,
		"item_2":   143,
		"item_3":   0,
		"item_4":   0,
		"item_5":   212,
	}
}

// Player returns player i of doc for in-place edits
func Player(doc map[string]any, i int) map[string]any {
	return doc["players"].([]any)[i].(map[string]any)
}

// Line encodes doc as a single line of JSON
func Line(doc map[string]any) []byte {
	data, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("dotatest: marshal: %v", err))
	}
	return data
}
