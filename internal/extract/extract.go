// Package extract turns one line of match-details JSON into a validated dota.Match.
//
// Everything here is a pure function of its input: no package state is mutated
// and the JSON decoder keeps no per-call state, so lines may be parsed from any
// number of goroutines at once.
package extract

import (
	"fmt"

	"dotaloader/internal/dota"

	json "github.com/goccy/go-json"
)

var itemFields = func() [dota.ItemSlots]string {
	var names [dota.ItemSlots]string
	for i := range names {
		names[i] = fmt.Sprintf("item_%d", i)
	}
	return names
}()

// fieldReader keeps the first error so a run of required reads stays compact
type fieldReader struct {
	obj Object
	err error
}

func (r *fieldReader) requireInt32(name string) int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.obj.RequireInt32(name)
	r.err = err
	return v
}

func (r *fieldReader) requireInt64(name string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.obj.RequireInt64(name)
	r.err = err
	return v
}

func (r *fieldReader) requireFloat64(name string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.obj.RequireFloat64(name)
	r.err = err
	return v
}

func (r *fieldReader) requireBool(name string) bool {
	if r.err != nil {
		return false
	}
	v, err := r.obj.RequireBool(name)
	r.err = err
	return v
}

// ParseMatch parses one match-details line.
// The returned error wraps ErrMalformedLine, ErrMissingField, ErrInvalidField or
// ErrRangeViolation and names the JSON path at fault.
func ParseMatch(line []byte) (*dota.Match, error) {
	if !json.Valid(line) {
		return nil, &FieldError{Err: ErrMalformedLine, Detail: "line is not valid JSON"}
	}
	root, err := DecodeObject("", line)
	if err != nil {
		return nil, err
	}

	r := fieldReader{obj: root}
	gameMode := r.requireInt64("game_mode")
	lobbyType := r.requireInt64("lobby_type")
	m := &dota.Match{
		MatchID:               r.requireInt64("match_id"),
		TowerStatusDire:       r.requireInt32("tower_status_dire"),
		TowerStatusRadiant:    r.requireInt32("tower_status_radiant"),
		BarracksStatusDire:    r.requireInt32("barracks_status_dire"),
		BarracksStatusRadiant: r.requireInt32("barracks_status_radiant"),
		Cluster:               r.requireInt32("cluster"),
		Season:                r.requireInt32("season"),
		StartTime:             r.requireInt64("start_time"),
		MatchSeqNum:           r.requireInt64("match_seq_num"),
		LeagueID:              r.requireInt32("leagueid"),
		FirstBloodTime:        r.requireInt32("first_blood_time"),
		NegativeVotes:         r.requireInt32("negative_votes"),
		PositiveVotes:         r.requireInt32("positive_votes"),
		Duration:              r.requireInt32("duration"),
		RadiantWin:            r.requireBool("radiant_win"),
	}
	if r.err != nil {
		return nil, r.err
	}

	// Range-check the full-width values before narrowing
	if err := checkRange("lobby_type", lobbyType, int64(dota.MinLobbyType), int64(dota.MaxLobbyType)); err != nil {
		return nil, err
	}
	if err := checkRange("game_mode", gameMode, int64(dota.MinGameMode), int64(dota.MaxGameMode)); err != nil {
		return nil, err
	}
	m.LobbyType = dota.LobbyType(lobbyType)
	m.GameMode = dota.GameMode(gameMode)

	players, err := root.RequireArray("players")
	if err != nil {
		return nil, err
	}
	m.Players = make([]dota.Player, 0, len(players))
	for i, raw := range players {
		obj, err := DecodeObject(fmt.Sprintf("players[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		p, err := parsePlayer(obj)
		if err != nil {
			return nil, err
		}
		m.Players = append(m.Players, p)
	}

	return m, nil
}

// ValidateEnums checks lobby_type and game_mode against their defined ranges
func ValidateEnums(m *dota.Match) error {
	if err := checkRange("lobby_type", int64(m.LobbyType), int64(dota.MinLobbyType), int64(dota.MaxLobbyType)); err != nil {
		return err
	}
	return checkRange("game_mode", int64(m.GameMode), int64(dota.MinGameMode), int64(dota.MaxGameMode))
}

func checkRange(field string, v, lo, hi int64) error {
	if v < lo || v > hi {
		return &RangeError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}

func parsePlayer(obj Object) (dota.Player, error) {
	r := fieldReader{obj: obj}
	p := dota.Player{
		PlayerSlot:    r.requireInt32("player_slot"),
		HeroID:        r.requireInt32("hero_id"),
		Level:         r.requireInt32("level"),
		Gold:          r.requireInt32("gold"),
		GoldSpent:     r.requireInt32("gold_spent"),
		GoldPerMinute: r.requireFloat64("gold_per_min"),
		Kills:         r.requireInt32("kills"),
		Deaths:        r.requireInt32("deaths"),
		Assists:       r.requireInt32("assists"),
		LastHits:      r.requireInt32("last_hits"),
		Denies:        r.requireInt32("denies"),
		HeroDamage:    r.requireInt32("hero_damage"),
		HeroHealing:   r.requireInt32("hero_healing"),
		TowerDamage:   r.requireInt32("tower_damage"),
		ExpPerMinute:  r.requireFloat64("xp_per_min"),
	}
	if r.err != nil {
		return dota.Player{}, r.err
	}

	var err error
	if p.AccountID, err = obj.OptionalInt64("account_id", dota.AnonymousAccountID); err != nil {
		return dota.Player{}, err
	}
	if p.LeaverStatus, err = obj.OptionalInt32("leaver_status", dota.LeaverStatusStayed); err != nil {
		return dota.Player{}, err
	}
	if p.ItemIDs, err = readItems(obj); err != nil {
		return dota.Player{}, err
	}
	if p.AbilityUpgrades, err = parseAbilityUpgrades(obj); err != nil {
		return dota.Player{}, err
	}
	if p.AdditionalUnits, err = parseAdditionalUnit(obj); err != nil {
		return dota.Player{}, err
	}
	return p, nil
}

// readItems reads item_0..item_5; an incomplete inventory is corrupt data
func readItems(obj Object) ([dota.ItemSlots]int32, error) {
	var items [dota.ItemSlots]int32
	for i, name := range itemFields {
		v, err := obj.RequireInt32(name)
		if err != nil {
			return items, err
		}
		items[i] = v
	}
	return items, nil
}

func parseAbilityUpgrades(obj Object) ([]dota.AbilityUpgrade, error) {
	elems, err := obj.OptionalArray("ability_upgrades")
	if err != nil {
		return nil, err
	}

	upgrades := make([]dota.AbilityUpgrade, 0, len(elems))
	for i, raw := range elems {
		o, err := DecodeObject(fmt.Sprintf("%s[%d]", obj.fieldPath("ability_upgrades"), i), raw)
		if err != nil {
			return nil, err
		}
		u, err := parseAbilityUpgrade(o)
		if err != nil {
			return nil, err
		}
		upgrades = append(upgrades, u)
	}
	return upgrades, nil
}

func parseAbilityUpgrade(obj Object) (dota.AbilityUpgrade, error) {
	r := fieldReader{obj: obj}
	u := dota.AbilityUpgrade{
		Level:     r.requireInt32("level"),
		AbilityID: r.requireInt32("ability"),
		Time:      r.requireInt32("time"),
	}
	return u, r.err
}

func parseAdditionalUnit(obj Object) (*dota.AdditionalUnit, error) {
	unit, ok, err := unitObject(obj)
	if err != nil || !ok {
		return nil, err
	}

	name, err := unit.RequireString("unitname")
	if err != nil {
		return nil, err
	}
	items, err := readItems(unit)
	if err != nil {
		return nil, err
	}
	return &dota.AdditionalUnit{Name: name, ItemIDs: items}, nil
}

// unitObject resolves additional_units to a single object. The API sends either a
// bare object or a one-element list; both normalize here before any field is read.
func unitObject(obj Object) (Object, bool, error) {
	raw, ok := obj.Optional("additional_units")
	if !ok {
		return Object{}, false, nil
	}
	path := obj.fieldPath("additional_units")

	switch raw[0] {
	case '{':
		o, err := DecodeObject(path, raw)
		return o, err == nil, err
	case '[':
		elems, err := obj.array("additional_units", raw)
		if err != nil {
			return Object{}, false, err
		}
		if len(elems) == 0 {
			return Object{}, false, &FieldError{Path: path, Err: ErrMissingField, Detail: "empty list"}
		}
		o, err := DecodeObject(path+"[0]", elems[0])
		return o, err == nil, err
	}
	return Object{}, false, obj.invalid("additional_units", "object or list", raw)
}

// PeekMatchID reads match_id from a line without validating anything else.
// Used when describing a line that failed to parse.
func PeekMatchID(line []byte) (int64, bool) {
	root, err := DecodeObject("", line)
	if err != nil {
		return 0, false
	}
	id, err := root.RequireInt64("match_id")
	if err != nil {
		return 0, false
	}
	return id, true
}
