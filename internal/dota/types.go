package dota

// ItemSlots is the number of inventory slots reported per player and per additional unit
const ItemSlots = 6

// Match represents one parsed match from the match-details API
type Match struct {
	MatchID               int64
	GameMode              GameMode
	LobbyType             LobbyType
	TowerStatusDire       int32
	TowerStatusRadiant    int32
	BarracksStatusDire    int32
	BarracksStatusRadiant int32
	Cluster               int32
	Season                int32
	StartTime             int64 // Also the version of every stored cell
	MatchSeqNum           int64
	LeagueID              int32
	FirstBloodTime        int32
	NegativeVotes         int32
	PositiveVotes         int32
	Duration              int32
	RadiantWin            bool
	Players               []Player
}

// Player represents one player's performance in a match
type Player struct {
	PlayerSlot      int32            `json:"player_slot"`
	HeroID          int32            `json:"hero_id"`
	Level           int32            `json:"level"`
	Gold            int32            `json:"gold"`
	GoldSpent       int32            `json:"gold_spent"`
	GoldPerMinute   float64          `json:"gold_per_min"`
	Kills           int32            `json:"kills"`
	Deaths          int32            `json:"deaths"`
	Assists         int32            `json:"assists"`
	LastHits        int32            `json:"last_hits"`
	Denies          int32            `json:"denies"`
	HeroDamage      int32            `json:"hero_damage"`
	HeroHealing     int32            `json:"hero_healing"`
	TowerDamage     int32            `json:"tower_damage"`
	ExpPerMinute    float64          `json:"xp_per_min"`
	AccountID       int64            `json:"account_id"`    // -1 when the API omits it
	LeaverStatus    int32            `json:"leaver_status"` // 0 when the API omits it
	ItemIDs         [ItemSlots]int32 `json:"item_ids"`
	AbilityUpgrades []AbilityUpgrade `json:"ability_upgrades"`
	AdditionalUnits *AdditionalUnit  `json:"additional_units"`
}

// AbilityUpgrade is one skill point spent by a player, in the order it happened
type AbilityUpgrade struct {
	Level     int32 `json:"level"`
	AbilityID int32 `json:"ability"`
	Time      int32 `json:"time"`
}

// AdditionalUnit is a player-controlled companion unit (e.g. Lone Druid's bear)
type AdditionalUnit struct {
	Name    string           `json:"unitname"`
	ItemIDs [ItemSlots]int32 `json:"item_ids"`
}

// Players is the composite value stored under the player_data column
type Players struct {
	Players []Player `json:"players"`
}

// Sentinels used when optional player fields are absent
const (
	AnonymousAccountID int64 = -1
	LeaverStatusStayed int32 = 0
)
