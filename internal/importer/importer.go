// Package importer turns match-details lines into versioned table writes.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"dotaloader/internal/dota"
	"dotaloader/internal/extract"
)

// Family is the column family every match column is written to
const Family = "data"

// Column qualifiers, in emission order
const (
	ColMatchID               = "match_id"
	ColDireTowersStatus      = "dire_towers_status"
	ColRadiantTowersStatus   = "radiant_towers_status"
	ColDireBarracksStatus    = "dire_barracks_status"
	ColRadiantBarracksStatus = "radiant_barracks_status"
	ColCluster               = "cluster"
	ColSeason                = "season"
	ColStartTime             = "start_time"
	ColMatchSeqNum           = "match_seq_num"
	ColLeagueID              = "league_id"
	ColFirstBloodTime        = "first_blood_time"
	ColNegativeVotes         = "negative_votes"
	ColPositiveVotes         = "positive_votes"
	ColDuration              = "duration"
	ColRadiantWins           = "radiant_wins"
	ColPlayerData            = "player_data"
	ColGameMode              = "game_mode"
	ColLobbyType             = "lobby_type"
)

// Columns lists every qualifier written per match
var Columns = []string{
	ColMatchID, ColDireTowersStatus, ColRadiantTowersStatus, ColDireBarracksStatus,
	ColRadiantBarracksStatus, ColCluster, ColSeason, ColStartTime, ColMatchSeqNum,
	ColLeagueID, ColFirstBloodTime, ColNegativeVotes, ColPositiveVotes, ColDuration,
	ColRadiantWins, ColPlayerData, ColGameMode, ColLobbyType,
}

// EntityKey is the storage key of a match: its id in decimal
func EntityKey(m *dota.Match) string {
	return strconv.FormatInt(m.MatchID, 10)
}

// Cells returns the full write set for m, every cell at version m.StartTime.
// The enum ranges are checked again here so a Match built by hand cannot
// reach storage with an unlabeled mode.
func Cells(m *dota.Match, eid EntityID) ([]Cell, error) {
	gameMode, err := m.GameMode.Label()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrRangeViolation, err)
	}
	lobbyType, err := m.LobbyType.Label()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrRangeViolation, err)
	}

	players := m.Players
	if players == nil {
		players = []dota.Player{}
	}

	values := []any{
		m.MatchID,
		m.TowerStatusDire,
		m.TowerStatusRadiant,
		m.BarracksStatusDire,
		m.BarracksStatusRadiant,
		m.Cluster,
		m.Season,
		m.StartTime,
		m.MatchSeqNum,
		m.LeagueID,
		m.FirstBloodTime,
		m.NegativeVotes,
		m.PositiveVotes,
		m.Duration,
		m.RadiantWin,
		dota.Players{Players: players},
		gameMode,
		lobbyType,
	}

	cells := make([]Cell, len(Columns))
	for i, col := range Columns {
		cells[i] = Cell{
			Entity:    eid,
			Family:    Family,
			Qualifier: col,
			Version:   m.StartTime,
			Value:     values[i],
		}
	}
	return cells, nil
}

// Emit writes m to tc. Write errors are returned unchanged; cells already
// written before a failure are left in place.
func Emit(ctx context.Context, tc TableContext, m *dota.Match) error {
	cells, err := Cells(m, tc.EntityID(EntityKey(m)))
	if err != nil {
		return err
	}

	if bp, ok := tc.(BatchPutter); ok {
		return bp.PutCells(ctx, cells)
	}
	for _, c := range cells {
		if err := tc.Put(ctx, c.Entity, c.Family, c.Qualifier, c.Version, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// Importer adapts the extractor and emitter to an execution engine.
// It holds no per-line state; one Importer serves any number of goroutines.
type Importer struct {
	logger *slog.Logger
	hooks  []Hook
}

// Option configures an Importer
type Option func(*Importer)

// WithLogger sets the logger failures are reported to
func WithLogger(logger *slog.Logger) Option {
	return func(imp *Importer) {
		imp.logger = logger
	}
}

// WithHook adds a diagnostic hook run after the failure is logged
func WithHook(h Hook) Option {
	return func(imp *Importer) {
		imp.hooks = append(imp.hooks, h)
	}
}

// New creates an Importer
func New(opts ...Option) *Importer {
	imp := &Importer{logger: slog.Default()}
	for _, opt := range opts {
		opt(imp)
	}
	imp.logger = imp.logger.With("component", "importer")
	return imp
}

// Produce parses one line and writes it to tc.
// On failure the line is recorded for diagnosis and the original error is returned.
func (imp *Importer) Produce(ctx context.Context, pos Position, line []byte, tc TableContext) error {
	m, err := extract.ParseMatch(line)
	if err == nil {
		err = Emit(ctx, tc, m)
	}
	if err != nil {
		imp.record(ctx, Failure{Pos: pos, Line: line, Err: err})
		return err
	}
	return nil
}
