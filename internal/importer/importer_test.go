package importer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"dotaloader/internal/dota"
	"dotaloader/internal/dota/dotatest"
	"dotaloader/internal/extract"
)

// recordingTable keeps every Put in call order
type recordingTable struct {
	mu    sync.Mutex
	cells []Cell
	fail  error
	after int // fail after this many successful puts
}

func (r *recordingTable) EntityID(key string) EntityID {
	return EntityID("match:" + key)
}

func (r *recordingTable) Put(ctx context.Context, eid EntityID, family, qualifier string, version int64, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil && len(r.cells) >= r.after {
		return r.fail
	}
	r.cells = append(r.cells, Cell{Entity: eid, Family: family, Qualifier: qualifier, Version: version, Value: value})
	return nil
}

func (r *recordingTable) byQualifier() map[string]Cell {
	out := make(map[string]Cell, len(r.cells))
	for _, c := range r.cells {
		out[c.Qualifier] = c
	}
	return out
}

type batchTable struct {
	recordingTable
	batches int
}

func (b *batchTable) PutCells(ctx context.Context, cells []Cell) error {
	b.batches++
	b.cells = append(b.cells, cells...)
	return nil
}

func quietImporter(buf *bytes.Buffer, opts ...Option) *Importer {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func TestProduce_RoundTrip(t *testing.T) {
	doc := dotatest.Match()
	table := &recordingTable{}
	var logs bytes.Buffer

	err := quietImporter(&logs).Produce(context.Background(), Position{Split: "a.jsonl"}, dotatest.Line(doc), table)
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}

	if len(table.cells) != len(Columns) {
		t.Fatalf("Expected %d cells, got %d", len(Columns), len(table.cells))
	}
	for i, c := range table.cells {
		if c.Qualifier != Columns[i] {
			t.Errorf("Cell %d: expected qualifier %s, got %s", i, Columns[i], c.Qualifier)
		}
		if c.Entity != "match:1000193456" {
			t.Errorf("Cell %s: unexpected entity %s", c.Qualifier, c.Entity)
		}
		if c.Family != Family {
			t.Errorf("Cell %s: expected family %s, got %s", c.Qualifier, Family, c.Family)
		}
		if c.Version != 1356912005 {
			t.Errorf("Cell %s: expected version 1356912005, got %d", c.Qualifier, c.Version)
		}
	}

	cells := table.byQualifier()
	want := map[string]any{
		ColMatchID:               int64(1000193456),
		ColDireTowersStatus:      int32(1796),
		ColRadiantTowersStatus:   int32(2047),
		ColDireBarracksStatus:    int32(51),
		ColRadiantBarracksStatus: int32(63),
		ColCluster:               int32(133),
		ColSeason:                int32(3),
		ColStartTime:             int64(1356912005),
		ColMatchSeqNum:           int64(905021234),
		ColLeagueID:              int32(0),
		ColFirstBloodTime:        int32(94),
		ColNegativeVotes:         int32(1),
		ColPositiveVotes:         int32(4),
		ColDuration:              int32(2519),
		ColRadiantWins:           true,
		ColGameMode:              "CAPTAINS_MODE",
		ColLobbyType:             "PUBLIC_MATCHMAKING",
	}
	for col, v := range want {
		if got := cells[col].Value; got != v {
			t.Errorf("%s: expected %#v, got %#v", col, v, got)
		}
	}

	players, ok := cells[ColPlayerData].Value.(dota.Players)
	if !ok {
		t.Fatalf("Expected player_data to be dota.Players, got %T", cells[ColPlayerData].Value)
	}
	if len(players.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(players.Players))
	}

	p0 := players.Players[0]
	src := dotatest.Player(doc, 0)
	if p0.AccountID != src["account_id"].(int64) || p0.Gold != int32(src["gold"].(int)) || p0.GoldPerMinute != 512 {
		t.Errorf("Player 0 does not match source: %+v", p0)
	}
	if p0.AdditionalUnits == nil || p0.AdditionalUnits.Name != "spirit_bear" {
		t.Errorf("Expected spirit_bear unit, got %+v", p0.AdditionalUnits)
	}
	if len(p0.AbilityUpgrades) != 3 || p0.AbilityUpgrades[2].AbilityID != 5412 {
		t.Errorf("Unexpected upgrades: %+v", p0.AbilityUpgrades)
	}

	p1 := players.Players[1]
	if p1.AccountID != dota.AnonymousAccountID {
		t.Errorf("Expected null account_id to normalize to -1, got %d", p1.AccountID)
	}
	if p1.LeaverStatus != dota.LeaverStatusStayed {
		t.Errorf("Expected absent leaver_status to normalize to 0, got %d", p1.LeaverStatus)
	}

	if logs.Len() != 0 {
		t.Errorf("Expected no log output on success, got %s", logs.String())
	}
}

func TestProduce_GameModeZero(t *testing.T) {
	doc := dotatest.Match()
	doc["game_mode"] = 0
	table := &recordingTable{}
	var logs bytes.Buffer

	if err := quietImporter(&logs).Produce(context.Background(), Position{}, dotatest.Line(doc), table); err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if got := table.byQualifier()[ColGameMode].Value; got != "UNKNOWN_ZERO" {
		t.Errorf("Expected UNKNOWN_ZERO, got %v", got)
	}
}

func TestProduce_AllLabelsResolve(t *testing.T) {
	for lt := dota.MinLobbyType; lt <= dota.MaxLobbyType; lt++ {
		for gm := dota.MinGameMode; gm <= dota.MaxGameMode; gm++ {
			doc := dotatest.Match()
			doc["lobby_type"] = int(lt)
			doc["game_mode"] = int(gm)
			table := &recordingTable{}
			var logs bytes.Buffer

			if err := quietImporter(&logs).Produce(context.Background(), Position{}, dotatest.Line(doc), table); err != nil {
				t.Fatalf("lobby %d, mode %d: %v", lt, gm, err)
			}
			cells := table.byQualifier()
			if cells[ColGameMode].Value == "" || cells[ColLobbyType].Value == "" {
				t.Errorf("lobby %d, mode %d: empty label", lt, gm)
			}
		}
	}
}

func TestProduce_LobbyTypeOutOfRange(t *testing.T) {
	doc := dotatest.Match()
	doc["lobby_type"] = 7
	line := dotatest.Line(doc)
	table := &recordingTable{}
	var logs bytes.Buffer

	err := quietImporter(&logs).Produce(context.Background(), Position{Split: "warm/b.jsonl", Offset: 4096}, line, table)
	if !errors.Is(err, extract.ErrRangeViolation) {
		t.Fatalf("Expected ErrRangeViolation, got %v", err)
	}
	if !strings.Contains(err.Error(), "7") {
		t.Errorf("Expected error to name 7, got %v", err)
	}
	if len(table.cells) != 0 {
		t.Errorf("Expected no writes, got %d", len(table.cells))
	}

	out := logs.String()
	for _, want := range []string{"level=ERROR", "pos=warm/b.jsonl:4096", "match_id=1000193456", "line="} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %s, got %s", want, out)
		}
	}
}

func TestProduce_WriteErrorPropagates(t *testing.T) {
	boom := errors.New("region unavailable")
	table := &recordingTable{fail: boom, after: 4}
	var logs bytes.Buffer

	err := quietImporter(&logs).Produce(context.Background(), Position{}, dotatest.Line(dotatest.Match()), table)
	if err != boom {
		t.Fatalf("Expected write error unchanged, got %v", err)
	}
	if len(table.cells) != 4 {
		t.Errorf("Expected 4 cells before failure, got %d", len(table.cells))
	}
	if !strings.Contains(logs.String(), "region unavailable") {
		t.Errorf("Expected failure to be logged, got %s", logs.String())
	}
}

func TestProduce_BatchPutter(t *testing.T) {
	table := &batchTable{}
	var logs bytes.Buffer

	if err := quietImporter(&logs).Produce(context.Background(), Position{}, dotatest.Line(dotatest.Match()), table); err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	if table.batches != 1 {
		t.Errorf("Expected one batch, got %d", table.batches)
	}
	if len(table.cells) != len(Columns) {
		t.Errorf("Expected %d cells, got %d", len(Columns), len(table.cells))
	}
}

func TestProduce_HookFailureDoesNotMask(t *testing.T) {
	var logs bytes.Buffer
	var seen []Failure

	imp := quietImporter(&logs,
		WithHook(HookFunc(func(ctx context.Context, f Failure) error {
			return errors.New("reject file closed")
		})),
		WithHook(HookFunc(func(ctx context.Context, f Failure) error {
			panic("hook exploded")
		})),
		WithHook(HookFunc(func(ctx context.Context, f Failure) error {
			seen = append(seen, f)
			return nil
		})),
	)

	err := imp.Produce(context.Background(), Position{Split: "x", Offset: 9}, []byte(`{"match_id": 5`), &recordingTable{})
	if !errors.Is(err, extract.ErrMalformedLine) {
		t.Fatalf("Expected ErrMalformedLine, got %v", err)
	}

	if len(seen) != 1 || seen[0].Pos.Offset != 9 || !errors.Is(seen[0].Err, extract.ErrMalformedLine) {
		t.Errorf("Expected later hooks to still run, got %+v", seen)
	}

	out := logs.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "reject file closed") {
		t.Errorf("Expected hook error at debug level, got %s", out)
	}
	if !strings.Contains(out, "hook exploded") {
		t.Errorf("Expected hook panic at debug level, got %s", out)
	}
}

func TestCells_RejectsUnlabeledMatch(t *testing.T) {
	m := &dota.Match{MatchID: 1, GameMode: 14}
	if _, err := Cells(m, "1"); !errors.Is(err, extract.ErrRangeViolation) {
		t.Errorf("Expected ErrRangeViolation, got %v", err)
	}

	m = &dota.Match{MatchID: 1, LobbyType: -2}
	if _, err := Cells(m, "1"); !errors.Is(err, extract.ErrRangeViolation) {
		t.Errorf("Expected ErrRangeViolation, got %v", err)
	}
}

func TestCells_NilPlayers(t *testing.T) {
	cells, err := Cells(&dota.Match{MatchID: 7}, "7")
	if err != nil {
		t.Fatalf("Cells failed: %v", err)
	}
	for _, c := range cells {
		if c.Qualifier == ColPlayerData {
			if p := c.Value.(dota.Players); p.Players == nil {
				t.Error("Expected non-nil player slice")
			}
		}
	}
}

func TestProduce_Concurrent(t *testing.T) {
	var logs bytes.Buffer
	imp := quietImporter(&logs)
	table := &recordingTable{}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := dotatest.Match()
			doc["match_id"] = int64(i)
			if err := imp.Produce(context.Background(), Position{Offset: int64(i)}, dotatest.Line(doc), table); err != nil {
				t.Errorf("Produce %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if len(table.cells) != 16*len(Columns) {
		t.Errorf("Expected %d cells, got %d", 16*len(Columns), len(table.cells))
	}
}

func TestPosition_String(t *testing.T) {
	if got := (Position{Split: "warm/a.jsonl", Offset: 12}).String(); got != "warm/a.jsonl:12" {
		t.Errorf("Unexpected position string %s", got)
	}
}
