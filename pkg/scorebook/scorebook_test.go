package scorebook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/game"
	"github.com/teslashibe/go-putt/pkg/geom"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", log.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("result-%d", n) }
	return s
}

func holed(session string, r game.LevelResult, score int) game.Transition {
	return game.Transition{SessionID: session, From: game.PhaseStopped, To: game.PhaseHoled, Level: r.Level, Strokes: r.Strokes, Score: score, Result: &r}
}

func TestStore_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	steps := []game.Transition{
		{SessionID: "a", From: game.PhaseAiming, To: game.PhaseRolling, Level: 1, Strokes: 1},
		holed("a", game.LevelResult{Level: 1, Par: 3, Strokes: 2, Points: 125}, 125),
		{SessionID: "a", From: game.PhaseHoled, To: game.PhaseAiming, Level: 2, Score: 125},
		{SessionID: "a", From: game.PhaseStopped, To: game.PhaseGameOver, Level: 2, Strokes: 10, Score: 125,
			Result: &game.LevelResult{Level: 2, Par: 3, Strokes: 10, Forfeit: true}},

		holed("b", game.LevelResult{Level: 1, Par: 3, Strokes: 1, Points: 150}, 150),
		{SessionID: "b", From: game.PhaseHoled, To: game.PhaseGameOver, Level: 1, Score: 150},

		{SessionID: "c", From: game.PhaseAiming, To: game.PhaseRolling, Level: 1, Strokes: 1},
	}
	for _, tr := range steps {
		require.NoError(t, s.Record(ctx, tr))
	}

	a, err := s.Game(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 125, a.Score)
	require.NotNil(t, a.FinishedAt)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 1, 0, 0, time.UTC), a.StartedAt)
	assert.True(t, a.FinishedAt.After(a.StartedAt))
	assert.Equal(t, []game.LevelResult{
		{Level: 1, Par: 3, Strokes: 2, Points: 125},
		{Level: 2, Par: 3, Strokes: 10, Forfeit: true},
	}, a.Levels)

	c, err := s.Game(ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, c.FinishedAt)
	assert.Empty(t, c.Levels)

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"c", "b", "a"}, sessions(recent))

	recent, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sessions(recent))

	best, err := s.Best(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, sessions(best))
	assert.Len(t, best[0].Levels, 1)
}

func sessions(games []Game) []string {
	var out []string
	for _, g := range games {
		out = append(out, g.SessionID)
	}
	return out
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	_, err := s.Game(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Record(ctx, game.Transition{To: game.PhaseRolling}))

	require.NoError(t, s.Close())
	assert.Error(t, s.Record(ctx, game.Transition{SessionID: "x", To: game.PhaseRolling}))
	assert.NotPanics(t, func() { s.Hook(ctx)(game.Transition{SessionID: "x"}) })
}

func TestStore_RecordsEngineGame(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	cfg := game.DefaultConfig()
	cfg.Levels = game.DefaultLevels()[:1]
	cfg.CelebrationFrames = 1
	e, err := game.NewEngine(cfg, log.Nop())
	require.NoError(t, err)
	e.OnTransition(s.Hook(ctx))

	for _, x := range []float64{35, 35, 38, 41, 44} {
		e.Update(geom.Pt(x, 20))
	}
	for range cfg.StillnessFrames + 2 {
		e.Update(geom.Pt(44, 20))
	}
	require.Equal(t, game.PhaseGameOver, e.Phase())

	g, err := s.Game(ctx, e.SessionID())
	require.NoError(t, err)
	assert.Equal(t, 150, g.Score)
	assert.NotNil(t, g.FinishedAt)
	assert.Equal(t, []game.LevelResult{{Level: 1, Par: 3, Strokes: 1, Points: 150}}, g.Levels)
}
