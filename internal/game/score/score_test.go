package score

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/letter-challenge/internal/game/mode"
	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/judge"
	"github.com/palemoky/letter-challenge/internal/testutil"
)

func newAggregator() *Aggregator {
	return NewAggregator(judge.NewService(nil))
}

func TestComputeRoundClassic(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Classic)
	r.Letter = "س"
	testutil.SetAnswers(t, r, "p1", mode.GridAnswers{"boyName": "سعيد", "animal": "سمكة"})
	testutil.SetAnswers(t, r, "p2", mode.GridAnswers{"boyName": "قيس"}) // wrong letter

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 20, results["p1"].Score)
	assert.Zero(t, results["p2"].Score)
	assert.True(t, results["p1"].Answers["boyName"].Valid)
	assert.False(t, results["p2"].Answers["boyName"].Valid)
}

func TestComputeRoundSurvivalStreakMultiplier(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Survival)
	r.Letter = "م"
	r.Players["p1"].Streak = 2 // third consecutive survival turn
	testutil.SetAnswers(t, r, "p1", mode.WordAnswer{Answer: "منزل"})
	testutil.SetAnswers(t, r, "p2", mode.WordAnswer{Answer: "قمر"}) // wrong letter

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 30, results["p1"].Score)
	assert.Zero(t, results["p2"].Score)
}

func TestComputeRoundMemory(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Memory)
	r.ModeContext = &room.ModeContext{Words: []string{"أسد", "موز", "قلم", "ساعة", "جمل"}}
	testutil.SetAnswers(t, r, "p1", mode.RecallAnswers{Words: []string{"اسد", "موز", "قلم"}})
	testutil.SetAnswers(t, r, "p2", mode.RecallAnswers{Words: []string{"نمر"}})

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 3, results["p1"].Correct)
	assert.Equal(t, 5, results["p1"].Total)
	assert.Equal(t, 30, results["p1"].Score)
	assert.Zero(t, results["p2"].Score)
}

func TestComputeRoundMemoryRisk(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Memory)
	r.ModeContext = &room.ModeContext{Words: []string{"أسد", "موز"}}

	// Risk pays a bonus only on a perfect recall, otherwise everything is lost
	testutil.SetAnswers(t, r, "p1", mode.RecallAnswers{Words: []string{"أسد", "موز"}, Risk: true})
	testutil.SetAnswers(t, r, "p2", mode.RecallAnswers{Words: []string{"أسد"}, Risk: true})

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 2*judge.PointsPerValid+RiskBonus, results["p1"].Score)
	assert.Zero(t, results["p2"].Score)
}

func TestComputeRoundBluff(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Bluff)
	voteP1 := 0 // sorted player order: p1, p2
	voteP2 := 1
	// p1 lies and admits it; p2 votes for p1 and lands the accusation
	testutil.SetAnswers(t, r, "p1", mode.BluffAnswer{Answer: "سديم", Lied: true, Vote: &voteP2})
	testutil.SetAnswers(t, r, "p2", mode.BluffAnswer{Answer: "قمر", Vote: &voteP1})

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.True(t, results["p1"].WasLying)
	assert.False(t, results["p2"].WasLying)

	// Both words are well-formed (+10); p2 also voted correctly (+10)
	assert.Equal(t, judge.PointsPerValid, results["p1"].Score)
	assert.True(t, results["p2"].VoteCorrect)
	assert.Equal(t, 2*judge.PointsPerValid, results["p2"].Score)
}

func TestComputeRoundBluffSelfVoteDoesNotCount(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Bluff)
	self := 0
	testutil.SetAnswers(t, r, "p1", mode.BluffAnswer{Answer: "سديم", Lied: true, Vote: &self})
	testutil.SetAnswers(t, r, "p2", mode.BluffAnswer{Answer: "قمر"})

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.False(t, results["p1"].VoteCorrect)
	assert.Equal(t, judge.PointsPerValid, results["p1"].Score)
}

func TestComputeRoundObjective(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Objective)
	r.Letter = "س"
	r.ModeContext = &room.ModeContext{Constraints: []room.Constraint{
		{Type: "startsWith", Value: "س"},
		{Type: "minLength", Value: "4"},
	}}
	testutil.SetAnswers(t, r, "p1", mode.WordAnswer{Answer: "سمسم"})
	testutil.SetAnswers(t, r, "p2", mode.WordAnswer{Answer: "سور"})

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.True(t, results["p1"].Passed)
	assert.Equal(t, ObjectivePassPoints, results["p1"].Score)
	assert.False(t, results["p2"].Passed)
	assert.Zero(t, results["p2"].Score)
}

func TestComputeRoundCumulativeScores(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Classic)
	r.Letter = "س"
	r.Players["p1"].CumulativeScore = 50
	testutil.SetAnswers(t, r, "p1", mode.GridAnswers{"boyName": "سعيد"})

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, 60, results["p1"].CumulativeScore)
	assert.Zero(t, results["p2"].CumulativeScore)
}

func TestComputeRoundMalformedAnswers(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Classic)
	r.Letter = "س"
	r.Players["p1"].Answers = []byte(`"not an object"`)

	results, err := newAggregator().ComputeRound(context.Background(), r)
	require.NoError(t, err)

	// Malformed payloads score zero instead of failing the round
	assert.Zero(t, results["p1"].Score)
}

func TestComputeRoundUnknownMode(t *testing.T) {
	r := testutil.NewRoom("AAAA22", "speedrun")
	_, err := newAggregator().ComputeRound(context.Background(), r)
	assert.Error(t, err)
}

func TestRoundWinner(t *testing.T) {
	results := map[string]*room.RoundResult{
		"p1": {Score: 30},
		"p2": {Score: 20},
	}
	assert.Equal(t, "p1", RoundWinner(results))

	results["p2"].Score = 30
	assert.Empty(t, RoundWinner(results), "a tie has no winner")
}

func TestFinalWinner(t *testing.T) {
	r := testutil.NewRoom("AAAA22", mode.Classic)

	r.Players["p1"].CumulativeScore = 120
	r.Players["p2"].CumulativeScore = 100
	assert.Equal(t, "p1", FinalWinner(r))

	// Equal totals: round wins break the tie
	r.Players["p2"].CumulativeScore = 120
	r.RoundsWon = map[string]int{"p1": 1, "p2": 3}
	assert.Equal(t, "p2", FinalWinner(r))

	// Full tie: nobody wins
	r.RoundsWon = map[string]int{"p1": 2, "p2": 2}
	assert.Empty(t, FinalWinner(r))
}
