package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTwoPlayerRoom() *Room {
	return &Room{
		Code:   "ABCD23",
		Status: StatusWaiting,
		Players: map[string]*Player{
			"p1": NewPlayer("أحمد", true),
			"p2": NewPlayer("سارة", false),
		},
	}
}

func TestHostID(t *testing.T) {
	r := newTwoPlayerRoom()
	assert.Equal(t, "p1", r.HostID())

	r.Players["p1"].IsHost = false
	assert.Empty(t, r.HostID())
}

func TestOtherPlayerID(t *testing.T) {
	r := newTwoPlayerRoom()
	assert.Equal(t, "p2", r.OtherPlayerID("p1"))
	assert.Equal(t, "p1", r.OtherPlayerID("p2"))

	delete(r.Players, "p2")
	assert.Empty(t, r.OtherPlayerID("p1"))
}

func TestEnsureHost(t *testing.T) {
	r := newTwoPlayerRoom()
	assert.Equal(t, "p1", r.EnsureHost())

	// Host left: someone else must be promoted
	delete(r.Players, "p1")
	assert.Equal(t, "p2", r.EnsureHost())
	assert.True(t, r.Players["p2"].IsHost)

	// Empty room has no host
	delete(r.Players, "p2")
	assert.Empty(t, r.EnsureHost())
}

func TestIsLastPhase(t *testing.T) {
	r := &Room{Phases: []string{"speed", "accuracy", "challenge"}}

	r.PhaseIndex = 0
	assert.False(t, r.IsLastPhase())
	r.PhaseIndex = 2
	assert.True(t, r.IsLastPhase())

	single := &Room{Phases: []string{"accuracy"}}
	assert.True(t, single.IsLastPhase())
}

func TestPhaseRemaining(t *testing.T) {
	start := time.Now()
	r := &Room{PhaseStartAt: start.UnixMilli(), PhaseDuration: 60}

	remaining := r.PhaseRemaining(start.Add(20 * time.Second))
	assert.InDelta(t, 40*time.Second, remaining, float64(time.Second))

	// Past the deadline it clamps to zero instead of going negative
	assert.Equal(t, time.Duration(0), r.PhaseRemaining(start.Add(2*time.Minute)))

	// Round not started yet
	assert.Equal(t, time.Duration(0), (&Room{}).PhaseRemaining(start))
}

func TestPhaseElapsed(t *testing.T) {
	start := time.Now()
	r := &Room{PhaseStartAt: start.UnixMilli(), PhaseDuration: 60}

	elapsed := r.PhaseElapsed(start.Add(15 * time.Second))
	assert.InDelta(t, 15*time.Second, elapsed, float64(time.Second))
	assert.Equal(t, time.Duration(0), r.PhaseElapsed(start.Add(-time.Second)))
}

func TestResetForRound(t *testing.T) {
	p := NewPlayer("أحمد", true)
	p.Answers = []byte(`{"fruit":"تفاح"}`)
	p.Score = 30
	p.CumulativeScore = 120
	p.Streak = 3
	p.Eliminated = true
	p.Status = "submitted"

	p.ResetForRound()

	assert.Nil(t, p.Answers)
	assert.Zero(t, p.Score)
	assert.Zero(t, p.Streak)
	assert.False(t, p.Eliminated)
	// A stale "submitted" flag would end the next round before anyone types
	assert.Equal(t, "online", p.Status)
	// Cumulative score survives round resets
	assert.Equal(t, 120, p.CumulativeScore)
}
