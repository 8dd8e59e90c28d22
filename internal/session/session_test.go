package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/letter-challenge/internal/apperrors"
	"github.com/palemoky/letter-challenge/internal/config"
	"github.com/palemoky/letter-challenge/internal/game/mode"
	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/game/score"
	"github.com/palemoky/letter-challenge/internal/judge"
	"github.com/palemoky/letter-challenge/internal/session"
	"github.com/palemoky/letter-challenge/internal/store"
	"github.com/palemoky/letter-challenge/internal/testutil"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

// newControllers spins up two controllers sharing one in-memory Redis
func newControllers(t *testing.T, cfg *config.Config) (*session.Controller, *session.Controller, *store.RoomStore) {
	t.Helper()

	s, _ := testutil.NewStore(t)
	agg := score.NewAggregator(judge.NewService(nil))

	host := session.NewController(s, agg, cfg)
	guest := session.NewController(s, agg, cfg)
	t.Cleanup(host.Close)
	t.Cleanup(guest.Close)
	return host, guest, s
}

// startGame creates a room, joins the guest and waits for the host to auto-start
func startGame(t *testing.T, host, guest *session.Controller, modeID string) string {
	t.Helper()
	ctx := context.Background()

	code, err := host.CreateRoom(ctx, "أحمد", modeID, 0)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, code, "سارة"))

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.Status == room.StatusPlaying
	}, waitFor, tick, "game did not start")
	return code
}

func TestCreateAndAutoStart(t *testing.T) {
	host, guest, _ := newControllers(t, config.Default())
	startGame(t, host, guest, mode.Classic)

	r := host.Snapshot()
	require.NotNil(t, r)
	assert.Equal(t, room.StatusPlaying, r.Status)
	assert.EqualValues(t, 1, r.RoundSeq)
	assert.Equal(t, 1, r.CurrentRoundNumber)
	assert.NotEmpty(t, r.Letter)
	assert.NotEmpty(t, r.RoundID)
	assert.Equal(t, "accuracy", r.Phase)
	assert.Len(t, r.Players, 2)
}

func TestCreateRoomUnknownMode(t *testing.T) {
	host, _, _ := newControllers(t, config.Default())

	_, err := host.CreateRoom(context.Background(), "أحمد", "speedrun", 0)
	assert.ErrorIs(t, err, apperrors.ErrUnknownMode)
}

func TestCreateRoomTotalRounds(t *testing.T) {
	ctx := context.Background()

	t.Run("custom rounds", func(t *testing.T) {
		host, guest, _ := newControllers(t, config.Default())
		code, err := host.CreateRoom(ctx, "أحمد", mode.Classic, 7)
		require.NoError(t, err)
		require.NoError(t, guest.JoinRoom(ctx, code, "سارة"))

		require.Eventually(t, func() bool {
			r := host.Snapshot()
			return r != nil && r.Status == room.StatusPlaying
		}, waitFor, tick)
		assert.Equal(t, 7, host.Snapshot().TotalRounds)
	})

	t.Run("zero falls back to config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Game.TotalRounds = 3
		host, guest, _ := newControllers(t, cfg)
		startGame(t, host, guest, mode.Classic)
		assert.Equal(t, 3, host.Snapshot().TotalRounds)
	})
}

func TestJoinErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("room not found", func(t *testing.T) {
		_, guest, _ := newControllers(t, config.Default())
		assert.ErrorIs(t, guest.JoinRoom(ctx, "ZZZZ99", "سارة"), apperrors.ErrRoomNotFound)
	})

	t.Run("game already started", func(t *testing.T) {
		host, guest, s := newControllers(t, config.Default())
		code := startGame(t, host, guest, mode.Classic)

		late := session.NewController(s, score.NewAggregator(judge.NewService(nil)), config.Default())
		t.Cleanup(late.Close)
		assert.ErrorIs(t, late.JoinRoom(ctx, code, "خالد"), apperrors.ErrGameStarted)
	})
}

func TestStopEndsClassicRound(t *testing.T) {
	cfg := config.Default()
	cfg.Game.StopMinElapsed = 0 // no anti-cheat delay in tests
	host, guest, _ := newControllers(t, cfg)
	startGame(t, host, guest, mode.Classic)

	letter := host.Snapshot().Letter
	ctx := context.Background()

	// Host fills a valid word, guest submits nothing useful
	require.NoError(t, host.SubmitAnswers(ctx, mode.GridAnswers{"boyName": wordWith(letter)}))
	require.NoError(t, guest.SubmitAnswers(ctx, mode.GridAnswers{}))
	require.NoError(t, guest.RequestStop(ctx))

	require.Eventually(t, func() bool {
		r := host.Snapshot()
		return r != nil && r.Status == room.StatusResults
	}, waitFor, tick, "round was not calculated")

	r := host.Snapshot()
	require.NotNil(t, r.RoundResults)
	assert.False(t, r.StopLock)
	assert.False(t, r.CalculationLock)
	assert.Equal(t, guest.PlayerID(), r.StoppedBy)

	hostResult := r.RoundResults[host.PlayerID()]
	require.NotNil(t, hostResult)
	assert.Equal(t, judge.PointsPerValid, hostResult.Score)
	assert.Equal(t, judge.PointsPerValid, r.Players[host.PlayerID()].CumulativeScore)
	assert.Equal(t, 1, r.RoundsWon[host.PlayerID()])
}

func TestStopGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("too early", func(t *testing.T) {
		host, guest, _ := newControllers(t, config.Default())
		startGame(t, host, guest, mode.Classic)
		assert.ErrorIs(t, guest.RequestStop(ctx), apperrors.ErrStopTooEarly)
	})

	t.Run("mode forbids stop", func(t *testing.T) {
		cfg := config.Default()
		cfg.Game.StopMinElapsed = 0
		host, guest, _ := newControllers(t, cfg)
		startGame(t, host, guest, mode.Survival)
		assert.ErrorIs(t, guest.RequestStop(ctx), apperrors.ErrStopNotAllowed)
	})

	t.Run("not in a room", func(t *testing.T) {
		host, _, _ := newControllers(t, config.Default())
		assert.ErrorIs(t, host.RequestStop(ctx), apperrors.ErrNotInRoom)
	})
}

// wordWith builds a valid Arabic word starting with the given letter
func wordWith(letter string) string {
	return letter + "مم"
}

// wordWithout builds an Arabic word that starts with a different letter
func wordWithout(letter string) string {
	other := "ب"
	if letter == "ب" {
		other = "ت"
	}
	return other + "مم"
}

func TestSurvivalElimination(t *testing.T) {
	host, guest, _ := newControllers(t, config.Default())
	startGame(t, host, guest, mode.Survival)

	letter := host.Snapshot().Letter
	ctx := context.Background()

	// Both submitted: the turn ends early without waiting out the timer
	require.NoError(t, host.SubmitAnswers(ctx, mode.WordAnswer{Answer: wordWith(letter)}))
	require.NoError(t, guest.SubmitAnswers(ctx, mode.WordAnswer{Answer: wordWithout(letter)}))

	require.Eventually(t, func() bool {
		r := host.Snapshot()
		return r != nil && r.Status == room.StatusFinishedGame
	}, waitFor, tick, "elimination did not end the game")

	r := host.Snapshot()
	assert.True(t, r.Players[guest.PlayerID()].Eliminated)
	assert.Equal(t, 1, r.Players[host.PlayerID()].Streak)
	assert.Equal(t, judge.PointsPerValid, r.Players[host.PlayerID()].CumulativeScore)
	assert.Zero(t, r.Players[guest.PlayerID()].CumulativeScore)
}

func TestPlayAgainAccepted(t *testing.T) {
	host, guest, _ := newControllers(t, config.Default())
	startGame(t, host, guest, mode.Survival)

	letter := host.Snapshot().Letter
	ctx := context.Background()
	require.NoError(t, host.SubmitAnswers(ctx, mode.WordAnswer{Answer: wordWith(letter)}))
	require.NoError(t, guest.SubmitAnswers(ctx, mode.WordAnswer{Answer: wordWithout(letter)}))

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.Status == room.StatusFinishedGame
	}, waitFor, tick)

	// Guest asks for a rematch, host accepts, a fresh game begins
	require.NoError(t, guest.PlayAgain(ctx))
	require.Eventually(t, func() bool {
		r := host.Snapshot()
		return r != nil && r.PlayAgainRequest != nil
	}, waitFor, tick)
	require.NoError(t, host.AcceptPlayAgain(ctx))

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.Status == room.StatusPlaying && r.RoundSeq == 2
	}, waitFor, tick, "rematch did not start")

	r := guest.Snapshot()
	assert.Equal(t, 1, r.CurrentRoundNumber)
	assert.Nil(t, r.PlayAgainRequest)
	assert.Empty(t, r.RoundsWon)
	for _, p := range r.Players {
		assert.Zero(t, p.CumulativeScore)
		assert.Zero(t, p.Streak)
		assert.False(t, p.Eliminated)
		// A stale "submitted" flag would collapse the fresh round instantly
		assert.Equal(t, "online", p.Status)
	}

	// The rematch round must survive past the host's next duty pass
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, room.StatusPlaying, guest.Snapshot().Status)
}

func TestPlayAgainContinuesFromResults(t *testing.T) {
	cfg := config.Default()
	cfg.Game.StopMinElapsed = 0
	host, guest, _ := newControllers(t, cfg)
	startGame(t, host, guest, mode.Classic)

	letter := host.Snapshot().Letter
	ctx := context.Background()
	require.NoError(t, host.SubmitAnswers(ctx, mode.GridAnswers{"boyName": wordWith(letter)}))
	require.NoError(t, guest.SubmitAnswers(ctx, mode.GridAnswers{}))
	require.NoError(t, guest.RequestStop(ctx))

	require.Eventually(t, func() bool {
		r := host.Snapshot()
		return r != nil && r.Status == room.StatusResults
	}, waitFor, tick, "round was not calculated")

	// The results page stays until both sides agree to continue
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, room.StatusResults, host.Snapshot().Status)

	require.NoError(t, guest.PlayAgain(ctx))
	require.Eventually(t, func() bool {
		r := host.Snapshot()
		return r != nil && r.PlayAgainRequest != nil
	}, waitFor, tick)
	require.NoError(t, host.AcceptPlayAgain(ctx))

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.Status == room.StatusPlaying && r.RoundSeq == 2
	}, waitFor, tick, "next round did not start")

	// Continuing the same game keeps the tally, unlike a post-game rematch
	r := guest.Snapshot()
	assert.Equal(t, 2, r.CurrentRoundNumber)
	assert.Nil(t, r.PlayAgainRequest)
	assert.Equal(t, 1, r.RoundsWon[host.PlayerID()])
	assert.Equal(t, judge.PointsPerValid, r.Players[host.PlayerID()].CumulativeScore)
	assert.Nil(t, r.RoundResults)
}

func TestPlayAgainDeclined(t *testing.T) {
	host, guest, _ := newControllers(t, config.Default())
	startGame(t, host, guest, mode.Survival)

	letter := host.Snapshot().Letter
	ctx := context.Background()
	require.NoError(t, host.SubmitAnswers(ctx, mode.WordAnswer{Answer: wordWith(letter)}))
	require.NoError(t, guest.SubmitAnswers(ctx, mode.WordAnswer{Answer: wordWithout(letter)}))

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.Status == room.StatusFinishedGame
	}, waitFor, tick)

	require.NoError(t, host.PlayAgain(ctx))

	// A second request while one is pending is rejected
	assert.ErrorIs(t, host.PlayAgain(ctx), apperrors.ErrPlayAgainPending)

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.PlayAgainRequest != nil
	}, waitFor, tick)
	require.NoError(t, guest.DeclinePlayAgain(ctx))

	// Host clears the declined request; the game stays finished
	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.PlayAgainRequest == nil
	}, waitFor, tick, "declined request was not cleared")
	assert.Equal(t, room.StatusFinishedGame, guest.Snapshot().Status)
}

func TestLeaveHandsOverHost(t *testing.T) {
	host, guest, _ := newControllers(t, config.Default())
	startGame(t, host, guest, mode.Classic)

	require.NoError(t, host.LeaveRoom(context.Background()))

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.PlayerCount() == 1 && r.Players[guest.PlayerID()].IsHost
	}, waitFor, tick, "guest was not promoted")

	// A two-player game cannot continue alone
	assert.Equal(t, room.StatusFinishedGame, guest.Snapshot().Status)
}

func TestLastPlayerLeaveDeletesRoom(t *testing.T) {
	host, guest, s := newControllers(t, config.Default())
	code := startGame(t, host, guest, mode.Classic)
	ctx := context.Background()

	require.NoError(t, host.LeaveRoom(ctx))
	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.PlayerCount() == 1
	}, waitFor, tick)
	require.NoError(t, guest.LeaveRoom(ctx))

	got, err := s.Get(ctx, code)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSubmitOutsideRoom(t *testing.T) {
	host, _, _ := newControllers(t, config.Default())
	err := host.SubmitAnswers(context.Background(), mode.GridAnswers{})
	assert.ErrorIs(t, err, apperrors.ErrNotInRoom)
}

func TestControllerReuseAfterLeave(t *testing.T) {
	host, guest, _ := newControllers(t, config.Default())
	code := startGame(t, host, guest, mode.Classic)
	ctx := context.Background()

	// One controller carries one membership at a time
	_, err := host.CreateRoom(ctx, "أحمد", mode.Classic, 0)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInRoom)

	require.NoError(t, guest.LeaveRoom(ctx))

	// After leaving, the same controller can host a fresh room
	code2, err := guest.CreateRoom(ctx, "سارة", mode.Classic, 0)
	require.NoError(t, err)
	assert.NotEqual(t, code, code2)

	require.Eventually(t, func() bool {
		r := guest.Snapshot()
		return r != nil && r.Code == code2 && r.Status == room.StatusWaiting
	}, waitFor, tick, "reused controller received no snapshots")
}

func TestEventsChannelClosesOnLeave(t *testing.T) {
	host, guest, _ := newControllers(t, config.Default())
	startGame(t, host, guest, mode.Classic)

	events := guest.Events()
	require.NotNil(t, events)
	require.NoError(t, guest.LeaveRoom(context.Background()))

	// Drain until the reducer loop closes the channel, so consumers can exit
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, waitFor, tick, "events channel was not closed")
}
