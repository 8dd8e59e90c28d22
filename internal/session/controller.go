// Package session 实现房间成员身份的本地控制器。
// 没有中央服务器：双方客户端各自运行一个 Controller，订阅同一份房间文档，
// 通过 CAS 事务写回。控制面字段（状态、阶段、计时、结果）只由当前主持人
// 写入，普通玩家只写自己的 answers 子树；stopLock 是唯一例外，
// 任何玩家都可以在规则允许时抢占它。
package session

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/palemoky/letter-challenge/internal/apperrors"
	"github.com/palemoky/letter-challenge/internal/config"
	"github.com/palemoky/letter-challenge/internal/game/mode"
	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/game/score"
	"github.com/palemoky/letter-challenge/internal/store"
)

// 服务器时钟重校准周期
const clockResyncInterval = time.Minute

// 房间号字符集：去掉易混淆的 0/O/1/I
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// roomCodeLength 房间号长度
const roomCodeLength = 6

// Controller 单个房间成员身份的会话控制器。
// 所有导出方法都可以在 UI goroutine 里直接调用，内部用 CAS 保证并发安全。
type Controller struct {
	store *store.RoomStore
	agg   *score.Aggregator
	cfg   *config.Config

	events chan Event

	mu        sync.Mutex
	sess      *Context
	latest    *room.Room
	stopWatch func()
	cancel    context.CancelFunc

	closed       atomic.Bool
	calcInFlight atomic.Bool

	// 答案写入合并窗口
	debounceMu    sync.Mutex
	pendingAnswer mode.Answers
	debounceTimer *time.Timer

	lastBeat atomic.Int64 // UnixNano
	lastSync atomic.Int64
	lastReap atomic.Int64
}

// NewController 创建会话控制器（此时尚未加入任何房间）
func NewController(s *store.RoomStore, agg *score.Aggregator, cfg *config.Config) *Controller {
	return &Controller{
		store: s,
		agg:   agg,
		cfg:   cfg,
	}
}

// Events 返回当前成员身份的事件通道，UI 层消费。
// 每次加入房间都会换一条新通道，归约循环退出时关闭它。
func (c *Controller) Events() <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// Snapshot 返回最近一次收到的房间快照
func (c *Controller) Snapshot() *room.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// PlayerID 返回本地玩家 ID，未加入房间时为空串
func (c *Controller) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.PlayerID
}

// ServerNow 返回校准后的服务器时间，UI 倒计时用
func (c *Controller) ServerNow() time.Time {
	return c.store.ServerNow()
}

// newRoomCode 生成房间号
func newRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))]
	}
	return string(code)
}

// CreateRoom 创建房间并以主持人身份加入，返回房间号。
// totalRounds 不填（<=0）时用配置默认值。
func (c *Controller) CreateRoom(ctx context.Context, playerName, modeID string, totalRounds int) (string, error) {
	cfg, err := mode.GetModeConfig(modeID)
	if err != nil {
		return "", err
	}
	if totalRounds <= 0 {
		totalRounds = c.cfg.Game.TotalRounds
	}

	playerID := uuid.NewString()
	r := &room.Room{
		Status:      room.StatusWaiting,
		Mode:        cfg.ID,
		ModeName:    cfg.Name,
		TotalRounds: totalRounds,
		RoundsWon:   map[string]int{},
		Players: map[string]*room.Player{
			playerID: room.NewPlayer(playerName, true),
		},
	}

	// 房间号冲突就换一个重试
	for i := 0; i < 5; i++ {
		r.Code = newRoomCode()
		if err = c.store.Create(ctx, r); err == nil {
			break
		}
	}
	if err != nil {
		return "", err
	}

	log.Printf("🏠 创建房间 %s 模式=%s 玩家=%s", r.Code, modeID, playerName)
	return r.Code, c.attach(ctx, r.Code, playerID, playerName, true)
}

// JoinRoom 加入已有房间
func (c *Controller) JoinRoom(ctx context.Context, code, playerName string) error {
	playerID := uuid.NewString()

	_, err := c.store.Update(ctx, code, func(r *room.Room) error {
		if r.Status != room.StatusWaiting {
			return apperrors.ErrGameStarted
		}
		if r.PlayerCount() >= room.MaxPlayers {
			return apperrors.ErrRoomFull
		}
		r.Players[playerID] = room.NewPlayer(playerName, false)
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrRoomGone) {
			return apperrors.ErrRoomNotFound
		}
		return err
	}

	log.Printf("🚪 玩家 %s 加入房间 %s", playerName, code)
	return c.attach(ctx, code, playerID, playerName, false)
}

// attach 注册心跳并启动快照归约循环。
// 一个控制器同一时刻只承载一个房间成员身份，离开后可以复用。
func (c *Controller) attach(ctx context.Context, code, playerID, playerName string, isHost bool) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return apperrors.ErrAlreadyInRoom
	}
	c.mu.Unlock()

	if err := c.store.RegisterPresence(ctx, code, playerID, c.cfg.Game.PresenceTTLDuration()); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	updates, stop, err := c.store.Watch(runCtx, code)
	if err != nil {
		cancel()
		return err
	}

	events := make(chan Event, 32)

	c.mu.Lock()
	c.sess = &Context{
		Code:       code,
		PlayerID:   playerID,
		PlayerName: playerName,
		IsHost:     isHost,
	}
	c.stopWatch = stop
	c.cancel = cancel
	c.events = events
	c.mu.Unlock()
	c.closed.Store(false)

	c.lastBeat.Store(time.Now().UnixNano())
	c.lastSync.Store(time.Now().UnixNano())

	go c.run(runCtx, updates, events)
	return nil
}

// StartGame 手动开局（主持人专用；满员时归约循环也会自动开局）
func (c *Controller) StartGame(ctx context.Context) error {
	sess := c.session()
	if sess == nil {
		return apperrors.ErrNotInRoom
	}
	if !sess.IsHost {
		return apperrors.ErrNotHost
	}
	return c.startGame(ctx, sess.Code)
}

// startGame 等待中且满员才允许开局，CAS 保证并发重入只成功一次
func (c *Controller) startGame(ctx context.Context, code string) error {
	_, err := c.store.Update(ctx, code, func(r *room.Room) error {
		if r.Status != room.StatusWaiting || r.PlayerCount() < room.MaxPlayers {
			return store.ErrTxnAborted
		}
		return c.beginRound(r, 1)
	})
	if errors.Is(err, store.ErrTxnAborted) {
		return nil // 已被并发开局，不算错误
	}
	return err
}

// beginRound 在文档上原地布置一个新回合。
// roundSeq 严格递增，订阅方靠它识别新回合；roundId 是本回合的写入令牌。
func (c *Controller) beginRound(r *room.Room, roundNumber int) error {
	cfg, err := mode.GetModeConfig(r.Mode)
	if err != nil {
		return err
	}

	letter := mode.RandomLetter()
	mctx, err := mode.BuildModeContext(r.Mode, letter)
	if err != nil {
		return err
	}

	r.Status = room.StatusPlaying
	r.Letter = letter
	r.RoundID = uuid.NewString()
	r.RoundSeq++
	r.Phases = cfg.Phases
	r.PhaseIndex = 0
	r.TotalPhases = len(cfg.Phases)
	r.Phase = cfg.FirstPhase()
	r.PhaseDuration = cfg.Duration(r.Phase)
	r.PhaseStartAt = c.store.ServerNow().UnixMilli()
	r.StoppedBy = ""
	r.StopLock = false
	r.CalculationLock = false
	r.RoundResults = nil
	r.ModeContext = mctx
	r.CurrentRoundNumber = roundNumber
	if r.RoundsWon == nil {
		r.RoundsWon = map[string]int{}
	}

	for _, p := range r.Players {
		streak := p.Streak
		p.ResetForRound()
		if cfg.Elimination {
			p.Streak = streak // 生存模式的连胜跨回合累计
		}
	}
	return nil
}

// SetAnswers 记录答案草稿，合并窗口到期后统一写入文档。
// 输入过程中的每次击键都会调用它，debounce 把写入压到每窗口一次。
func (c *Controller) SetAnswers(a mode.Answers) {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()

	c.pendingAnswer = a
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.cfg.Game.AnswerDebounceDuration(), c.flushAnswers)
}

// flushAnswers 把草稿写进自己的 answers 子树
func (c *Controller) flushAnswers() {
	c.debounceMu.Lock()
	a := c.pendingAnswer
	c.pendingAnswer = nil
	c.debounceMu.Unlock()

	if a == nil {
		return
	}

	sess := c.session()
	if sess == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := c.writeAnswers(ctx, sess, a, false)
	if err != nil && !errors.Is(err, store.ErrTxnAborted) && !errors.Is(err, store.ErrRoomGone) {
		log.Printf("⚠️ 写入答案失败: %v", err)
	}
}

// SubmitAnswers 立即提交答案并标记已交卷（跳过合并窗口）
func (c *Controller) SubmitAnswers(ctx context.Context, a mode.Answers) error {
	c.debounceMu.Lock()
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.pendingAnswer = nil
	c.debounceMu.Unlock()

	sess := c.session()
	if sess == nil {
		return apperrors.ErrNotInRoom
	}

	_, err := c.writeAnswers(ctx, sess, a, true)
	if errors.Is(err, store.ErrTxnAborted) {
		return nil // 回合已收束，草稿过期不算错误
	}
	if errors.Is(err, store.ErrRoomGone) {
		return apperrors.ErrRoomNotFound
	}
	return err
}

// writeAnswers 玩家唯一的文档写入路径：只碰自己的子树
func (c *Controller) writeAnswers(ctx context.Context, sess *Context, a mode.Answers, submitted bool) (*room.Room, error) {
	return c.store.Update(ctx, sess.Code, func(r *room.Room) error {
		if r.Status != room.StatusPlaying {
			return store.ErrTxnAborted // 回合已被推进，草稿过期
		}
		p := r.Players[sess.PlayerID]
		if p == nil {
			return apperrors.ErrNotInRoom
		}
		raw, err := mode.EncodeAnswers(a)
		if err != nil {
			return err
		}
		p.Answers = raw
		if submitted {
			p.Status = "submitted"
		}
		return nil
	})
}

// RequestStop 抢占 STOP 锁。任何玩家都可以调用，
// 但必须满足模式规则与最短已用时；抢占成功后由主持人负责收束回合。
func (c *Controller) RequestStop(ctx context.Context) error {
	sess := c.session()
	if sess == nil {
		return apperrors.ErrNotInRoom
	}

	now := c.store.ServerNow()
	_, err := c.store.Update(ctx, sess.Code, func(r *room.Room) error {
		if r.Status != room.StatusPlaying {
			return apperrors.ErrStopNotAllowed
		}
		if !mode.IsStopAllowed(r) {
			return apperrors.ErrStopNotAllowed
		}
		if r.StopLock {
			return store.ErrTxnAborted // 对手抢先了，静默放弃
		}
		if r.PhaseElapsed(now) < c.cfg.Game.StopMinElapsedDuration() {
			return apperrors.ErrStopTooEarly
		}
		r.StopLock = true
		r.StoppedBy = sess.PlayerID
		return nil
	})
	if errors.Is(err, store.ErrTxnAborted) {
		return nil
	}
	if errors.Is(err, store.ErrRoomGone) {
		return apperrors.ErrRoomNotFound
	}
	return err
}

// PlayAgain 在终局页发起再来一局请求
func (c *Controller) PlayAgain(ctx context.Context) error {
	sess := c.session()
	if sess == nil {
		return apperrors.ErrNotInRoom
	}

	now := c.store.ServerNow()
	_, err := c.store.Update(ctx, sess.Code, func(r *room.Room) error {
		if r.Status != room.StatusFinishedGame && r.Status != room.StatusResults {
			return apperrors.ErrPlayAgainPending
		}
		if r.PlayAgainRequest != nil && r.PlayAgainRequest.Status == room.PlayAgainPending {
			return apperrors.ErrPlayAgainPending
		}
		r.PlayAgainRequest = &room.PlayAgainRequest{
			RequestedBy: sess.PlayerID,
			Status:      room.PlayAgainPending,
			Timestamp:   now.UnixMilli(),
		}
		return nil
	})
	if errors.Is(err, store.ErrRoomGone) {
		return apperrors.ErrRoomNotFound
	}
	return err
}

// AcceptPlayAgain 接受对方的再来一局请求，主持人随后会重开一局
func (c *Controller) AcceptPlayAgain(ctx context.Context) error {
	return c.answerPlayAgain(ctx, room.PlayAgainAccepted)
}

// DeclinePlayAgain 拒绝对方的再来一局请求
func (c *Controller) DeclinePlayAgain(ctx context.Context) error {
	return c.answerPlayAgain(ctx, room.PlayAgainDeclined)
}

func (c *Controller) answerPlayAgain(ctx context.Context, answer room.PlayAgainStatus) error {
	sess := c.session()
	if sess == nil {
		return apperrors.ErrNotInRoom
	}

	_, err := c.store.Update(ctx, sess.Code, func(r *room.Room) error {
		req := r.PlayAgainRequest
		if req == nil || req.Status != room.PlayAgainPending || req.RequestedBy == sess.PlayerID {
			return store.ErrTxnAborted // 没有可应答的请求
		}
		req.Status = answer
		return nil
	})
	if errors.Is(err, store.ErrTxnAborted) {
		return nil
	}
	if errors.Is(err, store.ErrRoomGone) {
		return apperrors.ErrRoomNotFound
	}
	return err
}

// LeaveRoom 主动离开房间。最后一名玩家离开时删除房间；
// 对局中离开则对手直接获得终局页。
func (c *Controller) LeaveRoom(ctx context.Context) error {
	sess := c.session()
	if sess == nil {
		return apperrors.ErrNotInRoom
	}

	err := c.removePlayer(ctx, sess.Code, sess.PlayerID)
	_ = c.store.ClearPresence(ctx, sess.Code, sess.PlayerID)
	c.Close()

	if err != nil && !errors.Is(err, store.ErrRoomGone) && !errors.Is(err, store.ErrTxnAborted) {
		return err
	}
	return nil
}

// removePlayer 从文档中移除玩家：保证剩余玩家中有主持人，
// 房间清空则删除文档并广播墓碑。
func (c *Controller) removePlayer(ctx context.Context, code, playerID string) error {
	_, err := c.store.Update(ctx, code, func(r *room.Room) error {
		if _, ok := r.Players[playerID]; !ok {
			return store.ErrTxnAborted
		}
		delete(r.Players, playerID)

		if r.PlayerCount() == 0 {
			return store.ErrDeleteRoom
		}

		r.EnsureHost()
		if r.Status != room.StatusWaiting {
			// 双人游戏少一人就无法继续，直接终局
			r.Status = room.StatusFinishedGame
			r.StopLock = false
			r.CalculationLock = false
		}
		if r.PlayAgainRequest != nil && r.PlayAgainRequest.RequestedBy == playerID {
			r.PlayAgainRequest = nil
		}
		return nil
	})
	return err
}

// Close 释放本地资源，不再写入文档。幂等。
func (c *Controller) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.debounceMu.Lock()
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.pendingAnswer = nil
	c.debounceMu.Unlock()

	c.mu.Lock()
	cancel := c.cancel
	stop := c.stopWatch
	c.sess = nil
	c.latest = nil
	c.cancel = nil
	c.stopWatch = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stop != nil {
		stop()
	}
}

// session 读取当前会话上下文
func (c *Controller) session() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}
