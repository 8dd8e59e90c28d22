package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/palemoky/letter-challenge/internal/apperrors"
	"github.com/palemoky/letter-challenge/internal/game/mode"
	"github.com/palemoky/letter-challenge/internal/game/room"
	"github.com/palemoky/letter-challenge/internal/game/score"
	"github.com/palemoky/letter-challenge/internal/store"
)

// 主持人职责全部走 CAS：每个推进都带着快照里的前置条件（roundId、
// phaseIndex、status），前置条件失效说明别的提交抢先了，静默放弃即可。
// 因此同一职责被触发多次也只会生效一次。

// hostDuties 快照驱动的主持人职责
func (c *Controller) hostDuties(ctx context.Context, r *room.Room) {
	switch r.Status {
	case room.StatusWaiting:
		if r.PlayerCount() >= room.MaxPlayers {
			if err := c.startGame(ctx, r.Code); err != nil {
				log.Printf("⚠️ 自动开局失败: %v", err)
			}
		}

	case room.StatusPlaying:
		if r.StopLock {
			c.resolveStop(ctx, r)
			return
		}
		if c.allSubmitted(r) {
			c.endPhase(ctx, r)
		}

	case room.StatusCalculating:
		c.maybeCalculate(ctx, r)
	}

	if req := r.PlayAgainRequest; req != nil {
		switch req.Status {
		case room.PlayAgainAccepted:
			c.startAgreedRound(ctx, r)
		case room.PlayAgainDeclined:
			c.clearPlayAgain(ctx, r)
		}
	}
}

// hostTick 计时驱动的主持人职责
func (c *Controller) hostTick(ctx context.Context, r *room.Room) {
	now := c.store.ServerNow()

	switch r.Status {
	case room.StatusPlaying:
		if r.PhaseRemaining(now) == 0 {
			c.endPhase(ctx, r)
		}
	case room.StatusCalculating:
		// 快照可能在计算触发前就消费完了，巡检兜底
		c.maybeCalculate(ctx, r)
	}

	if time.Since(time.Unix(0, c.lastReap.Load())) >= c.cfg.Game.PresenceBeatDuration() {
		c.lastReap.Store(time.Now().UnixNano())
		c.reapGhosts(ctx, r)
	}
}

// allSubmitted 当前阶段允许提前收束且所有未淘汰玩家都已交卷
func (c *Controller) allSubmitted(r *room.Room) bool {
	cfg, err := mode.GetModeConfig(r.Mode)
	if err != nil || !earlyFinish(cfg) {
		return false
	}
	for _, p := range r.Players {
		if p.Eliminated {
			continue
		}
		if p.Status != "submitted" {
			return false
		}
	}
	return r.PlayerCount() > 0
}

// earlyFinish 单词类模式交卷即收束，网格类模式等计时或 STOP
func earlyFinish(cfg *mode.Config) bool {
	return cfg.Role == mode.RoleInstantJudge || cfg.Role == mode.RoleConstraint
}

// endPhase 阶段到点：推进到下一阶段，最后一个阶段则转入计算。
// 前置条件带上 roundId 与 phaseIndex，两端主持人竞态也只推进一次。
func (c *Controller) endPhase(ctx context.Context, snapshot *room.Room) {
	roundID := snapshot.RoundID
	phaseIdx := snapshot.PhaseIndex

	_, err := c.store.Update(ctx, snapshot.Code, func(r *room.Room) error {
		if r.Status != room.StatusPlaying || r.RoundID != roundID || r.PhaseIndex != phaseIdx {
			return store.ErrTxnAborted
		}
		if r.IsLastPhase() {
			r.Status = room.StatusCalculating
			return nil
		}

		cfg, err := mode.GetModeConfig(r.Mode)
		if err != nil {
			return err
		}
		r.PhaseIndex++
		r.Phase = r.Phases[r.PhaseIndex]
		r.PhaseDuration = cfg.Duration(r.Phase)
		r.PhaseStartAt = c.store.ServerNow().UnixMilli()
		r.StopLock = false
		r.StoppedBy = ""
		return nil
	})
	c.swallowRace("推进阶段", err)
}

// resolveStop STOP 锁被抢占后收束整个回合
func (c *Controller) resolveStop(ctx context.Context, snapshot *room.Room) {
	roundID := snapshot.RoundID

	_, err := c.store.Update(ctx, snapshot.Code, func(r *room.Room) error {
		if r.Status != room.StatusPlaying || r.RoundID != roundID || !r.StopLock {
			return store.ErrTxnAborted
		}
		r.Status = room.StatusCalculating
		return nil
	})
	c.swallowRace("收束 STOP", err)
}

// maybeCalculate 触发回合结算。calcInFlight 挡住本端重复触发，
// calculationLock 挡住两端主持人同时结算。
func (c *Controller) maybeCalculate(ctx context.Context, snapshot *room.Room) {
	if snapshot.CalculationLock || !c.calcInFlight.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer c.calcInFlight.Store(false)
		c.runCalculation(ctx, snapshot.Code, snapshot.RoundID)
	}()
}

// runCalculation 结算流程：抢 calculationLock → 计算 → 提交结果。
// 远程判定配额耗尽时结果仍然有效（本地兜底），但整局立即终止。
func (c *Controller) runCalculation(ctx context.Context, code, roundID string) {
	// 第一步：抢锁，拿到锁后的文档就是结算输入
	locked, err := c.store.Update(ctx, code, func(r *room.Room) error {
		if r.Status != room.StatusCalculating || r.RoundID != roundID || r.CalculationLock {
			return store.ErrTxnAborted
		}
		r.CalculationLock = true
		return nil
	})
	if err != nil {
		c.swallowRace("抢占结算锁", err)
		return
	}

	// 第二步：计算（可能调用远程判定服务）
	results, calcErr := c.agg.ComputeRound(ctx, locked)
	quotaExceeded := errors.Is(calcErr, apperrors.ErrQuotaExceeded)
	if calcErr != nil && !quotaExceeded {
		log.Printf("⚠️ 回合结算失败: %v", calcErr)
		// 放开锁，让下一次触发重试
		_, _ = c.store.Update(ctx, code, func(r *room.Room) error {
			r.CalculationLock = false
			return nil
		})
		return
	}

	cfg, err := mode.GetModeConfig(locked.Mode)
	if err != nil {
		return
	}

	// 第三步：提交结果
	_, err = c.store.Update(ctx, code, func(r *room.Room) error {
		if r.RoundID != roundID || r.Status != room.StatusCalculating {
			return store.ErrTxnAborted
		}

		r.RoundResults = results
		if winner := score.RoundWinner(results); winner != "" {
			if r.RoundsWon == nil {
				r.RoundsWon = map[string]int{}
			}
			r.RoundsWon[winner]++
		}

		eliminated := false
		for pid, res := range results {
			p := r.Players[pid]
			if p == nil {
				continue
			}
			p.Score = res.Score
			p.CumulativeScore = res.CumulativeScore
			if cfg.Elimination {
				if res.Score > 0 {
					p.Streak++
				} else {
					p.Eliminated = true
					eliminated = true
				}
			}
		}

		lastRound := r.CurrentRoundNumber >= r.TotalRounds
		if quotaExceeded || lastRound || eliminated {
			r.Status = room.StatusFinishedGame
		} else {
			// 结果页停留到双方握手续战为止，主持人不单方面推进
			r.Status = room.StatusResults
		}
		r.CalculationLock = false
		r.StopLock = false
		return nil
	})
	c.swallowRace("提交结算结果", err)

	if quotaExceeded {
		log.Printf("🛑 远程判定配额耗尽，房间 %s 提前终局", code)
	}
}

// startAgreedRound 再来一局握手达成后的唯一续战入口：
// 结果页上续的是同一局（累计分、胜场、连胜全部保留），
// 终局页上才是整局重开（累计数据清零，从第一回合开始）。
func (c *Controller) startAgreedRound(ctx context.Context, snapshot *room.Room) {
	_, err := c.store.Update(ctx, snapshot.Code, func(r *room.Room) error {
		req := r.PlayAgainRequest
		if req == nil || req.Status != room.PlayAgainAccepted {
			return store.ErrTxnAborted
		}
		r.PlayAgainRequest = nil

		if r.Status == room.StatusResults {
			return c.beginRound(r, r.CurrentRoundNumber+1)
		}

		r.RoundsWon = map[string]int{}
		for _, p := range r.Players {
			p.ResetForRound()
			p.CumulativeScore = 0
			p.Streak = 0
		}
		return c.beginRound(r, 1)
	})
	c.swallowRace("握手续战", err)
}

// clearPlayAgain 清掉已被拒绝的再来一局请求
func (c *Controller) clearPlayAgain(ctx context.Context, snapshot *room.Room) {
	_, err := c.store.Update(ctx, snapshot.Code, func(r *room.Room) error {
		req := r.PlayAgainRequest
		if req == nil || req.Status != room.PlayAgainDeclined {
			return store.ErrTxnAborted
		}
		r.PlayAgainRequest = nil
		return nil
	})
	c.swallowRace("清理再来一局请求", err)
}

// reapGhosts 清理心跳消失的幽灵玩家（对手突然断线的兜底路径）
func (c *Controller) reapGhosts(ctx context.Context, r *room.Room) {
	sess := c.session()
	if sess == nil {
		return
	}

	for pid := range r.Players {
		if pid == sess.PlayerID {
			continue
		}
		alive, err := c.store.IsAlive(ctx, r.Code, pid)
		if err != nil || alive {
			continue
		}
		log.Printf("👻 玩家 %s 心跳消失，移出房间 %s", pid, r.Code)
		if err := c.removePlayer(ctx, r.Code, pid); err != nil {
			c.swallowRace("清理幽灵玩家", err)
		}
	}
}

// swallowRace 竞态落败与房间消失都是正常现象，其余才记日志
func (c *Controller) swallowRace(op string, err error) {
	if err == nil || errors.Is(err, store.ErrTxnAborted) || errors.Is(err, store.ErrRoomGone) {
		return
	}
	log.Printf("⚠️ %s失败: %v", op, err)
}
