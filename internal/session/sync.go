package session

import (
	"context"
	"log"
	"time"

	"github.com/palemoky/letter-challenge/internal/game/room"
)

// run 归约循环：消费快照流 + 每秒一次的定时巡检。
// 快照是唯一的事实来源，本地只保留识别变化所需的 last* 值。
// 事件只从这个 goroutine 派发，循环退出时关闭通道，消费方随之退出。
func (c *Controller) run(ctx context.Context, updates <-chan *room.Room, out chan Event) {
	defer close(out)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-updates:
			if !ok {
				return
			}
			if r == nil {
				// 墓碑：房间被删除
				emit(out, Event{Kind: EventRoomClosed, Message: "تم إغلاق الغرفة"})
				c.Close()
				return
			}
			c.reduce(ctx, out, r)
		case <-ticker.C:
			c.onTick(ctx)
		}
	}
}

// reduce 归约一个快照：更新本地上下文、派发事件，
// 主持人顺带执行控制面职责。同一快照重放是安全的。
func (c *Controller) reduce(ctx context.Context, out chan Event, r *room.Room) {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return
	}

	me, ok := r.Players[sess.PlayerID]
	if !ok {
		c.mu.Unlock()
		emit(out, Event{Kind: EventRoomClosed, Message: "تمت إزالتك من الغرفة"})
		c.Close()
		return
	}

	becameHost := me.IsHost && !sess.IsHost
	sess.IsHost = me.IsHost
	newRound, phaseChanged, _ := sess.observe(r)

	showResults := false
	if (r.Status == room.StatusResults || r.Status == room.StatusFinishedGame) &&
		len(r.RoundResults) > 0 && !sess.resultsShown {
		sess.resultsShown = true
		showResults = true
	}

	c.latest = r
	isHost := me.IsHost
	playerID := sess.PlayerID
	c.mu.Unlock()

	emit(out, Event{Kind: EventRoomUpdated, Room: r})
	if becameHost {
		log.Printf("👑 主持人交接到本端（房间 %s）", r.Code)
		emit(out, Event{Kind: EventBecameHost, Room: r})
	}
	switch {
	case newRound:
		emit(out, Event{Kind: EventNewRound, Room: r})
	case phaseChanged:
		emit(out, Event{Kind: EventPhaseChanged, Room: r})
	}
	if showResults {
		kind := EventResults
		if r.Status == room.StatusFinishedGame {
			kind = EventGameFinished
		}
		emit(out, Event{Kind: kind, Room: r})
	}

	if req := r.PlayAgainRequest; req != nil {
		switch {
		case req.Status == room.PlayAgainPending && req.RequestedBy != playerID:
			emit(out, Event{Kind: EventPlayAgainPrompt, Room: r})
		case req.Status == room.PlayAgainDeclined && req.RequestedBy == playerID:
			emit(out, Event{Kind: EventPlayAgainDeclined, Room: r})
		}
	}

	if isHost {
		c.hostDuties(ctx, r)
	}
}

// onTick 定时巡检：心跳续期、时钟重校准，主持人另负责计时器到点与幽灵清理
func (c *Controller) onTick(ctx context.Context) {
	c.mu.Lock()
	sess := c.sess
	r := c.latest
	c.mu.Unlock()
	if sess == nil {
		return
	}

	now := time.Now()
	if now.Sub(time.Unix(0, c.lastBeat.Load())) >= c.cfg.Game.PresenceBeatDuration() {
		c.lastBeat.Store(now.UnixNano())
		if err := c.store.TouchPresence(ctx, sess.Code, sess.PlayerID, c.cfg.Game.PresenceTTLDuration()); err != nil {
			log.Printf("⚠️ 心跳续期失败: %v", err)
		}
	}
	if now.Sub(time.Unix(0, c.lastSync.Load())) >= clockResyncInterval {
		c.lastSync.Store(now.UnixNano())
		if err := c.store.SyncClock(ctx); err != nil {
			log.Printf("⚠️ 时钟重校准失败: %v", err)
		}
	}

	if r == nil || !sess.IsHost {
		return
	}
	c.hostTick(ctx, r)
}

// emit 非阻塞派发事件；UI 消费不及时就丢弃，绝不拖慢归约循环
func emit(out chan Event, e Event) {
	select {
	case out <- e:
	default:
		log.Printf("⚠️ 事件队列已满，丢弃 %s", e.Kind)
	}
}
