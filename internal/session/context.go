package session

import "github.com/palemoky/letter-challenge/internal/game/room"

// Context 一次房间成员身份的本地归约状态。
// 每个活跃的房间成员身份对应一个 Context 值，由控制器独占持有，
// 不存在进程级的全局会话状态。
//
// 新回合、阶段切换、状态切换都只靠比较快照字段与这里的 last* 值识别，
// 不靠事件计数，因此同一快照重放两次不会重复推进本地状态。
type Context struct {
	Code       string
	PlayerID   string
	PlayerName string
	IsHost     bool

	lastRoundSeq int64
	lastPhase    string
	lastStatus   room.Status
	resultsShown bool
}

// observe 更新 last* 字段，返回三个变化信号
func (c *Context) observe(r *room.Room) (newRound, phaseChanged, nowPlaying bool) {
	newRound = r.RoundSeq > c.lastRoundSeq
	phaseChanged = r.Phase != c.lastPhase
	nowPlaying = r.Status == room.StatusPlaying && c.lastStatus != room.StatusPlaying

	if newRound {
		c.lastRoundSeq = r.RoundSeq
		c.resultsShown = false
	}
	c.lastPhase = r.Phase
	c.lastStatus = r.Status
	return newRound, phaseChanged, nowPlaying
}
