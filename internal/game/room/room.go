// Package room 定义共享复制文档（房间）的结构。
// 房间文档是唯一的事实来源：双方客户端各自订阅同一份文档，
// 控制面字段只允许当前主持人写入，玩家只写自己的 answers 子树。
package room

import (
	"encoding/json"
	"time"
)

// Status 房间状态
type Status string

const (
	StatusWaiting      Status = "waiting"
	StatusPlaying      Status = "playing"
	StatusCalculating  Status = "calculating"
	StatusResults      Status = "results"
	StatusFinishedGame Status = "finished_game"
)

// PlayAgainStatus 再来一局握手状态
type PlayAgainStatus string

const (
	PlayAgainPending  PlayAgainStatus = "pending"
	PlayAgainAccepted PlayAgainStatus = "accepted"
	PlayAgainDeclined PlayAgainStatus = "declined"
)

// MaxPlayers 每个房间最多两名玩家
const MaxPlayers = 2

// Player 房间中的玩家
type Player struct {
	Name            string          `json:"name"`
	IsHost          bool            `json:"isHost"`
	Answers         json.RawMessage `json:"answers,omitempty"` // 形状由模式决定，见 mode 包
	Score           int             `json:"score"`
	CumulativeScore int             `json:"cumulativeScore"`
	Streak          int             `json:"streak"`
	Eliminated      bool            `json:"eliminated"`
	Status          string          `json:"status"`
}

// NewPlayer 创建玩家（回合字段归零）
func NewPlayer(name string, isHost bool) *Player {
	return &Player{
		Name:   name,
		IsHost: isHost,
		Status: "online",
	}
}

// ResetForRound 清空玩家的回合数据，保留累计分。
// Status 必须一并回到 online，否则上一回合的交卷标记会把新回合瞬间收束。
func (p *Player) ResetForRound() {
	p.Answers = nil
	p.Score = 0
	p.Streak = 0
	p.Eliminated = false
	p.Status = "online"
}

// CategoryVerdict 单个分类的判定结论
type CategoryVerdict struct {
	Answer string `json:"answer"`
	Valid  bool   `json:"valid"`
	Points int    `json:"points"`
}

// RoundResult 每名玩家的回合结果
type RoundResult struct {
	Name            string                     `json:"name"`
	Answers         map[string]CategoryVerdict `json:"answers,omitempty"`     // classic/multiphase
	Correct         int                        `json:"correct,omitempty"`     // memory
	Total           int                        `json:"total,omitempty"`       // memory
	Constraints     map[string]bool            `json:"constraints,omitempty"` // objective
	Passed          bool                       `json:"passed,omitempty"`      // objective
	WasLying        bool                       `json:"wasLying,omitempty"`    // bluff（玩家自报，非自动判定）
	VoteCorrect     bool                       `json:"voteCorrect,omitempty"` // bluff
	Score           int                        `json:"score"`
	CumulativeScore int                        `json:"cumulativeScore"`
}

// PlayAgainRequest 再来一局请求（短生命周期子对象）
type PlayAgainRequest struct {
	RequestedBy string          `json:"requestedBy"`
	Status      PlayAgainStatus `json:"status"`
	Timestamp   int64           `json:"timestamp"`
}

// Constraint 目标模式的命名约束
type Constraint struct {
	Type  string `json:"type"` // startsWith / contains / notContains / length / minLength / endsWith
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// ModeContext 模式专属的回合上下文，每回合重建
type ModeContext struct {
	CurrentCategory string       `json:"currentCategory,omitempty"` // survival
	Words           []string     `json:"words,omitempty"`           // memory
	ShowDuration    int          `json:"showDuration,omitempty"`    // memory
	RecallDuration  int          `json:"recallDuration,omitempty"`  // memory
	Category        string       `json:"category,omitempty"`        // bluff
	Constraints     []Constraint `json:"constraints,omitempty"`     // objective
}

// Room 房间文档（聚合根）
type Room struct {
	Code               string                  `json:"code"`
	Status             Status                  `json:"status"`
	Mode               string                  `json:"mode"`
	ModeName           string                  `json:"modeName,omitempty"`
	Letter             string                  `json:"letter"`
	RoundID            string                  `json:"roundId"`  // 回合令牌
	RoundSeq           int64                   `json:"roundSeq"` // 严格递增，客户端据此识别新回合
	Phases             []string                `json:"phases,omitempty"`
	PhaseIndex         int                     `json:"phaseIndex"`
	TotalPhases        int                     `json:"totalPhases,omitempty"`
	Phase              string                  `json:"phase,omitempty"`
	PhaseStartAt       int64                   `json:"phaseStartAt,omitempty"` // 服务器时间戳（毫秒）
	PhaseDuration      int                     `json:"phaseDuration"`          // 秒
	StoppedBy          string                  `json:"stoppedBy,omitempty"`
	StopLock           bool                    `json:"stopLock"`
	CalculationLock    bool                    `json:"calculationLock"`
	RoundResults       map[string]*RoundResult `json:"roundResults,omitempty"`
	RoundsWon          map[string]int          `json:"roundsWon,omitempty"`
	CurrentRoundNumber int                     `json:"currentRoundNumber"`
	TotalRounds        int                     `json:"totalRounds"`
	ModeContext        *ModeContext            `json:"modeContext,omitempty"`
	PlayAgainRequest   *PlayAgainRequest       `json:"playAgainRequest,omitempty"`
	Players            map[string]*Player      `json:"players,omitempty"`
}

// PlayerCount 玩家数量
func (r *Room) PlayerCount() int {
	return len(r.Players)
}

// HostID 当前主持人 ID，没有则返回空串
func (r *Room) HostID() string {
	for id, p := range r.Players {
		if p.IsHost {
			return id
		}
	}
	return ""
}

// OtherPlayerID 返回除 playerID 外的另一名玩家 ID
func (r *Room) OtherPlayerID(playerID string) string {
	for id := range r.Players {
		if id != playerID {
			return id
		}
	}
	return ""
}

// IsLastPhase 当前是否处于最后一个阶段
func (r *Room) IsLastPhase() bool {
	return r.PhaseIndex >= len(r.Phases)-1
}

// PhaseRemaining 按服务器时间计算本阶段剩余时间。
// 只依赖两个持久值（phaseStartAt、phaseDuration），重连无损。
func (r *Room) PhaseRemaining(serverNow time.Time) time.Duration {
	if r.PhaseStartAt == 0 {
		return 0
	}
	elapsed := serverNow.Sub(time.UnixMilli(r.PhaseStartAt))
	remaining := time.Duration(r.PhaseDuration)*time.Second - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PhaseElapsed 按服务器时间计算本阶段已用时
func (r *Room) PhaseElapsed(serverNow time.Time) time.Duration {
	if r.PhaseStartAt == 0 {
		return 0
	}
	elapsed := serverNow.Sub(time.UnixMilli(r.PhaseStartAt))
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// EnsureHost 保证房间内恰有一名主持人：若没有，任选一名剩余玩家晋升。
// 返回晋升后的主持人 ID（可能为空，表示房间已无玩家）。
func (r *Room) EnsureHost() string {
	if id := r.HostID(); id != "" {
		return id
	}
	for id, p := range r.Players {
		p.IsHost = true
		return id
	}
	return ""
}
